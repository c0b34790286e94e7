package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewParticipant(t *testing.T) {
	req := require.New(t)

	p, err := NewParticipant("patient_1_ABC123", "Ann", RolePatient, time.Unix(0, 0))

	req.NoError(err)
	req.Equal(ParticipantID("patient_1_ABC123"), p.ID)
	req.Empty(p.AccuracyScores)
	req.NotNil(p.PoseSamples)
}

func TestValidateDisplayName(t *testing.T) {
	req := require.New(t)

	req.ErrorIs(ValidateDisplayName(""), ErrNameEmpty)
	req.ErrorIs(ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen+1)), ErrNameTooLong)
	req.NoError(ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLen)))
}

func TestIDs(t *testing.T) {
	req := require.New(t)

	req.Equal(ParticipantID("therapist_K3J9ZQ"), TherapistID("K3J9ZQ"))
	req.Equal(ParticipantID("patient_2_K3J9ZQ"), PatientID(2, "K3J9ZQ"))
}
