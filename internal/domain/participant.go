// Package domain contains entities without logic, just meta-data
package domain

import (
	"fmt"
	"time"
)

const MaxDisplayNameLen = 36

type (
	ParticipantID string
	Role          string
)

const (
	RoleTherapist Role = "therapist"
	RolePatient   Role = "patient"
)

// Participant is a room member. AccuracyScores and PoseSamples are append-only.
type Participant struct {
	ID             ParticipantID `json:"id"`
	DisplayName    string        `json:"name"`
	Role           Role          `json:"role"`
	JoinedAt       time.Time     `json:"joined_at"`
	AccuracyScores []float64     `json:"accuracy_scores"`
	PoseSamples    []PoseSample  `json:"pose_data"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in services.
func NewParticipant(id ParticipantID, name string, role Role, joinedAt time.Time) (*Participant, error) {
	if err := ValidateDisplayName(name); err != nil {
		return nil, err
	}
	return &Participant{
		ID:             id,
		DisplayName:    name,
		Role:           role,
		JoinedAt:       joinedAt,
		AccuracyScores: []float64{},
		PoseSamples:    []PoseSample{},
	}, nil
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}

// TherapistID is the identity of the single therapist of a room.
func TherapistID(code SessionCode) ParticipantID {
	return ParticipantID(fmt.Sprintf("therapist_%s", code))
}

// PatientID builds the id of the n-th (1-based) patient to join a room.
func PatientID(n int, code SessionCode) ParticipantID {
	return ParticipantID(fmt.Sprintf("patient_%d_%s", n, code))
}

// Clone returns a deep copy safe to hand out of a locked section.
func (p *Participant) Clone() Participant {
	out := *p
	out.AccuracyScores = append([]float64{}, p.AccuracyScores...)
	out.PoseSamples = append([]PoseSample{}, p.PoseSamples...)
	return out
}
