package core

import (
	"time"

	"github.com/dkeye/physio/internal/domain"
)

// RoomService is the core-facing API of one session. Membership, status and
// telemetry are guarded by a per-room lock; the Connection Set carries its own.
type RoomService interface {
	Code() domain.SessionCode
	TherapistID() domain.ParticipantID
	Connections() *ConnectionSet

	Status() domain.Status
	Snapshot() domain.Room
	// Role reports the role of a member; ok is false for strangers.
	Role(id domain.ParticipantID) (domain.Role, bool)

	Join(name string, at time.Time) (domain.Participant, error)
	// End moves the room to Ended once; later calls return the first endedAt.
	End(at time.Time) (endedAt time.Time, transitioned bool)

	// RecordSample appends to the raw log and, for a known patient, to that
	// patient's samples. It reports whether the sample was attributed.
	RecordSample(sample domain.PoseSample) bool
	RecordAccuracy(id domain.ParticipantID, accuracy float64) bool
	RawSampleCount() int
}

// RoomInfo is a listing row.
type RoomInfo struct {
	Code         domain.SessionCode `json:"code"`
	Status       domain.Status      `json:"status"`
	PatientCount int                `json:"patient_count"`
	Connected    int                `json:"connected"`
}
