package domain

import "time"

// MaxPatients is the patient capacity of a room; joins beyond it are rejected.
const MaxPatients = 3

type (
	SessionCode string
	Status      string
)

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Room is a read-only snapshot of one session. Patients are in join order.
type Room struct {
	Code          SessionCode   `json:"code"`
	TherapistID   ParticipantID `json:"therapist_id"`
	TherapistName string        `json:"therapist_name"`
	Patients      []Participant `json:"patients"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
}
