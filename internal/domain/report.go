package domain

import "time"

// SampleSummaryLimit is how many leading samples a patient report carries.
const SampleSummaryLimit = 10

// CommonErrorsLimit is how many of the most frequent errors a patient report carries.
const CommonErrorsLimit = 5

type Report struct {
	SessionCode    SessionCode     `json:"session_code"`
	TherapistName  string          `json:"therapist_name"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	RawSampleCount int             `json:"raw_sample_count"`
	Patients       []PatientReport `json:"patients"`
}

type PatientReport struct {
	PatientID       ParticipantID `json:"patient_id"`
	PatientName     string        `json:"patient_name"`
	JoinedAt        time.Time     `json:"joined_at"`
	TotalFrames     int           `json:"total_frames"`
	AverageAccuracy float64       `json:"average_accuracy"`
	MinAccuracy     float64       `json:"min_accuracy"`
	MaxAccuracy     float64       `json:"max_accuracy"`
	AccuracyScores  []float64     `json:"accuracy_scores"`
	CommonErrors    []string      `json:"common_errors"`
	SampleSummary   SampleSummary `json:"pose_data_summary"`
}

type SampleSummary struct {
	TotalSamples int          `json:"total_samples"`
	SamplePoses  []PoseSample `json:"sample_poses"`
}
