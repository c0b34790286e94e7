package app

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Telemetry aggregates per-patient samples held by the rooms of a Registry.
type Telemetry struct {
	rooms *Registry
}

func NewTelemetry(rooms *Registry) *Telemetry {
	return &Telemetry{rooms: rooms}
}

// RecordSample is the raw submission path: any user id is accepted into the
// room log, only known patients get the sample attributed.
func (t *Telemetry) RecordSample(code domain.SessionCode, userID domain.ParticipantID, timestamp float64, payload domain.Payload) (bool, error) {
	room, err := t.rooms.GetRoom(code)
	if err != nil {
		return false, fmt.Errorf("record sample: %w", err)
	}
	if payload == nil {
		payload = domain.Payload{}
	}
	attributed := room.RecordSample(domain.PoseSample{
		UserID:    userID,
		Timestamp: timestamp,
		Payload:   payload,
	})
	log.Debug().Str("module", "app.telemetry").Str("code", string(code)).Str("participant", string(userID)).Bool("attributed", attributed).Msg("sample recorded")
	return attributed, nil
}

// RecordAccuracy appends to a patient's accuracy series.
func (t *Telemetry) RecordAccuracy(code domain.SessionCode, userID domain.ParticipantID, accuracy float64) (bool, error) {
	room, err := t.rooms.GetRoom(code)
	if err != nil {
		return false, fmt.Errorf("record accuracy: %w", err)
	}
	return room.RecordAccuracy(userID, accuracy), nil
}

// Summarize is a read-only projection, valid before and after the room ends.
func (t *Telemetry) Summarize(code domain.SessionCode) (domain.Report, error) {
	room, err := t.rooms.GetRoom(code)
	if err != nil {
		return domain.Report{}, err
	}
	return BuildReport(room.Snapshot(), room.RawSampleCount()), nil
}

func BuildReport(room domain.Room, rawSamples int) domain.Report {
	return domain.Report{
		SessionCode:    room.Code,
		TherapistName:  room.TherapistName,
		Status:         room.Status,
		CreatedAt:      room.CreatedAt,
		EndedAt:        room.EndedAt,
		RawSampleCount: rawSamples,
		Patients:       lo.Map(room.Patients, func(p domain.Participant, _ int) domain.PatientReport { return patientReport(p) }),
	}
}

func patientReport(p domain.Participant) domain.PatientReport {
	scores := p.AccuracyScores
	avg := 0.0
	if len(scores) > 0 {
		avg = lo.Sum(scores) / float64(len(scores))
	}
	return domain.PatientReport{
		PatientID:       p.ID,
		PatientName:     p.DisplayName,
		JoinedAt:        p.JoinedAt,
		TotalFrames:     len(p.PoseSamples),
		AverageAccuracy: avg,
		MinAccuracy:     lo.Min(scores),
		MaxAccuracy:     lo.Max(scores),
		AccuracyScores:  append([]float64{}, scores...),
		CommonErrors:    commonErrors(p.PoseSamples, domain.CommonErrorsLimit),
		SampleSummary: domain.SampleSummary{
			TotalSamples: len(p.PoseSamples),
			SamplePoses:  append([]domain.PoseSample{}, p.PoseSamples[:min(len(p.PoseSamples), domain.SampleSummaryLimit)]...),
		},
	}
}

// commonErrors ranks error values by frequency; equal counts keep
// first-seen order.
func commonErrors(samples []domain.PoseSample, limit int) []string {
	all := lo.FlatMap(samples, func(s domain.PoseSample, _ int) []string { return s.Payload.Errors() })
	counts := lo.CountValues(all)
	ranked := lo.Uniq(all)
	slices.SortStableFunc(ranked, func(a, b string) int { return cmp.Compare(counts[b], counts[a]) })
	return ranked[:min(len(ranked), limit)]
}
