package core

import (
	"sync"
	"time"

	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources except through its ConnectionSet.
type roomImpl struct {
	code          domain.SessionCode
	therapistID   domain.ParticipantID
	therapistName string
	createdAt     time.Time
	conns         *ConnectionSet

	mu       sync.RWMutex
	status   domain.Status
	endedAt  *time.Time
	joined   int
	order    []domain.ParticipantID
	patients map[domain.ParticipantID]*domain.Participant
	rawLog   []domain.PoseSample
}

func NewRoomService(code domain.SessionCode, therapistName string, at time.Time) (RoomService, error) {
	if err := domain.ValidateDisplayName(therapistName); err != nil {
		return nil, err
	}
	return &roomImpl{
		code:          code,
		therapistID:   domain.TherapistID(code),
		therapistName: therapistName,
		createdAt:     at,
		conns:         NewConnectionSet(code),
		status:        domain.StatusActive,
		patients:      make(map[domain.ParticipantID]*domain.Participant),
	}, nil
}

func (r *roomImpl) Code() domain.SessionCode          { return r.code }
func (r *roomImpl) TherapistID() domain.ParticipantID { return r.therapistID }
func (r *roomImpl) Connections() *ConnectionSet       { return r.conns }

func (r *roomImpl) Status() domain.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *roomImpl) Role(id domain.ParticipantID) (domain.Role, bool) {
	if id == r.therapistID {
		return domain.RoleTherapist, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.patients[id]; ok {
		return domain.RolePatient, true
	}
	return "", false
}

func (r *roomImpl) Join(name string, at time.Time) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.patients) >= domain.MaxPatients {
		return domain.Participant{}, domain.ErrRoomFull
	}
	id := domain.PatientID(r.joined+1, r.code)
	p, err := domain.NewParticipant(id, name, domain.RolePatient, at)
	if err != nil {
		return domain.Participant{}, err
	}
	r.joined++
	r.patients[id] = p
	r.order = append(r.order, id)
	log.Info().Str("module", "core.room").Str("code", string(r.code)).Str("participant", string(id)).Msg("patient joined")
	return p.Clone(), nil
}

func (r *roomImpl) End(at time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == domain.StatusEnded {
		return *r.endedAt, false
	}
	r.status = domain.StatusEnded
	r.endedAt = &at
	log.Info().Str("module", "core.room").Str("code", string(r.code)).Msg("room ended")
	return at, true
}

func (r *roomImpl) RecordSample(sample domain.PoseSample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rawLog = append(r.rawLog, sample)
	p, ok := r.patients[sample.UserID]
	if !ok {
		return false
	}
	p.PoseSamples = append(p.PoseSamples, sample)
	if acc, ok := sample.Payload.Accuracy(); ok {
		p.AccuracyScores = append(p.AccuracyScores, acc)
	}
	return true
}

func (r *roomImpl) RecordAccuracy(id domain.ParticipantID, accuracy float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return false
	}
	p.AccuracyScores = append(p.AccuracyScores, accuracy)
	return true
}

func (r *roomImpl) RawSampleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rawLog)
}

func (r *roomImpl) Snapshot() domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := domain.Room{
		Code:          r.code,
		TherapistID:   r.therapistID,
		TherapistName: r.therapistName,
		Patients:      make([]domain.Participant, 0, len(r.order)),
		Status:        r.status,
		CreatedAt:     r.createdAt,
	}
	if r.endedAt != nil {
		endedAt := *r.endedAt
		out.EndedAt = &endedAt
	}
	for _, id := range r.order {
		out.Patients = append(out.Patients, r.patients[id].Clone())
	}
	return out
}
