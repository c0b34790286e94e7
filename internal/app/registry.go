package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
)

// EndHook runs after a room transitions (or is re-asked) to Ended.
type EndHook func(room core.RoomService)

// Registry owns code -> room. Rooms live until DiscardRoom.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.SessionCode]core.RoomService

	codes  core.CodeGenerator
	now    func() time.Time
	onEnd  EndHook
	hookMu sync.RWMutex
}

func NewRegistry(codes core.CodeGenerator) *Registry {
	return &Registry{
		rooms: make(map[domain.SessionCode]core.RoomService),
		codes: codes,
		now:   time.Now,
	}
}

// SetEndHook installs the session-ended notifier (the message router).
func (r *Registry) SetEndHook(fn EndHook) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.onEnd = fn
}

func (r *Registry) CreateRoom(therapistName string) (core.RoomService, error) {
	if err := domain.ValidateDisplayName(therapistName); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	code, err := r.codes.GenerateUniqueCode(func(c string) bool {
		_, ok := r.rooms[domain.SessionCode(c)]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	sc := domain.SessionCode(code)
	if _, dup := r.rooms[sc]; dup {
		return nil, fmt.Errorf("create room: code %q already held: %w", code, domain.ErrResourceExhausted)
	}
	room, err := core.NewRoomService(sc, therapistName, r.now())
	if err != nil {
		return nil, err
	}
	r.rooms[sc] = room
	log.Info().Str("module", "app.registry").Str("code", code).Str("therapist", string(room.TherapistID())).Msg("room created")
	return room, nil
}

func (r *Registry) GetRoom(code domain.SessionCode) (core.RoomService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return room, nil
}

func (r *Registry) JoinRoom(code domain.SessionCode, patientName string) (domain.Participant, error) {
	room, err := r.GetRoom(code)
	if err != nil {
		return domain.Participant{}, err
	}
	return room.Join(patientName, r.now())
}

// EndRoom stamps endedAt once and lets the end hook notify live connections
// before returning.
func (r *Registry) EndRoom(code domain.SessionCode) (core.RoomService, error) {
	room, err := r.GetRoom(code)
	if err != nil {
		return nil, err
	}
	endedAt, transitioned := room.End(r.now())
	log.Info().Str("module", "app.registry").Str("code", string(code)).Time("ended_at", endedAt).Bool("transitioned", transitioned).Msg("room end requested")

	r.hookMu.RLock()
	hook := r.onEnd
	r.hookMu.RUnlock()
	if hook != nil {
		hook(room)
	}
	return room, nil
}

// DiscardRoom forgets the room and drops any live connections.
func (r *Registry) DiscardRoom(code domain.SessionCode) bool {
	r.mu.Lock()
	room, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()
	if !ok {
		return false
	}
	room.Connections().CloseAll()
	log.Info().Str("module", "app.registry").Str("code", string(code)).Msg("room discarded")
	return true
}

func (r *Registry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for code, room := range r.rooms {
		snap := room.Snapshot()
		out = append(out, core.RoomInfo{
			Code:         code,
			Status:       snap.Status,
			PatientCount: len(snap.Patients),
			Connected:    room.Connections().Len(),
		})
	}
	return out
}
