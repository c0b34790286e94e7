package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
)

// DeliveryResult reports fan-out stats of one broadcast.
type DeliveryResult struct {
	Delivered int
	Evicted   []domain.ParticipantID
}

// ConnectionSet maps participant ids to live channels for one room.
// Any failed send evicts and closes the failing channel; one recipient
// never affects delivery to another.
type ConnectionSet struct {
	code  domain.SessionCode
	mu    sync.RWMutex
	conns map[domain.ParticipantID]Channel
}

func NewConnectionSet(code domain.SessionCode) *ConnectionSet {
	return &ConnectionSet{
		code:  code,
		conns: make(map[domain.ParticipantID]Channel),
	}
}

// Register inserts or replaces the channel for id. A replaced channel is
// closed so that its pumps wind down.
func (s *ConnectionSet) Register(id domain.ParticipantID, ch Channel) {
	s.mu.Lock()
	old, replaced := s.conns[id]
	s.conns[id] = ch
	s.mu.Unlock()

	if replaced && old != ch {
		old.Close()
		log.Info().Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("connection replaced")
		return
	}
	log.Info().Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("connection registered")
}

// Unregister removes the entry for id; no-op if absent.
func (s *ConnectionSet) Unregister(id domain.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return
	}
	delete(s.conns, id)
	log.Info().Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("connection unregistered")
}

// Release removes id only while it is still bound to ch. It reports whether
// an entry was removed, so a stale channel cannot unregister a reconnect.
func (s *ConnectionSet) Release(id domain.ParticipantID, ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.conns[id]
	if !ok || cur != ch {
		return false
	}
	delete(s.conns, id)
	log.Info().Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("connection released")
	return true
}

func (s *ConnectionSet) IsConnected(id domain.ParticipantID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conns[id]
	return ok
}

func (s *ConnectionSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// SendTo encodes msg and hands it to id's channel. It returns
// domain.ErrNotConnected when there is no live channel or the send failed.
func (s *ConnectionSet) SendTo(id domain.ParticipantID, msg any) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.SendFrame(id, frame)
}

func (s *ConnectionSet) SendFrame(id domain.ParticipantID, frame Frame) error {
	s.mu.RLock()
	ch, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrNotConnected
	}
	if err := ch.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("send failed, evicting")
		s.evict(id, ch)
		return domain.ErrNotConnected
	}
	return nil
}

// Broadcast sends msg to every channel except exclude ("" excludes nobody).
func (s *ConnectionSet) Broadcast(msg any, exclude domain.ParticipantID) (DeliveryResult, error) {
	frame, err := json.Marshal(msg)
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("encode message: %w", err)
	}

	snapshot := make(map[domain.ParticipantID]Channel, s.Len())
	s.mu.RLock()
	maps.Copy(snapshot, s.conns)
	s.mu.RUnlock()

	res := DeliveryResult{}
	for id, ch := range snapshot {
		if id == exclude {
			continue
		}
		if err := ch.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "core.connections").Str("code", string(s.code)).Str("participant", string(id)).Msg("broadcast send failed, evicting")
			s.evict(id, ch)
			res.Evicted = append(res.Evicted, id)
			continue
		}
		res.Delivered++
	}
	log.Debug().Str("module", "core.connections").Str("code", string(s.code)).Str("exclude", string(exclude)).Int("delivered", res.Delivered).Int("evicted", len(res.Evicted)).Msg("broadcast result")
	return res, nil
}

// CloseAll drops every entry and closes the channels.
func (s *ConnectionSet) CloseAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[domain.ParticipantID]Channel)
	s.mu.Unlock()

	for _, ch := range conns {
		ch.Close()
	}
	log.Info().Str("module", "core.connections").Str("code", string(s.code)).Int("closed", len(conns)).Msg("all connections closed")
}

// Cleanup is done outside the read lock.
func (s *ConnectionSet) evict(id domain.ParticipantID, ch Channel) {
	if s.Release(id, ch) {
		ch.Close()
	}
}
