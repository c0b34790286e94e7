package orch

import (
	"fmt"

	"github.com/dkeye/physio/internal/app"
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect binds ch as id's live channel and announces the arrival to the
// rest of the room. id must be a member; reconnects reuse the same id.
func (o *Orchestrator) Connect(code domain.SessionCode, id domain.ParticipantID, ch core.Channel) (core.RoomService, error) {
	room, err := o.Registry.GetRoom(code)
	if err != nil {
		return nil, err
	}
	if room.Status() == domain.StatusEnded {
		return nil, domain.ErrRoomEnded
	}
	if _, ok := room.Role(id); !ok {
		return nil, fmt.Errorf("connect %s: %w", id, domain.ErrUnknownParticipant)
	}

	room.Connections().Register(id, ch)
	log.Info().Str("module", "orch").Str("code", string(code)).Str("participant", string(id)).Msg("connected")

	if _, err := room.Connections().Broadcast(core.NewUserJoinedOut(id, code), id); err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast user_joined")
	}
	return room, nil
}

// Disconnect unbinds ch and tells everyone still connected. A channel that
// was already replaced by a reconnect is ignored.
func (o *Orchestrator) Disconnect(code domain.SessionCode, id domain.ParticipantID, ch core.Channel) {
	room, err := o.Registry.GetRoom(code)
	if err != nil {
		return
	}
	conns := room.Connections()
	if !conns.Release(id, ch) && conns.IsConnected(id) {
		log.Info().Str("module", "orch").Str("code", string(code)).Str("participant", string(id)).Msg("stale channel closed after reconnect")
		return
	}
	log.Info().Str("module", "orch").Str("code", string(code)).Str("participant", string(id)).Msg("disconnected")

	if _, err := conns.Broadcast(core.NewUserLeftOut(id), ""); err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast user_left")
	}
}

// OnRoomEnded broadcasts the final report, then drops every live connection.
func (o *Orchestrator) OnRoomEnded(room core.RoomService) {
	report := app.BuildReport(room.Snapshot(), room.RawSampleCount())
	res, err := room.Connections().Broadcast(core.NewSessionEndedOut(report), "")
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("code", string(room.Code())).Msg("broadcast session_ended")
	}
	log.Info().Str("module", "orch").Str("code", string(room.Code())).Int("notified", res.Delivered).Msg("session ended")
	room.Connections().CloseAll()
}
