package orch

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/dkeye/physio/internal/app"
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

// Orchestrator is the message router. It keeps no room state of its own:
// every decision is a lookup in the Registry and the room's ConnectionSet.
type Orchestrator struct {
	Registry  *app.Registry
	Telemetry *app.Telemetry
	Policy    app.Policy

	// PersistPoses also records in-channel pose updates as samples.
	PersistPoses bool

	now   func() time.Time
	stats counters
}

type counters struct {
	received  atomic.Int64
	routed    atomic.Int64
	dropped   atomic.Int64
	unknown   atomic.Int64
	malformed atomic.Int64
	recovered atomic.Int64
}

// Stats contains runtime counters.
type Stats struct {
	Received  int64 `json:"received"`
	Routed    int64 `json:"routed"`
	Dropped   int64 `json:"dropped"`
	Unknown   int64 `json:"unknown"`
	Malformed int64 `json:"malformed"`
	Recovered int64 `json:"recovered"`
}

// New wires the router and installs it as the registry's end hook.
func New(reg *app.Registry, tel *app.Telemetry, policy app.Policy, persistPoses bool) *Orchestrator {
	if policy == nil {
		policy = app.RolePolicy{}
	}
	o := &Orchestrator{
		Registry:     reg,
		Telemetry:    tel,
		Policy:       policy,
		PersistPoses: persistPoses,
		now:          time.Now,
	}
	reg.SetEndHook(o.OnRoomEnded)
	return o
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Received:  o.stats.received.Load(),
		Routed:    o.stats.routed.Load(),
		Dropped:   o.stats.dropped.Load(),
		Unknown:   o.stats.unknown.Load(),
		Malformed: o.stats.malformed.Load(),
		Recovered: o.stats.recovered.Load(),
	}
}

// Dispatch routes one inbound frame from sender. Nothing is surfaced to the
// caller: bad, unknown or undeliverable messages are dropped and counted.
func (o *Orchestrator) Dispatch(code domain.SessionCode, sender domain.ParticipantID, data []byte) {
	o.stats.received.Add(1)
	if r := panics.Try(func() { o.dispatch(code, sender, data) }); r != nil {
		o.stats.recovered.Add(1)
		log.Error().Str("module", "orch").Str("code", string(code)).Str("participant", string(sender)).Str("panic", r.String()).Msg("dispatch panic recovered")
	}
}

func (o *Orchestrator) dispatch(code domain.SessionCode, sender domain.ParticipantID, data []byte) {
	msg, err := core.DecodeInbound(data)
	switch {
	case errors.Is(err, core.ErrUnknownKind):
		o.stats.unknown.Add(1)
		log.Debug().Err(err).Str("module", "orch").Str("participant", string(sender)).Msg("unknown message ignored")
		return
	case err != nil:
		o.stats.malformed.Add(1)
		log.Warn().Err(err).Str("module", "orch").Str("participant", string(sender)).Msg("malformed message dropped")
		return
	}

	room, err := o.Registry.GetRoom(code)
	if err != nil {
		o.stats.dropped.Add(1)
		return
	}
	role, ok := room.Role(sender)
	if !ok {
		o.stats.dropped.Add(1)
		log.Warn().Str("module", "orch").Str("code", string(code)).Str("participant", string(sender)).Msg("message from non-member dropped")
		return
	}
	if o.Policy.OnMessage(role, msg.Kind()) == app.DropMessage {
		o.stats.dropped.Add(1)
		log.Warn().Str("module", "orch").Str("code", string(code)).Str("participant", string(sender)).Str("type", string(msg.Kind())).Msg("message refused by policy")
		return
	}

	switch m := msg.(type) {
	case core.SignalMessage:
		o.onSignal(room, sender, m)
	case core.FeedbackMessage:
		o.onFeedback(room, sender, m)
	case core.PoseUpdateMessage:
		o.onPoseUpdate(room, sender, m)
	case core.AccuracyUpdateMessage:
		o.onAccuracyUpdate(room, sender, m)
	case core.PingMessage:
		o.deliver(room, sender, core.NewPongOut())
	}
}

// deliver is best-effort: a missing or broken destination only counts a drop.
func (o *Orchestrator) deliver(room core.RoomService, to domain.ParticipantID, msg any) {
	err := room.Connections().SendTo(to, msg)
	switch {
	case err == nil:
		o.stats.routed.Add(1)
	case errors.Is(err, domain.ErrNotConnected):
		o.stats.dropped.Add(1)
		log.Debug().Str("module", "orch").Str("code", string(room.Code())).Str("to", string(to)).Msg("destination not connected, dropped")
	default:
		o.stats.dropped.Add(1)
		log.Error().Err(err).Str("module", "orch").Str("code", string(room.Code())).Str("to", string(to)).Msg("deliver")
	}
}
