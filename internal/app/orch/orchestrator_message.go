package orch

import (
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) onSignal(room core.RoomService, sender domain.ParticipantID, m core.SignalMessage) {
	if m.Target == "" {
		o.stats.dropped.Add(1)
		return
	}
	o.deliver(room, m.Target, core.NewSignalOut(sender, m.Signal))
}

func (o *Orchestrator) onFeedback(room core.RoomService, sender domain.ParticipantID, m core.FeedbackMessage) {
	if m.Target == "" {
		o.stats.dropped.Add(1)
		return
	}
	o.deliver(room, m.Target, core.NewFeedbackOut(sender, m.Message))
}

// onPoseUpdate always goes to the therapist, whatever the payload names.
func (o *Orchestrator) onPoseUpdate(room core.RoomService, sender domain.ParticipantID, m core.PoseUpdateMessage) {
	o.deliver(room, room.TherapistID(), core.NewPoseUpdateOut(sender, m.PoseData))
	if !o.PersistPoses {
		return
	}
	ts := float64(o.now().UnixMilli())
	if _, err := o.Telemetry.RecordSample(room.Code(), sender, ts, m.PoseData); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("code", string(room.Code())).Str("participant", string(sender)).Msg("persist pose update")
	}
}

func (o *Orchestrator) onAccuracyUpdate(room core.RoomService, sender domain.ParticipantID, m core.AccuracyUpdateMessage) {
	accuracy := 0.0
	if m.Accuracy != nil {
		accuracy = *m.Accuracy
	}
	if _, err := o.Telemetry.RecordAccuracy(room.Code(), sender, accuracy); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("code", string(room.Code())).Str("participant", string(sender)).Msg("record accuracy")
	}
	o.deliver(room, room.TherapistID(), core.NewAccuracyUpdateOut(sender, accuracy))
}
