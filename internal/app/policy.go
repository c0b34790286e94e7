package app

import (
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
)

type Verdict int

const (
	Deliver Verdict = iota
	DropMessage
)

// Policy decides whether a member of a given role may send a message kind.
type Policy interface {
	OnMessage(role domain.Role, kind core.Kind) Verdict
}

// RolePolicy only lets therapists send feedback and only lets patients
// report accuracy.
type RolePolicy struct{}

func (RolePolicy) OnMessage(role domain.Role, kind core.Kind) Verdict {
	switch kind {
	case core.KindFeedback:
		if role != domain.RoleTherapist {
			return DropMessage
		}
	case core.KindAccuracyUpdate:
		if role != domain.RolePatient {
			return DropMessage
		}
	case core.KindSignal, core.KindPoseUpdate, core.KindPing:
	}
	return Deliver
}
