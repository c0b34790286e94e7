package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/physio/internal/domain"
)

type Kind string

const (
	KindSignal         Kind = "signal"
	KindFeedback       Kind = "feedback"
	KindPoseUpdate     Kind = "pose_update"
	KindAccuracyUpdate Kind = "accuracy_update"
	KindPing           Kind = "ping"

	KindPong         Kind = "pong"
	KindUserJoined   Kind = "user_joined"
	KindUserLeft     Kind = "user_left"
	KindSessionEnded Kind = "session_ended"
)

var (
	ErrUnknownKind = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

// Inbound is the closed set of messages a participant may send.
type Inbound interface {
	Kind() Kind
	inbound()
}

type SignalMessage struct {
	Target domain.ParticipantID `json:"targetParticipantId"`
	Signal json.RawMessage      `json:"signal"`
}

type FeedbackMessage struct {
	Target  domain.ParticipantID `json:"targetPatientId"`
	Message string               `json:"message"`
}

type PoseUpdateMessage struct {
	PoseData domain.Payload `json:"poseData"`
}

// AccuracyUpdateMessage carries a nil Accuracy when the field was absent.
type AccuracyUpdateMessage struct {
	Accuracy *float64 `json:"accuracy"`
}

type PingMessage struct{}

func (SignalMessage) Kind() Kind         { return KindSignal }
func (FeedbackMessage) Kind() Kind       { return KindFeedback }
func (PoseUpdateMessage) Kind() Kind     { return KindPoseUpdate }
func (AccuracyUpdateMessage) Kind() Kind { return KindAccuracyUpdate }
func (PingMessage) Kind() Kind           { return KindPing }

func (SignalMessage) inbound()         {}
func (FeedbackMessage) inbound()       {}
func (PoseUpdateMessage) inbound()     {}
func (AccuracyUpdateMessage) inbound() {}
func (PingMessage) inbound()           {}

var decoders = map[Kind]func([]byte) (Inbound, error){
	KindSignal:         decodeAs[SignalMessage],
	KindFeedback:       decodeAs[FeedbackMessage],
	KindPoseUpdate:     decodeAs[PoseUpdateMessage],
	KindAccuracyUpdate: decodeAs[AccuracyUpdateMessage],
	KindPing:           decodeAs[PingMessage],
}

// DecodeInbound parses a raw frame into its message variant.
func DecodeInbound(data []byte) (Inbound, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	return decode(data)
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// Outbound messages. Field names are the wire contract.

type SignalOut struct {
	Type   Kind                 `json:"type"`
	From   domain.ParticipantID `json:"from"`
	Signal json.RawMessage      `json:"signal"`
}

type FeedbackOut struct {
	Type    Kind                 `json:"type"`
	Message string               `json:"message"`
	From    domain.ParticipantID `json:"from"`
}

type PoseUpdateOut struct {
	Type     Kind                 `json:"type"`
	UserID   domain.ParticipantID `json:"userId"`
	PoseData domain.Payload       `json:"poseData"`
}

type AccuracyUpdateOut struct {
	Type     Kind                 `json:"type"`
	UserID   domain.ParticipantID `json:"userId"`
	Accuracy float64              `json:"accuracy"`
}

type UserJoinedOut struct {
	Type   Kind                 `json:"type"`
	UserID domain.ParticipantID `json:"userId"`
	Code   domain.SessionCode   `json:"code"`
}

type UserLeftOut struct {
	Type   Kind                 `json:"type"`
	UserID domain.ParticipantID `json:"userId"`
}

type SessionEndedOut struct {
	Type   Kind          `json:"type"`
	Report domain.Report `json:"report"`
}

type PongOut struct {
	Type Kind `json:"type"`
}

func NewSignalOut(from domain.ParticipantID, signal json.RawMessage) SignalOut {
	return SignalOut{Type: KindSignal, From: from, Signal: signal}
}

func NewFeedbackOut(from domain.ParticipantID, message string) FeedbackOut {
	return FeedbackOut{Type: KindFeedback, Message: message, From: from}
}

func NewPoseUpdateOut(from domain.ParticipantID, pose domain.Payload) PoseUpdateOut {
	return PoseUpdateOut{Type: KindPoseUpdate, UserID: from, PoseData: pose}
}

func NewAccuracyUpdateOut(from domain.ParticipantID, accuracy float64) AccuracyUpdateOut {
	return AccuracyUpdateOut{Type: KindAccuracyUpdate, UserID: from, Accuracy: accuracy}
}

func NewUserJoinedOut(id domain.ParticipantID, code domain.SessionCode) UserJoinedOut {
	return UserJoinedOut{Type: KindUserJoined, UserID: id, Code: code}
}

func NewUserLeftOut(id domain.ParticipantID) UserLeftOut {
	return UserLeftOut{Type: KindUserLeft, UserID: id}
}

func NewSessionEndedOut(report domain.Report) SessionEndedOut {
	return SessionEndedOut{Type: KindSessionEnded, Report: report}
}

func NewPongOut() PongOut { return PongOut{Type: KindPong} }
