package orch

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/physio/internal/app"
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/dkeye/physio/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeChannel struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeChannel) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrChannelClosed
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) messages(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeChannel) last(t *testing.T) map[string]any {
	t.Helper()
	msgs := f.messages(t)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

type fixture struct {
	reg  *app.Registry
	tel  *app.Telemetry
	orch *Orchestrator
}

func newFixture(t *testing.T, persistPoses bool) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockCodeGenerator(ctrl)
	gen.EXPECT().GenerateUniqueCode(gomock.Any()).Return("ABC123", nil).AnyTimes()
	reg := app.NewRegistry(gen)
	tel := app.NewTelemetry(reg)
	o := New(reg, tel, nil, persistPoses)

	_, err := reg.CreateRoom("Dr. Lee")
	require.NoError(t, err)
	return fixture{reg: reg, tel: tel, orch: o}
}

func (f fixture) join(t *testing.T, n int) {
	t.Helper()
	for range n {
		_, err := f.reg.JoinRoom("ABC123", "patient")
		require.NoError(t, err)
	}
}

func (f fixture) connect(t *testing.T, id domain.ParticipantID) *fakeChannel {
	t.Helper()
	ch := &fakeChannel{}
	_, err := f.orch.Connect("ABC123", id, ch)
	require.NoError(t, err)
	return ch
}

func (f fixture) send(id domain.ParticipantID, v any) {
	b, _ := json.Marshal(v)
	f.orch.Dispatch("ABC123", id, b)
}

const (
	therapist = domain.ParticipantID("therapist_ABC123")
	patient1  = domain.ParticipantID("patient_1_ABC123")
	patient2  = domain.ParticipantID("patient_2_ABC123")
)

func TestScenario_AccuracyUpdateReachesTherapistAndReport(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)

	// Given three patients and a full room
	f.join(t, 3)
	_, err := f.reg.JoinRoom("ABC123", "fourth")
	req.ErrorIs(err, domain.ErrRoomFull)

	th := f.connect(t, therapist)
	p2 := f.connect(t, patient2)

	// When patient 2 reports accuracy
	f.send(patient2, map[string]any{"type": "accuracy_update", "accuracy": 0.8})

	// Then the therapist receives it
	req.Equal(map[string]any{
		"type":     "accuracy_update",
		"userId":   "patient_2_ABC123",
		"accuracy": 0.8,
	}, th.last(t))
	req.Empty(p2.messages(t))

	// And the report carries the score
	report, err := f.tel.Summarize("ABC123")
	req.NoError(err)
	req.Equal([]float64{0.8}, report.Patients[1].AccuracyScores)
}

func TestConnect_AnnouncesToOthers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)

	th := f.connect(t, therapist)
	p1 := f.connect(t, patient1)

	req.Equal(map[string]any{"type": "user_joined", "userId": "patient_1_ABC123", "code": "ABC123"}, th.last(t))
	req.Empty(p1.messages(t))
}

func TestConnect_Rejects(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)

	_, err := f.orch.Connect("NOPE00", therapist, &fakeChannel{})
	req.ErrorIs(err, domain.ErrNotFound)

	_, err = f.orch.Connect("ABC123", "patient_9_ABC123", &fakeChannel{})
	req.ErrorIs(err, domain.ErrUnknownParticipant)

	_, err = f.reg.EndRoom("ABC123")
	req.NoError(err)
	_, err = f.orch.Connect("ABC123", therapist, &fakeChannel{})
	req.ErrorIs(err, domain.ErrRoomEnded)
}

func TestSignal_DeliveredToTarget(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)
	th := f.connect(t, therapist)
	p1 := f.connect(t, patient1)

	f.send(therapist, map[string]any{"type": "signal", "targetParticipantId": "patient_1_ABC123", "signal": map[string]any{"sdp": "offer"}})

	req.Equal(map[string]any{
		"type":   "signal",
		"from":   "therapist_ABC123",
		"signal": map[string]any{"sdp": "offer"},
	}, p1.last(t))
	req.Len(th.messages(t), 1) // only user_joined
}

func TestSignal_DisconnectedTargetIsDropped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)
	th := f.connect(t, therapist)

	f.send(therapist, map[string]any{"type": "signal", "targetParticipantId": "patient_1_ABC123", "signal": "x"})

	room, err := f.reg.GetRoom("ABC123")
	req.NoError(err)
	req.True(room.Connections().IsConnected(therapist))
	req.False(th.isClosed())
	req.Empty(th.messages(t))
	req.Equal(int64(1), f.orch.Stats().Dropped)
}

func TestFeedback_OnlyFromTherapist(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 2)
	th := f.connect(t, therapist)
	p1 := f.connect(t, patient1)
	p2 := f.connect(t, patient2)

	// A patient cannot send feedback to another patient
	f.send(patient1, map[string]any{"type": "feedback", "targetPatientId": "patient_2_ABC123", "message": "spoof"})
	req.Empty(p2.messages(t))

	f.send(therapist, map[string]any{"type": "feedback", "targetPatientId": "patient_2_ABC123", "message": "bend knees"})
	req.Equal(map[string]any{"type": "feedback", "message": "bend knees", "from": "therapist_ABC123"}, p2.last(t))

	req.Len(p1.messages(t), 1) // user_joined for patient 2
	req.Len(th.messages(t), 2) // user_joined x2
}

func TestPoseUpdate_GoesToTherapist(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 2)
	th := f.connect(t, therapist)
	f.connect(t, patient1)
	p2 := f.connect(t, patient2)

	f.send(patient1, map[string]any{"type": "pose_update", "targetParticipantId": "patient_2_ABC123", "poseData": map[string]any{"accuracy": 0.6}})

	req.Equal(map[string]any{
		"type":     "pose_update",
		"userId":   "patient_1_ABC123",
		"poseData": map[string]any{"accuracy": 0.6},
	}, th.last(t))
	req.Empty(p2.messages(t))

	report, err := f.tel.Summarize("ABC123")
	req.NoError(err)
	req.Zero(report.Patients[0].TotalFrames)
	req.Zero(report.RawSampleCount)
}

func TestPoseUpdate_PersistedWhenEnabled(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, true)
	f.join(t, 1)
	f.connect(t, therapist)
	f.connect(t, patient1)

	f.send(patient1, map[string]any{"type": "pose_update", "poseData": map[string]any{"accuracy": 0.6, "errors": []string{"hip"}}})

	report, err := f.tel.Summarize("ABC123")
	req.NoError(err)
	pr := report.Patients[0]
	req.Equal(1, pr.TotalFrames)
	req.Equal([]float64{0.6}, pr.AccuracyScores)
	req.Equal([]string{"hip"}, pr.CommonErrors)
}

func TestAccuracyUpdate_DefaultsToZero(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)
	th := f.connect(t, therapist)
	f.connect(t, patient1)

	f.send(patient1, map[string]any{"type": "accuracy_update"})

	req.Equal(float64(0), th.last(t)["accuracy"])
	report, err := f.tel.Summarize("ABC123")
	req.NoError(err)
	req.Equal([]float64{0}, report.Patients[0].AccuracyScores)
}

func TestAccuracyUpdate_FromTherapistIsDropped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	th := f.connect(t, therapist)

	f.send(therapist, map[string]any{"type": "accuracy_update", "accuracy": 1})

	req.Empty(th.messages(t))
	req.Equal(int64(1), f.orch.Stats().Dropped)
}

func TestDispatch_UnknownAndMalformedAreIgnored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	th := f.connect(t, therapist)

	f.send(therapist, map[string]any{"type": "webrtc_offer_v2"})
	f.orch.Dispatch("ABC123", therapist, []byte("{nope"))
	f.send(therapist, map[string]any{"no_type": true})

	stats := f.orch.Stats()
	req.Equal(int64(3), stats.Received)
	req.Equal(int64(2), stats.Unknown)
	req.Equal(int64(1), stats.Malformed)
	req.Empty(th.messages(t))
	req.False(th.isClosed())
}

func TestPing_Pong(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	th := f.connect(t, therapist)

	f.send(therapist, map[string]any{"type": "ping"})

	req.Equal(map[string]any{"type": "pong"}, th.last(t))
}

func TestDisconnect_BroadcastsUserLeft(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 2)
	th := f.connect(t, therapist)
	p1 := f.connect(t, patient1)
	p2 := f.connect(t, patient2)

	f.orch.Disconnect("ABC123", patient1, p1)

	left := map[string]any{"type": "user_left", "userId": "patient_1_ABC123"}
	req.Equal(left, th.last(t))
	req.Equal(left, p2.last(t))
	room, err := f.reg.GetRoom("ABC123")
	req.NoError(err)
	req.False(room.Connections().IsConnected(patient1))

	// Membership outlives the connection
	_, ok := room.Role(patient1)
	req.True(ok)
}

func TestDisconnect_StaleChannelAfterReconnect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)
	th := f.connect(t, therapist)
	old := f.connect(t, patient1)
	fresh := f.connect(t, patient1)
	req.True(old.isClosed())
	before := len(th.messages(t))

	f.orch.Disconnect("ABC123", patient1, old)

	room, err := f.reg.GetRoom("ABC123")
	req.NoError(err)
	req.True(room.Connections().IsConnected(patient1))
	req.Len(th.messages(t), before)
	req.False(fresh.isClosed())
}

func TestEndRoom_BroadcastsReportAndClosesConnections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 1)
	th := f.connect(t, therapist)
	p1 := f.connect(t, patient1)
	f.send(patient1, map[string]any{"type": "accuracy_update", "accuracy": 0.5})

	_, err := f.reg.EndRoom("ABC123")
	req.NoError(err)

	for _, ch := range []*fakeChannel{th, p1} {
		msg := ch.last(t)
		req.Equal("session_ended", msg["type"])
		report, ok := msg["report"].(map[string]any)
		req.True(ok)
		req.Equal("ABC123", report["session_code"])
		req.Equal("ended", report["status"])
		req.True(ch.isClosed())
	}
	room, err := f.reg.GetRoom("ABC123")
	req.NoError(err)
	req.Equal(0, room.Connections().Len())
}

type panicPolicy struct{}

func (panicPolicy) OnMessage(domain.Role, core.Kind) app.Verdict { panic("boom") }

func TestDispatch_RecoversPanics(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.orch.Policy = panicPolicy{}
	f.connect(t, therapist)

	req.NotPanics(func() {
		f.send(therapist, map[string]any{"type": "ping"})
	})
	req.Equal(int64(1), f.orch.Stats().Recovered)
}

func TestDispatch_ConcurrentSenders(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, false)
	f.join(t, 3)
	th := f.connect(t, therapist)
	ids := []domain.ParticipantID{patient1, patient2, "patient_3_ABC123"}
	for _, id := range ids {
		f.connect(t, id)
	}
	const perSender = 50

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSender {
				f.send(id, map[string]any{"type": "accuracy_update", "accuracy": float64(i)})
			}
		}()
	}
	wg.Wait()

	report, err := f.tel.Summarize("ABC123")
	req.NoError(err)
	for _, pr := range report.Patients {
		req.Len(pr.AccuracyScores, perSender)
		// FIFO per sender
		for i, v := range pr.AccuracyScores {
			req.Equal(float64(i), v, fmt.Sprintf("%s sample %d", pr.PatientID, i))
		}
	}

	// And per sender -> therapist order is preserved
	next := map[string]float64{}
	for _, m := range th.messages(t) {
		if m["type"] != "accuracy_update" {
			continue
		}
		uid := m["userId"].(string)
		req.Equal(next[uid], m["accuracy"])
		next[uid]++
	}
	req.Len(next, 3)
}
