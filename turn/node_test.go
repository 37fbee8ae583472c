package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luca-patrignani/intuition/domain/quiz"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func newLoneNode(t *testing.T, id quiz.PeerID, st quiz.RoundState) (*Node, *scriptConsole, *fakeHistory) {
	console := newScriptConsole()
	history := &fakeHistory{}
	dir := &fakeDirectory{entries: map[string]string{}}
	n := NewNode(id, testConfig(), dir, newFakeNet(), console, WithHistory(history), WithLogger(slogt.New(t)))
	n.state = st
	return n, console, history
}

func threePeers() quiz.Roster {
	return quiz.Roster{"alice": "mem://alice", "bob": "mem://bob", "carol": "mem://carol"}
}

func askingState() quiz.RoundState {
	st := quiz.NewRoundState("alice", threePeers())
	st.BeginRound()
	st.PoseQuestion("2+2", 4, threePeers())
	st.Version = 1
	st.Transition = quiz.AskingQuestion
	return st
}

func TestSetRoundState_Idempotent(t *testing.T) {
	n, console, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	st := askingState()

	require.NoError(t, n.SetRoundState(st))
	once := n.RoundState()
	require.NoError(t, n.SetRoundState(st))
	twice := n.RoundState()

	require.Equal(t, once, twice)
	require.Equal(t, 1, console.renderCount())
	require.Equal(t, quiz.NoTransition, twice.Transition, "transition is consumed")
	require.Equal(t, quiz.AwaitingAnswers, twice.Phase)
}

func TestSetRoundState_Stale(t *testing.T) {
	n, console, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	require.NoError(t, n.SetRoundState(askingState()))

	old := quiz.NewRoundState("carol", threePeers())
	old.Transition = quiz.NewActiveUser
	require.NoError(t, n.SetRoundState(old))

	require.Equal(t, quiz.PeerID("alice"), n.RoundState().ActivePeer)
	require.Equal(t, 1, console.renderCount())
}

func TestSetRoundState_UnknownTransition(t *testing.T) {
	n, _, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	st := askingState()
	st.Transition = "choosing_next_active"

	err := n.SetRoundState(st)
	require.True(t, errors.Is(err, quiz.ErrUnknownTransition))
	require.Equal(t, quiz.AwaitingQuestion, n.RoundState().Phase)
}

func TestSetRoundState_Invalid(t *testing.T) {
	n, _, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	st := askingState()
	st.Question = ""

	require.Error(t, n.SetRoundState(st))
	require.Equal(t, uint64(0), n.RoundState().Version)
}

func TestSetRoundState_NewQuestionClearsAnswer(t *testing.T) {
	n, _, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	v := int64(3)
	n.answer = &v

	require.NoError(t, n.SetRoundState(askingState()))
	require.Nil(t, n.Answer())
}

func TestSetRoundState_ResultsAreRecorded(t *testing.T) {
	n, _, history := newLoneNode(t, "carol", quiz.NewRoundState("alice", threePeers()))
	st := askingState()
	st.Transition = quiz.NoTransition
	st.Conclude([]quiz.Score{{Peer: "bob", Error: 0}}, "bob", threePeers())
	st.Version = 2
	st.Transition = quiz.SendingResults

	require.NoError(t, n.SetRoundState(st))
	require.NoError(t, n.SetRoundState(st))

	require.Equal(t, []quiz.RoundResult{{Round: 1, Asker: "alice", Question: "2+2", CorrectAnswer: 4, Winner: "bob"}}, history.all())
	require.Equal(t, uint(1), n.RoundState().Leaderboard["bob"])
}

func TestSetRoundState_WakesDispatchLoop(t *testing.T) {
	n, _, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	require.NoError(t, n.SetRoundState(askingState()))
	select {
	case <-n.wake:
	default:
		t.Fatal("dispatch loop was not woken")
	}
}

func TestAnswer_ReturnsAndResets(t *testing.T) {
	n, _, _ := newLoneNode(t, "bob", quiz.NewRoundState("alice", threePeers()))
	require.Nil(t, n.Answer())
	v := int64(42)
	n.answer = &v
	got := n.Answer()
	require.NotNil(t, got)
	require.Equal(t, int64(42), *got)
	require.Nil(t, n.Answer())

	n.answer = &v
	n.ResetAnswer()
	require.Nil(t, n.Answer())
}

func TestBootstrap_SeedsFreshState(t *testing.T) {
	dir := &fakeDirectory{entries: map[string]string{
		"intuition.alice": "mem://alice",
		"intuition.bob":   "mem://bob",
		"other.zed":       "mem://zed",
	}}
	n := NewNode("alice", testConfig(), dir, newFakeNet(), newScriptConsole(), WithLogger(slogt.New(t)))
	require.NoError(t, n.Bootstrap(context.Background()))

	st := n.RoundState()
	require.Equal(t, quiz.PeerID("alice"), st.ActivePeer)
	require.Equal(t, uint64(0), st.Round)
	require.Equal(t, quiz.Roster{"alice": "mem://alice", "bob": "mem://bob"}, st.Roster)
}

func TestBootstrap_EmptyRoster(t *testing.T) {
	n := NewNode("alice", testConfig(), &fakeDirectory{entries: map[string]string{}}, newFakeNet(), newScriptConsole())
	err := n.Bootstrap(context.Background())
	require.True(t, errors.Is(err, quiz.ErrEmptyRoster))
}

func TestRefreshRoster_KeepsLastRosterWhenDirectoryIsDown(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("connection refused")}
	n := NewNode("bob", testConfig(), dir, newFakeNet(), newScriptConsole(), WithLogger(slogt.New(t)))

	_, err := n.refreshRoster(context.Background())
	require.ErrorIs(t, err, quiz.ErrEmptyRoster)

	n.state = quiz.NewRoundState("alice", threePeers())
	roster, err := n.refreshRoster(context.Background())
	require.NoError(t, err)
	require.Equal(t, threePeers(), roster)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.NoError(t, testConfig().Validate())

	cfg := DefaultConfig()
	cfg.CollectionWindow = cfg.AnswerTimeout
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LivenessPeriod = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.QuestionTimeout = -time.Second
	require.Error(t, cfg.Validate())
}
