package game

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/palemoky/geoquiz/internal/game/round"
	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
	"github.com/palemoky/geoquiz/internal/network/protocol"
	"github.com/palemoky/geoquiz/internal/testutil"
)

var equator = catalogue.City{Name: "Null Island", Country: "Nowhere", CountryCode: "XX", Lat: 0, Lng: 0}

func newRound(t *testing.T) *round.Game {
	t.Helper()
	picker, err := catalogue.NewPicker([]catalogue.City{equator}, nil)
	require.NoError(t, err)
	return round.NewGame(round.Config{
		ScoreMaxDistance:       30000,
		MaxScore:               1000,
		LeaderboardAnswerCount: 10,
		AllowMultipleAnswer:    true,
	}, picker)
}

func newMaster(t *testing.T, state *round.Game, opts ...Option) (*GameMaster, *testutil.RecordingBroadcaster) {
	t.Helper()
	out := testutil.NewRecordingBroadcaster()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewGameMaster(state, out, 10*time.Millisecond, 5*time.Millisecond, opts...), out
}

func payloadOf[T any](t *testing.T, msg *protocol.Message) *T {
	t.Helper()
	p, err := protocol.ParsePayload[T](msg)
	require.NoError(t, err)
	return p
}

func TestStartTurn_BroadcastsTarget(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)

	turn, err := gm.startTurn()
	require.NoError(t, err)
	assert.Equal(t, 1, turn)
	assert.True(t, state.IsTurnOpen())

	sent := out.OfType(protocol.MsgNewTurn)
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].To)
	p := payloadOf[protocol.NewTurnPayload](t, sent[0].Message)
	assert.Equal(t, "Null Island", p.City)
	assert.Equal(t, "XX", p.CountryCode)
}

func TestStartTurn_ClosesStaleTurn(t *testing.T) {
	state := newRound(t)
	gm, _ := newMaster(t, state)

	_, err := state.StartNewTurn()
	require.NoError(t, err)

	turn, err := gm.startTurn()
	require.NoError(t, err)
	assert.Equal(t, 2, turn)
	assert.True(t, state.IsTurnOpen())
}

func TestEndTurn_TwoPlayersRankedByDistance(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)

	_, _ = state.AddPlayer("a", "Alice")
	_, _ = state.AddPlayer("b", "Bob")

	turn, err := gm.startTurn()
	require.NoError(t, err)
	// ~100 km vs ~50 km from the target
	require.NoError(t, state.SubmitAnswer("a", 0, 0.9))
	require.NoError(t, state.SubmitAnswer("b", 0, 0.45))
	out.Reset()
	require.NoError(t, gm.endTurn(turn))

	// 先广播答案，再按名次单发成绩
	all := out.All()
	require.Len(t, all, 3)
	assert.Equal(t, protocol.MsgEndOfTurn, all[0].Message.Type)
	assert.Empty(t, all[0].To)
	assert.Equal(t, protocol.MsgPlayerResults, all[1].Message.Type)
	assert.Equal(t, protocol.MsgPlayerResults, all[2].Message.Type)

	end := out.OfType(protocol.MsgEndOfTurn)
	require.Len(t, end, 1)
	eot := payloadOf[protocol.EndOfTurnPayload](t, end[0].Message)
	require.NotNil(t, eot.BestAnswer)
	assert.Equal(t, "b", eot.BestAnswer.SID)
	require.Len(t, eot.OtherAnswers, 1)
	assert.Equal(t, "a", eot.OtherAnswers[0].SID)
	assert.Equal(t, "blue", eot.OtherAnswers[0].Color)

	results := out.OfType(protocol.MsgPlayerResults)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].To)
	assert.Equal(t, "a", results[1].To)

	rb := payloadOf[protocol.PlayerResultsPayload](t, results[0].Message)
	ra := payloadOf[protocol.PlayerResultsPayload](t, results[1].Message)
	assert.Equal(t, 1, rb.Rank)
	assert.Equal(t, 2, ra.Rank)
	assert.Equal(t, 2, rb.Total)
	assert.Equal(t, 2, ra.Total)
	assert.Less(t, rb.Distance, ra.Distance)
	assert.InDelta(t, 50, rb.Distance, 1)
	assert.InDelta(t, 100, ra.Distance, 1)
}

func TestEndTurn_NoAnswers(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)
	_, _ = state.AddPlayer("a", "Alice")

	turn, err := gm.startTurn()
	require.NoError(t, err)
	require.NoError(t, gm.endTurn(turn))

	end := out.OfType(protocol.MsgEndOfTurn)
	require.Len(t, end, 1)
	eot := payloadOf[protocol.EndOfTurnPayload](t, end[0].Message)
	assert.Nil(t, eot.BestAnswer)
	assert.Nil(t, eot.OtherAnswers)
	assert.Empty(t, out.OfType(protocol.MsgPlayerResults))
}

func TestEndTurn_SendFailureDoesNotAbortOthers(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)
	out.Fail["a"] = errors.New("gone")

	for _, id := range []string{"a", "b", "c"} {
		_, _ = state.AddPlayer(id, id)
	}
	turn, err := gm.startTurn()
	require.NoError(t, err)
	require.NoError(t, state.SubmitAnswer("a", 0, 1))
	require.NoError(t, state.SubmitAnswer("b", 0, 2))
	require.NoError(t, state.SubmitAnswer("c", 0, 3))
	require.NoError(t, gm.endTurn(turn))

	results := out.OfType(protocol.MsgPlayerResults)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].To)
	assert.Equal(t, "c", results[1].To)
}

func TestEndTurn_AlreadyClosedIsInconsistent(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)

	turn, err := gm.startTurn()
	require.NoError(t, err)
	require.NoError(t, state.EndCurrentTurn())

	err = gm.endTurn(turn)
	assert.ErrorIs(t, err, ErrInconsistentTurn)
	assert.Empty(t, out.OfType(protocol.MsgEndOfTurn))
}

func TestPublishLeaderboard_ConsistentAcrossRecipients(t *testing.T) {
	state := newRound(t)
	sink := &testutil.MockLeaderboardSink{}
	sink.On("Record", mock.Anything, 1, mock.Anything).Return(errors.New("redis down")).Once()
	gm, out := newMaster(t, state, WithLeaderboardSink(sink))

	for _, id := range []string{"a", "b", "c"} {
		_, _ = state.AddPlayer(id, id)
	}
	turn, err := gm.startTurn()
	require.NoError(t, err)
	require.NoError(t, state.SubmitAnswer("a", 0, 30))
	require.NoError(t, state.SubmitAnswer("b", 0, 10))
	require.NoError(t, state.SubmitAnswer("c", 0, 20))
	require.NoError(t, gm.endTurn(turn))

	require.NoError(t, gm.publishLeaderboard(context.Background(), turn))
	sink.AssertExpectations(t)

	updates := out.OfType(protocol.MsgLeaderboard)
	require.Len(t, updates, 3)

	scores := state.RankedScores()
	var first *protocol.LeaderboardUpdatePayload
	for rank, u := range updates {
		p := payloadOf[protocol.LeaderboardUpdatePayload](t, u.Message)
		assert.Equal(t, scores[rank].Player.ID, u.To)
		assert.Equal(t, rank, p.PlayerRank)
		assert.Equal(t, scores[rank].Score, p.PlayerScore)
		assert.Equal(t, 3, p.TotalPlayer)
		if first == nil {
			first = p
			continue
		}
		assert.Equal(t, first.TopTen, p.TopTen)
	}
	assert.Equal(t, "b", updates[0].To)
	assert.Equal(t, "a", updates[2].To)
}

func TestPublishLegend_OnlyWhenChanged(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)

	gm.publishLegend()
	assert.Empty(t, out.OfType(protocol.MsgLegendChanges))

	_, _ = state.AddPlayer("a", "Alice")
	gm.publishLegend()
	gm.publishLegend()

	legends := out.OfType(protocol.MsgLegendChanges)
	require.Len(t, legends, 1)
	legend := payloadOf[protocol.LegendChangesPayload](t, legends[0].Message)
	assert.Equal(t, protocol.LegendSlot{PlayerName: "Alice", Color: "blue"}, (*legend)[1])
}

func TestStart_OnlyOnce(t *testing.T) {
	state := newRound(t)
	gm, _ := newMaster(t, state)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gm.Start(ctx))
	assert.ErrorIs(t, gm.Start(ctx), ErrAlreadyStarted)
	assert.ErrorIs(t, gm.Run(ctx), ErrAlreadyStarted)

	cancel()
	select {
	case <-gm.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestLoop_TurnsAreContiguous(t *testing.T) {
	state := newRound(t)
	gm, out := newMaster(t, state)
	_, _ = state.AddPlayer("a", "Alice")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gm.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(out.OfType(protocol.MsgEndOfTurn)) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-gm.Done()

	newTurns := len(out.OfType(protocol.MsgNewTurn))
	endTurns := len(out.OfType(protocol.MsgEndOfTurn))
	assert.Equal(t, newTurns, state.TurnNumber())
	assert.GreaterOrEqual(t, endTurns, 3)
	assert.LessOrEqual(t, newTurns-endTurns, 1)

	// The legend changed once, when Alice joined
	assert.Len(t, out.OfType(protocol.MsgLegendChanges), 1)
}

// flakyState panics the first time the leaderboard is read
type flakyState struct {
	*round.Game
	panicked atomic.Bool
}

func (f *flakyState) RankedScores() []round.Score {
	if f.panicked.CompareAndSwap(false, true) {
		panic("leaderboard exploded")
	}
	return f.Game.RankedScores()
}

func TestLoop_SurvivesPanickingPhase(t *testing.T) {
	state := &flakyState{Game: newRound(t)}
	out := testutil.NewRecordingBroadcaster()
	gm := NewGameMaster(state, out, 5*time.Millisecond, time.Millisecond, WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gm.Start(ctx))

	assert.Eventually(t, func() bool {
		return len(out.OfType(protocol.MsgNewTurn)) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-gm.Done()
	assert.True(t, state.panicked.Load())
}
