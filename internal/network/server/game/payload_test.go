package game

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/geoquiz/internal/game/round"
)

var paris = round.Target{Name: "Paris", Country: "France", CountryCode: "FR", Lat: 48.8566, Lng: 2.3522}

func rankedAnswers(n int) []RankedAnswer {
	ranked := make([]RankedAnswer, n)
	for i := range ranked {
		ranked[i] = RankedAnswer{
			Player: round.PlayerInfo{ID: fmt.Sprintf("sid-%d", i), Name: fmt.Sprintf("P%d", i), Color: round.NoColor},
			Result: round.Result{Distance: float64(100 * (i + 1)), Score: 1000 - 10*i},
			Answer: round.Answer{Lat: float64(i), Lng: float64(-i), Seq: uint64(i + 1)},
		}
		if i < len(round.Palette) {
			ranked[i].Player.Color = round.Palette[i]
		}
	}
	return ranked
}

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestBuildNewTurn_HidesCoordinates(t *testing.T) {
	t.Parallel()

	m := toMap(t, BuildNewTurn(paris))
	assert.Equal(t, map[string]any{"city": "Paris", "country": "France", "country_code": "FR"}, m)
}

func TestBuildEndOfTurn_NoAnswers(t *testing.T) {
	t.Parallel()

	m := toMap(t, BuildEndOfTurn(paris, nil))
	assert.Contains(t, m, "correct_answer")
	assert.NotContains(t, m, "best_answer")
	assert.NotContains(t, m, "other_answers")

	correct := m["correct_answer"].(map[string]any)
	assert.Equal(t, "Paris", correct["name"])
	assert.InDelta(t, 48.8566, correct["lat"], 1e-9)
}

func TestBuildEndOfTurn_SingleAnswer(t *testing.T) {
	t.Parallel()

	payload := BuildEndOfTurn(paris, rankedAnswers(1))
	require.NotNil(t, payload.BestAnswer)
	assert.Equal(t, "sid-0", payload.BestAnswer.SID)
	assert.Equal(t, 100.0, payload.BestAnswer.Distance)

	m := toMap(t, payload)
	assert.Contains(t, m, "best_answer")
	assert.NotContains(t, m, "other_answers")
}

func TestBuildEndOfTurn_ColorsUpToSixAnswers(t *testing.T) {
	t.Parallel()

	payload := BuildEndOfTurn(paris, rankedAnswers(6))
	require.Len(t, payload.OtherAnswers, 5)
	for i, a := range payload.OtherAnswers {
		assert.Equal(t, round.Palette[i+1], a.Color)
		assert.Equal(t, fmt.Sprintf("sid-%d", i+1), a.SID)
	}
	assert.Empty(t, payload.BestAnswer.Color)
}

func TestBuildEndOfTurn_NoColorsAboveSixAnswers(t *testing.T) {
	t.Parallel()

	m := toMap(t, BuildEndOfTurn(paris, rankedAnswers(7)))
	others := m["other_answers"].([]any)
	require.Len(t, others, 6)
	for _, o := range others {
		assert.NotContains(t, o.(map[string]any), "color")
	}
}

func TestBuildPlayerResults(t *testing.T) {
	t.Parallel()

	results := BuildPlayerResults(rankedAnswers(3))
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, 3, r.Total)
		assert.Equal(t, 1000-10*i, r.Score)
	}
	assert.Empty(t, BuildPlayerResults(nil))
}

func TestBuildLeaderboard_SharedTopTen(t *testing.T) {
	t.Parallel()

	scores := make([]round.Score, 12)
	for i := range scores {
		scores[i] = round.Score{
			Player: round.PlayerInfo{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)},
			Score:  1200 - 100*i,
		}
	}

	updates := BuildLeaderboard(scores)
	require.Len(t, updates, 12)

	first, err := json.Marshal(updates[0].Payload.TopTen)
	require.NoError(t, err)
	for rank, u := range updates {
		assert.Equal(t, fmt.Sprintf("p%d", rank), u.PlayerID)
		assert.Equal(t, rank, u.Payload.PlayerRank)
		assert.Equal(t, scores[rank].Score, u.Payload.PlayerScore)
		assert.Equal(t, 12, u.Payload.TotalPlayer)

		topTen, err := json.Marshal(u.Payload.TopTen)
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(topTen))
	}

	require.Len(t, updates[0].Payload.TopTen, TopTenSize)
	assert.Equal(t, "Player 0", updates[0].Payload.TopTen[0].PlayerName)
	assert.Equal(t, 300, updates[0].Payload.TopTen[9].Score)
}

func TestBuildLeaderboard_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildLeaderboard(nil))
}

func TestBuilders_AreIdempotent(t *testing.T) {
	t.Parallel()

	ranked := rankedAnswers(4)
	a, err := json.Marshal(BuildEndOfTurn(paris, ranked))
	require.NoError(t, err)
	b, err := json.Marshal(BuildEndOfTurn(paris, ranked))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	scores := []round.Score{
		{Player: round.PlayerInfo{ID: "x", Name: "X"}, Score: 10},
		{Player: round.PlayerInfo{ID: "y", Name: "Y"}, Score: 5},
	}
	assert.Equal(t, BuildLeaderboard(scores), BuildLeaderboard(scores))
}

func TestBuildLegend_SlotsStartAtOne(t *testing.T) {
	t.Parallel()

	legend := BuildLegend([]round.LegendEntry{
		{PlayerName: "Alice", Color: "blue"},
		{PlayerName: "Bob", Color: "green"},
	})
	require.Len(t, legend, 2)
	assert.Equal(t, "Alice", legend[1].PlayerName)
	assert.Equal(t, "green", legend[2].Color)

	m := toMap(t, legend)
	assert.Contains(t, m, "1")
	assert.Contains(t, m, "2")
}
