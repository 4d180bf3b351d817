//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/geoquiz/internal/game/round"
)

// MockLeaderboardSink 排行榜镜像 mock
type MockLeaderboardSink struct {
	mock.Mock
}

func (m *MockLeaderboardSink) Record(ctx context.Context, turn int, scores []round.Score) error {
	args := m.Called(ctx, turn, scores)
	return args.Error(0)
}
