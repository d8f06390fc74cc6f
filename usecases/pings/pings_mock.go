package pings

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"pingwatch/models"
)

// MockPingsUseCase is a mock implementation of the PingsUseCase
type MockPingsUseCase struct {
	mock.Mock
}

func (m *MockPingsUseCase) HandleMessage(ctx context.Context, event models.DiscordMessageEvent) (models.NotifierAction, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(models.NotifierAction), args.Error(1)
}

func (m *MockPingsUseCase) ProcessDiscordMessageEvent(ctx context.Context, event models.DiscordMessageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPingsUseCase) GetPingInfo(
	ctx context.Context,
	guildID, userID string,
	requestedAt time.Time,
) (*models.PingInfo, error) {
	args := m.Called(ctx, guildID, userID, requestedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PingInfo), args.Error(1)
}

func (m *MockPingsUseCase) GetLeaderboard(ctx context.Context, guildID string, limit int) ([]*models.MemberPingRecord, error) {
	args := m.Called(ctx, guildID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MemberPingRecord), args.Error(1)
}
