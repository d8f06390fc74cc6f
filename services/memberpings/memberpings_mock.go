package memberpings

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"pingwatch/models"
)

type MockMemberPingsService struct {
	mock.Mock
}

func (m *MockMemberPingsService) Reconcile(
	ctx context.Context,
	guildID, userID models.Snowflake,
	at time.Time,
	tally models.MentionTally,
) (*models.MemberPingRecord, error) {
	args := m.Called(ctx, guildID, userID, at, tally)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MemberPingRecord), args.Error(1)
}

func (m *MockMemberPingsService) GetMemberPingInfo(
	ctx context.Context,
	guildID, userID models.Snowflake,
) (mo.Option[*models.MemberPingRecord], error) {
	args := m.Called(ctx, guildID, userID)
	return args.Get(0).(mo.Option[*models.MemberPingRecord]), args.Error(1)
}

func (m *MockMemberPingsService) GetLatestEveryonePing(
	ctx context.Context,
	guildID models.Snowflake,
) (mo.Option[time.Time], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[time.Time]), args.Error(1)
}

func (m *MockMemberPingsService) GetEveryonePingSnapshot(
	ctx context.Context,
	guildID, userID models.Snowflake,
) (*models.EveryonePingSnapshot, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EveryonePingSnapshot), args.Error(1)
}

func (m *MockMemberPingsService) GetTopMembers(
	ctx context.Context,
	guildID models.Snowflake,
	limit int,
) ([]*models.MemberPingRecord, error) {
	args := m.Called(ctx, guildID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.MemberPingRecord), args.Error(1)
}
