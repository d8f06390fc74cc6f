package discord

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pingwatch/clients"
	"pingwatch/models"
)

// MockDiscordClient implements the clients.DiscordClient interface for testing
type MockDiscordClient struct {
	mock.Mock
}

func (m *MockDiscordClient) GetBotUserID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDiscordClient) GetGuildRoles(ctx context.Context, guildID string) (map[string]models.RoleDescriptor, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.RoleDescriptor), args.Error(1)
}

func (m *MockDiscordClient) GetMember(ctx context.Context, guildID, userID string) (*clients.DiscordMember, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.DiscordMember), args.Error(1)
}

func (m *MockDiscordClient) SendBroadcastNotice(ctx context.Context, channelID string, notice *models.BroadcastNotice) error {
	args := m.Called(ctx, channelID, notice)
	return args.Error(0)
}

func (m *MockDiscordClient) ReplyToMessage(ctx context.Context, guildID, channelID, messageID, content string) error {
	args := m.Called(ctx, guildID, channelID, messageID, content)
	return args.Error(0)
}
