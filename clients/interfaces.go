package clients

import (
	"context"

	"pingwatch/models"
)

// DiscordClient is the slice of the Discord API the ping tracker needs
type DiscordClient interface {
	// GetBotUserID returns the bot's own user ID, empty until the gateway is ready
	GetBotUserID() string
	GetGuildRoles(ctx context.Context, guildID string) (map[string]models.RoleDescriptor, error)
	GetMember(ctx context.Context, guildID, userID string) (*DiscordMember, error)
	SendBroadcastNotice(ctx context.Context, channelID string, notice *models.BroadcastNotice) error
	ReplyToMessage(ctx context.Context, guildID, channelID, messageID, content string) error
}
