package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"pingwatch/appctx"
	"pingwatch/clients"
	"pingwatch/models"
)

// broadcastPermissions lets a role ping @everyone and @here
const broadcastPermissions = discordgo.PermissionMentionEveryone | discordgo.PermissionAdministrator

// DiscordClient implements clients.DiscordClient on top of the bot's gateway session.
// Guild data is served from the session state cache when present, otherwise from REST.
type DiscordClient struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscordClient(session *discordgo.Session, logger *zap.Logger) *DiscordClient {
	return &DiscordClient{session: session, logger: logger.Named("discord")}
}

var _ clients.DiscordClient = (*DiscordClient)(nil)

func (c *DiscordClient) GetBotUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

// GetGuildRoles returns the guild's roles keyed by role ID
func (c *DiscordClient) GetGuildRoles(ctx context.Context, guildID string) (map[string]models.RoleDescriptor, error) {
	var roles []*discordgo.Role
	if guild, err := c.session.State.Guild(guildID); err == nil && len(guild.Roles) > 0 {
		roles = guild.Roles
	} else {
		appctx.Logger(ctx, c.logger).Debug("guild roles not cached, fetching", zap.String("guild_id", guildID))
		roles, err = c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch roles for guild %s: %w", guildID, err)
		}
	}

	descriptors := make(map[string]models.RoleDescriptor, len(roles))
	for _, role := range roles {
		descriptors[role.ID] = toRoleDescriptor(role)
	}
	return descriptors, nil
}

func (c *DiscordClient) GetMember(ctx context.Context, guildID, userID string) (*clients.DiscordMember, error) {
	member, err := c.session.State.Member(guildID, userID)
	if err != nil {
		member, err = c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch member %s in guild %s: %w", userID, guildID, err)
		}
	}
	if member.User == nil {
		return nil, fmt.Errorf("member %s in guild %s has no user attached", userID, guildID)
	}

	// REST members carry no guild ID, which the member avatar URL needs.
	// Work on a copy so the state cache is never written to.
	m := *member
	if m.GuildID == "" {
		m.GuildID = guildID
	}

	return &clients.DiscordMember{
		UserID:      m.User.ID,
		DisplayName: m.DisplayName(),
		AvatarURL:   m.AvatarURL(""),
		RoleIDs:     append([]string(nil), m.Roles...),
	}, nil
}

func (c *DiscordClient) SendBroadcastNotice(ctx context.Context, channelID string, notice *models.BroadcastNotice) error {
	_, err := c.session.ChannelMessageSendEmbed(channelID, BuildBroadcastEmbed(notice), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send broadcast notice to channel %s: %w", channelID, err)
	}
	return nil
}

func (c *DiscordClient) ReplyToMessage(ctx context.Context, guildID, channelID, messageID, content string) error {
	reference := &discordgo.MessageReference{
		MessageID: messageID,
		ChannelID: channelID,
		GuildID:   guildID,
	}
	_, err := c.session.ChannelMessageSendReply(channelID, content, reference, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to reply to message %s: %w", messageID, err)
	}
	return nil
}

func toRoleDescriptor(role *discordgo.Role) models.RoleDescriptor {
	return models.RoleDescriptor{
		ID:                 role.ID,
		CanMentionEveryone: role.Permissions&broadcastPermissions != 0,
		Mentionable:        role.Mentionable,
	}
}
