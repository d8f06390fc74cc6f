package pings

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"pingwatch/appctx"
	"pingwatch/clients"
	"pingwatch/core"
	"pingwatch/mentions"
	"pingwatch/models"
	"pingwatch/services"
	"pingwatch/utils"
)

// PingsUseCase turns guild messages into counter updates and decides how the bot reacts
type PingsUseCase struct {
	discordClient      clients.DiscordClient
	memberPingsService services.MemberPingsService
	logChannels        map[string]string
	pingResponses      []string
	logger             *zap.Logger

	pickResponse func(n int) int
	now          func() time.Time
}

// NewPingsUseCase creates a new instance of PingsUseCase.
// logChannels maps guild IDs to the channel that receives @everyone notices.
func NewPingsUseCase(
	discordClient clients.DiscordClient,
	memberPingsService services.MemberPingsService,
	logChannels map[string]string,
	pingResponses []string,
	logger *zap.Logger,
) *PingsUseCase {
	return &PingsUseCase{
		discordClient:      discordClient,
		memberPingsService: memberPingsService,
		logChannels:        logChannels,
		pingResponses:      pingResponses,
		logger:             logger.Named("pings"),
		pickResponse:       rand.Intn,
		now:                time.Now,
	}
}

// HandleMessage classifies one guild message, reconciles the author's counter
// and returns the action the bot should take. Nothing is sent to Discord here.
func (u *PingsUseCase) HandleMessage(
	ctx context.Context,
	event models.DiscordMessageEvent,
) (models.NotifierAction, error) {
	if event.GuildID == "" {
		return models.NoAction(), nil
	}
	logger := appctx.Logger(ctx, u.logger).With(
		zap.String("user_id", event.AuthorID),
		zap.String("message_id", event.MessageID),
	)

	guildID, err := models.ParseSnowflake(event.GuildID)
	if err != nil {
		return models.NoAction(), fmt.Errorf("%w: guild %q: %w", core.ErrInvalidID, event.GuildID, err)
	}
	userID, err := models.ParseSnowflake(event.AuthorID)
	if err != nil {
		return models.NoAction(), fmt.Errorf("%w: author %q: %w", core.ErrInvalidID, event.AuthorID, err)
	}

	guildRoles, err := u.discordClient.GetGuildRoles(ctx, event.GuildID)
	if err != nil {
		return models.NoAction(), fmt.Errorf("%w: %w", core.ErrPermissionLookup, err)
	}

	memberRoles := event.MemberRoleIDs
	if memberRoles == nil {
		member, err := u.discordClient.GetMember(ctx, event.GuildID, event.AuthorID)
		if err != nil {
			return models.NoAction(), fmt.Errorf("%w: %w", core.ErrPermissionLookup, err)
		}
		memberRoles = member.RoleIDs
	}

	verdict := mentions.ResolvePermissions(memberRoles, guildRoles, event.GuildID)
	tally := mentions.Classify(
		event.Content,
		event.Mentions,
		mentions.ExtractRoleMentionTokens(event.Content),
		verdict,
		guildRoles,
	)
	if tally.Total() == 0 {
		return models.NoAction(), nil
	}

	// captured before the write so the notice can show the previous state
	var snapshot *models.EveryonePingSnapshot
	if tally.EveryonePing {
		snapshot, err = u.memberPingsService.GetEveryonePingSnapshot(ctx, guildID, userID)
		if err != nil {
			return models.NoAction(), err
		}
	}

	at := event.Timestamp
	if at.IsZero() {
		at = u.now()
	}

	record, err := u.memberPingsService.Reconcile(ctx, guildID, userID, at, tally)
	if err != nil {
		if errors.Is(err, core.ErrInvariantViolation) {
			// Panics under the development logger on purpose; the event wrapper recovers it.
			logger.DPanic("reconcile rejected a non-empty tally", zap.Error(err))
		}
		return models.NoAction(), err
	}
	logger.Info("pings recorded",
		zap.Int("user_pings", tally.UserPings),
		zap.Int("role_pings", tally.RolePings),
		zap.Bool("everyone", tally.EveryonePing),
		zap.Bool("here", tally.HerePing),
		zap.Uint64("total", record.Pings),
	)

	if snapshot != nil {
		return models.NotifierAction{
			Kind: models.NotifierActionNotifyBroadcast,
			Broadcast: &models.BroadcastNotice{
				GuildID:            event.GuildID,
				ChannelID:          event.ChannelID,
				MessageID:          event.MessageID,
				AuthorID:           event.AuthorID,
				AuthorDisplayName:  authorName(event),
				AuthorAvatarURL:    event.AuthorAvatarURL,
				Excerpt:            utils.TruncateGraphemes(event.Content, utils.ExcerptLength),
				MessageLink:        event.MessageLink(),
				PingedAt:           at,
				TotalPings:         snapshot.MemberPings + uint64(tally.Total()),
				GuildLastEveryone:  snapshot.GuildLastEveryone,
				MemberLastEveryone: snapshot.MemberLastEveryone,
			},
		}, nil
	}

	botID := u.discordClient.GetBotUserID()
	if botID != "" && slices.Contains(event.Mentions, botID) && len(u.pingResponses) > 0 {
		return models.NotifierAction{
			Kind:      models.NotifierActionAutoReply,
			ReplyText: u.pingResponses[u.pickResponse(len(u.pingResponses))],
		}, nil
	}

	return models.NoAction(), nil
}

// ProcessDiscordMessageEvent handles the message and dispatches the resulting action.
// A failed dispatch leaves the counter update in place.
func (u *PingsUseCase) ProcessDiscordMessageEvent(ctx context.Context, event models.DiscordMessageEvent) error {
	action, err := u.HandleMessage(ctx, event)
	if err != nil {
		return err
	}
	logger := appctx.Logger(ctx, u.logger)

	switch action.Kind {
	case models.NotifierActionNotifyBroadcast:
		channelID := u.logChannels[event.GuildID]
		if channelID == "" {
			logger.Warn("no log channel configured, dropping @everyone notice")
			return nil
		}
		if err := u.discordClient.SendBroadcastNotice(ctx, channelID, action.Broadcast); err != nil {
			logger.Error("failed to send @everyone notice", zap.String("channel_id", channelID), zap.Error(err))
			return fmt.Errorf("%w: %w", core.ErrPresentationDispatch, err)
		}
	case models.NotifierActionAutoReply:
		err := u.discordClient.ReplyToMessage(ctx, event.GuildID, event.ChannelID, event.MessageID, action.ReplyText)
		if err != nil {
			logger.Error("failed to reply to bot mention", zap.Error(err))
			return fmt.Errorf("%w: %w", core.ErrPresentationDispatch, err)
		}
	case models.NotifierActionNone:
	}
	return nil
}

// GetPingInfo returns the member's counters along with their display details.
// Members without a record get zero pings and no timestamps.
func (u *PingsUseCase) GetPingInfo(
	ctx context.Context,
	guildID, userID string,
	requestedAt time.Time,
) (*models.PingInfo, error) {
	guild, err := models.ParseSnowflake(guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: guild %q: %w", core.ErrInvalidID, guildID, err)
	}
	user, err := models.ParseSnowflake(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %q: %w", core.ErrInvalidID, userID, err)
	}

	member, err := u.discordClient.GetMember(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: member %s: %w", core.ErrNotFound, userID, err)
	}

	maybeRecord, err := u.memberPingsService.GetMemberPingInfo(ctx, guild, user)
	if err != nil {
		return nil, err
	}

	info := &models.PingInfo{
		GuildID:     guildID,
		UserID:      userID,
		DisplayName: member.DisplayName,
		AvatarURL:   member.AvatarURL,
		RequestedAt: requestedAt,
	}
	if record, ok := maybeRecord.Get(); ok {
		info.Pings = record.Pings
		info.LastEveryonePing = record.LastEveryonePing
		info.LastHerePing = record.LastHerePing
		info.LastRolePing = record.LastRolePing
		info.LastUserPing = record.LastUserPing
	}
	return info, nil
}

func (u *PingsUseCase) GetLeaderboard(ctx context.Context, guildID string, limit int) ([]*models.MemberPingRecord, error) {
	guild, err := models.ParseSnowflake(guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: guild %q: %w", core.ErrInvalidID, guildID, err)
	}
	return u.memberPingsService.GetTopMembers(ctx, guild, limit)
}

func authorName(event models.DiscordMessageEvent) string {
	if event.AuthorDisplayName != "" {
		return event.AuthorDisplayName
	}
	return event.AuthorUsername
}
