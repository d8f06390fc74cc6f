package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"pingwatch/appctx"
	"pingwatch/clients/discord"
	"pingwatch/config"
	"pingwatch/core"
	"pingwatch/middleware"
	"pingwatch/models"
	"pingwatch/usecases"
)

const pingInfoCommand = "pinginfo"

const discordIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

type DiscordEventsHandler struct {
	session      *discordgo.Session
	pingsUseCase usecases.PingsUseCaseInterface
	guilds       *config.GuildConfig
	alerts       *middleware.ErrorAlertMiddleware
	logger       *zap.Logger

	// workers bounds concurrent message processing; closed guards it once shutdown starts
	workers *pool.Pool
	mu      sync.RWMutex
	closed  bool

	respond      func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	updateStatus func(data discordgo.UpdateStatusData) error
	now          func() time.Time
}

// NewDiscordSession creates the bot session shared by the Discord client and the events handler
func NewDiscordSession(botToken string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordIntents
	return session, nil
}

func NewDiscordEventsHandler(
	session *discordgo.Session,
	pingsUseCase usecases.PingsUseCaseInterface,
	guilds *config.GuildConfig,
	alerts *middleware.ErrorAlertMiddleware,
	maxConcurrentMessages int,
	logger *zap.Logger,
) *DiscordEventsHandler {
	handler := &DiscordEventsHandler{
		session:      session,
		pingsUseCase: pingsUseCase,
		guilds:       guilds,
		alerts:       alerts,
		logger:       logger.Named("discord_events"),
		workers:      pool.New().WithMaxGoroutines(maxConcurrentMessages),
		respond: func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
			return session.InteractionRespond(interaction, resp)
		},
		updateStatus: session.UpdateStatusComplex,
		now:          time.Now,
	}

	session.AddHandler(handler.handleReadyEvent)
	session.AddHandler(handler.handleMessageCreatedEvent)
	session.AddHandler(handler.handleInteractionCreatedEvent)

	return handler
}

// StartBot opens the Discord connection and starts listening for events
func (h *DiscordEventsHandler) StartBot() error {
	if err := h.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	h.logger.Info("🤖 Discord bot is now running and listening for events",
		zap.Int("allowed_guilds", len(h.guilds.AllowedServers)))
	return nil
}

// StopBot closes the gateway connection, then waits for in-flight messages to finish
func (h *DiscordEventsHandler) StopBot() {
	if err := h.session.Close(); err != nil {
		h.logger.Warn("failed to close Discord session", zap.Error(err))
	}
	h.drain()
	h.logger.Info("🛑 Discord bot stopped")
}

func (h *DiscordEventsHandler) drain() {
	h.mu.Lock()
	alreadyClosed := h.closed
	h.closed = true
	h.mu.Unlock()

	if !alreadyClosed {
		h.workers.Wait()
	}
}

func (h *DiscordEventsHandler) handleReadyEvent(_ *discordgo.Session, r *discordgo.Ready) {
	h.logger.Info("✅ Connected to Discord",
		zap.String("bot_user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))

	if h.guilds.Status == "" {
		return
	}

	err := h.updateStatus(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name: h.guilds.Status,
			Type: activityType(h.guilds.StatusType),
		}},
	})
	if err != nil {
		h.logger.Warn("failed to update bot presence", zap.Error(err))
	}
}

func (h *DiscordEventsHandler) handleMessageCreatedEvent(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	if !h.guilds.IsAllowed(m.GuildID) {
		return
	}

	event := mapToDiscordMessageEvent(m)
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}

	ctx := appctx.SetTraceID(context.Background(), core.NewTraceID(event.Timestamp))
	ctx = appctx.SetGuildID(ctx, event.GuildID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		appctx.Logger(ctx, h.logger).Debug("dropping message received during shutdown",
			zap.String("message_id", event.MessageID))
		return
	}

	process := h.alerts.WrapEventHandler("message_create", func(ctx context.Context) error {
		appctx.Logger(ctx, h.logger).Debug("📨 Processing Discord message",
			zap.String("channel_id", event.ChannelID),
			zap.String("message_id", event.MessageID),
			zap.String("user_id", event.AuthorID))
		return h.pingsUseCase.ProcessDiscordMessageEvent(ctx, event)
	})
	h.workers.Go(func() {
		_ = process(ctx)
	})
}

func (h *DiscordEventsHandler) handleInteractionCreatedEvent(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != pingInfoCommand {
		return
	}

	ctx := appctx.SetTraceID(context.Background(), core.NewTraceID(h.now()))
	ctx = appctx.SetGuildID(ctx, i.GuildID)

	handle := h.alerts.WrapEventHandler("pinginfo", func(ctx context.Context) error {
		return h.answerPingInfo(ctx, i.Interaction, data)
	})
	_ = handle(ctx)
}

func (h *DiscordEventsHandler) answerPingInfo(
	ctx context.Context,
	interaction *discordgo.Interaction,
	data discordgo.ApplicationCommandInteractionData,
) error {
	if interaction.GuildID == "" || !h.guilds.IsAllowed(interaction.GuildID) {
		return h.respondEphemeral(interaction, "Ping stats are not tracked in this server.")
	}

	userID := pingInfoTarget(interaction, data)
	if userID == "" {
		return h.respondEphemeral(interaction, "I couldn't tell who to look up.")
	}

	info, err := h.pingsUseCase.GetPingInfo(ctx, interaction.GuildID, userID, h.now())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return h.respondEphemeral(interaction, "I couldn't find that member in this server.")
		}
		_ = h.respondEphemeral(interaction, "Something went wrong while looking up ping stats.")
		return fmt.Errorf("failed to get ping info for user %s: %w", userID, err)
	}

	err = h.respond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{discord.BuildPingInfoEmbed(info)},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to answer /%s: %w", core.ErrPresentationDispatch, pingInfoCommand, err)
	}
	return nil
}

func (h *DiscordEventsHandler) respondEphemeral(interaction *discordgo.Interaction, content string) error {
	err := h.respond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to answer /%s: %w", core.ErrPresentationDispatch, pingInfoCommand, err)
	}
	return nil
}

// pingInfoTarget returns the user option when given, otherwise the invoker
func pingInfoTarget(interaction *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) string {
	for _, option := range data.Options {
		if option.Name == "user" && option.Type == discordgo.ApplicationCommandOptionUser {
			return option.UserValue(nil).ID
		}
	}
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

// mapToDiscordMessageEvent maps a Discord SDK message event to our domain model
func mapToDiscordMessageEvent(m *discordgo.MessageCreate) models.DiscordMessageEvent {
	mentions := make([]string, 0, len(m.Mentions))
	for _, mentionedUser := range m.Mentions {
		mentions = append(mentions, mentionedUser.ID)
	}

	displayName := m.Author.DisplayName()
	var roleIDs []string
	if m.Member != nil {
		roleIDs = append([]string{}, m.Member.Roles...)
		if m.Member.Nick != "" {
			displayName = m.Member.Nick
		}
	}

	return models.DiscordMessageEvent{
		GuildID:           m.GuildID,
		ChannelID:         m.ChannelID,
		MessageID:         m.ID,
		AuthorID:          m.Author.ID,
		AuthorUsername:    m.Author.Username,
		AuthorDisplayName: displayName,
		AuthorAvatarURL:   m.Author.AvatarURL(""),
		MemberRoleIDs:     roleIDs,
		Content:           m.Content,
		Mentions:          mentions,
		Timestamp:         m.Timestamp,
	}
}

func activityType(statusType string) discordgo.ActivityType {
	switch statusType {
	case config.StatusListening:
		return discordgo.ActivityTypeListening
	case config.StatusWatching:
		return discordgo.ActivityTypeWatching
	default:
		return discordgo.ActivityTypeGame
	}
}
