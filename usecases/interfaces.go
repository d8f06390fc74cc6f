package usecases

import (
	"context"
	"time"

	"pingwatch/models"
)

// PingsUseCaseInterface defines the ping tracking operations driven by Discord and the stats API
type PingsUseCaseInterface interface {
	HandleMessage(ctx context.Context, event models.DiscordMessageEvent) (models.NotifierAction, error)
	ProcessDiscordMessageEvent(ctx context.Context, event models.DiscordMessageEvent) error
	GetPingInfo(ctx context.Context, guildID, userID string, requestedAt time.Time) (*models.PingInfo, error)
	GetLeaderboard(ctx context.Context, guildID string, limit int) ([]*models.MemberPingRecord, error)
}
