package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"pingwatch/models"
)

// MemberPingsRepository is the storage behind the counter store.
// Implemented by db.SQLMemberPingsRepository and db.InMemoryMemberPingsRepository.
type MemberPingsRepository interface {
	UpsertMemberPings(ctx context.Context, upsert *models.MemberPingUpsert) (*models.MemberPingRecord, error)
	GetMemberPing(ctx context.Context, guildID, userID models.Snowflake) (mo.Option[*models.MemberPingRecord], error)
	GetLatestEveryonePing(ctx context.Context, guildID models.Snowflake) (mo.Option[time.Time], error)
	GetTopMembers(ctx context.Context, guildID models.Snowflake, limit int) ([]*models.MemberPingRecord, error)
}

// MemberPingsService reconciles mention tallies into per-member counters
type MemberPingsService interface {
	Reconcile(
		ctx context.Context,
		guildID, userID models.Snowflake,
		at time.Time,
		tally models.MentionTally,
	) (*models.MemberPingRecord, error)
	GetMemberPingInfo(ctx context.Context, guildID, userID models.Snowflake) (mo.Option[*models.MemberPingRecord], error)
	GetLatestEveryonePing(ctx context.Context, guildID models.Snowflake) (mo.Option[time.Time], error)
	GetEveryonePingSnapshot(ctx context.Context, guildID, userID models.Snowflake) (*models.EveryonePingSnapshot, error)
	GetTopMembers(ctx context.Context, guildID models.Snowflake, limit int) ([]*models.MemberPingRecord, error)
}

// TransactionManager handles database transactions via context
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
