package memberpings

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"pingwatch/appctx"
	"pingwatch/core"
	"pingwatch/models"
	"pingwatch/services"
)

type MemberPingsService struct {
	repo      services.MemberPingsRepository
	txManager services.TransactionManager
	logger    *zap.Logger
}

func NewMemberPingsService(
	repo services.MemberPingsRepository,
	txManager services.TransactionManager,
	logger *zap.Logger,
) *MemberPingsService {
	return &MemberPingsService{repo: repo, txManager: txManager, logger: logger.Named("memberpings")}
}

// Reconcile folds one message's tally into the member's counter and returns the merged record.
// Every category that fired is stamped with at; the others keep their stored value.
func (s *MemberPingsService) Reconcile(
	ctx context.Context,
	guildID, userID models.Snowflake,
	at time.Time,
	tally models.MentionTally,
) (*models.MemberPingRecord, error) {
	if tally.Total() <= 0 {
		return nil, fmt.Errorf("%w: reconcile called for member %s with an empty tally", core.ErrInvariantViolation, userID)
	}

	upsert := models.NewMemberPingUpsert(guildID, userID, at, tally)

	var record *models.MemberPingRecord
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.repo.UpsertMemberPings(ctx, upsert)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reconcile pings for member %s: %w", core.ErrStorage, userID, err)
	}

	appctx.Logger(ctx, s.logger).Debug("reconciled member pings",
		zap.Stringer("user_id", userID),
		zap.Int("added", tally.Total()),
		zap.Uint64("pings", record.Pings),
	)
	return record, nil
}

func (s *MemberPingsService) GetMemberPingInfo(
	ctx context.Context,
	guildID, userID models.Snowflake,
) (mo.Option[*models.MemberPingRecord], error) {
	record, err := s.repo.GetMemberPing(ctx, guildID, userID)
	if err != nil {
		return mo.None[*models.MemberPingRecord](), fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return record, nil
}

func (s *MemberPingsService) GetLatestEveryonePing(
	ctx context.Context,
	guildID models.Snowflake,
) (mo.Option[time.Time], error) {
	latest, err := s.repo.GetLatestEveryonePing(ctx, guildID)
	if err != nil {
		return mo.None[time.Time](), fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return latest, nil
}

// GetEveryonePingSnapshot reads the guild's and the member's last @everyone ping
// and the member's current count. Used before an @everyone ping is reconciled.
func (s *MemberPingsService) GetEveryonePingSnapshot(
	ctx context.Context,
	guildID, userID models.Snowflake,
) (*models.EveryonePingSnapshot, error) {
	latest, err := s.GetLatestEveryonePing(ctx, guildID)
	if err != nil {
		return nil, err
	}
	member, err := s.GetMemberPingInfo(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.EveryonePingSnapshot{}
	if t, ok := latest.Get(); ok {
		snapshot.GuildLastEveryone = &t
	}
	if record, ok := member.Get(); ok {
		snapshot.MemberLastEveryone = record.LastEveryonePing
		snapshot.MemberPings = record.Pings
	}
	return snapshot, nil
}

func (s *MemberPingsService) GetTopMembers(
	ctx context.Context,
	guildID models.Snowflake,
	limit int,
) ([]*models.MemberPingRecord, error) {
	records, err := s.repo.GetTopMembers(ctx, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return records, nil
}
