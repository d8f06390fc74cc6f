package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/mo"

	"pingwatch/core"
	"pingwatch/models"
)

const memoryLockStripes = 64

type memberKey struct {
	guildID models.Snowflake
	userID  models.Snowflake
}

// InMemoryMemberPingsRepository keeps counters in process memory.
// Writers for the same member serialise on a striped lock; distinct members rarely contend.
type InMemoryMemberPingsRepository struct {
	records sync.Map // memberKey -> *models.MemberPingRecord
	stripes [memoryLockStripes]sync.Mutex
}

func NewInMemoryMemberPingsRepository() *InMemoryMemberPingsRepository {
	return &InMemoryMemberPingsRepository{}
}

func (r *InMemoryMemberPingsRepository) lockFor(key memberKey) *sync.Mutex {
	h := uint64(key.guildID)*0x9E3779B97F4A7C15 ^ uint64(key.userID)
	h ^= h >> 29
	return &r.stripes[h%memoryLockStripes]
}

func (r *InMemoryMemberPingsRepository) UpsertMemberPings(
	_ context.Context,
	upsert *models.MemberPingUpsert,
) (*models.MemberPingRecord, error) {
	if upsert.Pings == 0 {
		return nil, fmt.Errorf("%w: upsert for member %s carries no pings", core.ErrInvariantViolation, upsert.UserID)
	}

	key := memberKey{guildID: upsert.GuildID, userID: upsert.UserID}
	mu := r.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	var existing *models.MemberPingRecord
	if v, ok := r.records.Load(key); ok {
		existing = v.(*models.MemberPingRecord)
	}

	// stored records are never mutated in place so readers can load them lock-free
	merged := upsert.Apply(existing)
	r.records.Store(key, merged)

	return copyRecord(merged), nil
}

func (r *InMemoryMemberPingsRepository) GetMemberPing(
	_ context.Context,
	guildID, userID models.Snowflake,
) (mo.Option[*models.MemberPingRecord], error) {
	v, ok := r.records.Load(memberKey{guildID: guildID, userID: userID})
	if !ok {
		return mo.None[*models.MemberPingRecord](), nil
	}
	return mo.Some(copyRecord(v.(*models.MemberPingRecord))), nil
}

func (r *InMemoryMemberPingsRepository) GetLatestEveryonePing(
	_ context.Context,
	guildID models.Snowflake,
) (mo.Option[time.Time], error) {
	var latest *time.Time
	r.records.Range(func(k, v any) bool {
		if k.(memberKey).guildID != guildID {
			return true
		}
		ts := v.(*models.MemberPingRecord).LastEveryonePing
		if ts != nil && (latest == nil || ts.After(*latest)) {
			latest = ts
		}
		return true
	})

	if latest == nil {
		return mo.None[time.Time](), nil
	}
	return mo.Some(*latest), nil
}

func (r *InMemoryMemberPingsRepository) GetTopMembers(
	_ context.Context,
	guildID models.Snowflake,
	limit int,
) ([]*models.MemberPingRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var records []*models.MemberPingRecord
	r.records.Range(func(k, v any) bool {
		if k.(memberKey).guildID == guildID {
			records = append(records, copyRecord(v.(*models.MemberPingRecord)))
		}
		return true
	})

	sort.Slice(records, func(i, j int) bool {
		if records[i].Pings != records[j].Pings {
			return records[i].Pings > records[j].Pings
		}
		return records[i].UserID < records[j].UserID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func copyRecord(record *models.MemberPingRecord) *models.MemberPingRecord {
	c := *record
	return &c
}
