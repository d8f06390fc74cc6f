package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/mo"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pingwatch/core"
	dbtx "pingwatch/db/tx"
	"pingwatch/models"
)

const pgCheckViolation = "23514"

// Column names for member_pings table
var memberPingsColumns = []string{
	"guild_id",
	"user_id",
	"last_everyone_ping",
	"last_here_ping",
	"last_role_ping",
	"last_user_ping",
	"pings",
}

type memberPingRow struct {
	GuildID          int64         `db:"guild_id"`
	UserID           int64         `db:"user_id"`
	LastEveryonePing NullTimestamp `db:"last_everyone_ping"`
	LastHerePing     NullTimestamp `db:"last_here_ping"`
	LastRolePing     NullTimestamp `db:"last_role_ping"`
	LastUserPing     NullTimestamp `db:"last_user_ping"`
	Pings            int64         `db:"pings"`
}

func (r memberPingRow) toModel() *models.MemberPingRecord {
	return &models.MemberPingRecord{
		GuildID:          models.Snowflake(r.GuildID),
		UserID:           models.Snowflake(r.UserID),
		LastEveryonePing: r.LastEveryonePing.Ptr(),
		LastHerePing:     r.LastHerePing.Ptr(),
		LastRolePing:     r.LastRolePing.Ptr(),
		LastUserPing:     r.LastUserPing.Ptr(),
		Pings:            uint64(r.Pings),
	}
}

// SQLMemberPingsRepository stores member ping counters in postgres or sqlite
type SQLMemberPingsRepository struct {
	db     *sqlx.DB
	schema string
}

func NewSQLMemberPingsRepository(db *sqlx.DB, schema string) *SQLMemberPingsRepository {
	if db.DriverName() == DriverSQLite {
		schema = SQLiteSchema
	}
	return &SQLMemberPingsRepository{db: db, schema: schema}
}

// UpsertMemberPings creates the record or merges the upsert into it in a single
// statement. Categories left nil in the upsert keep their stored timestamps and
// pings is incremented by the database, so concurrent writers never lose counts.
func (r *SQLMemberPingsRepository) UpsertMemberPings(
	ctx context.Context,
	upsert *models.MemberPingUpsert,
) (*models.MemberPingRecord, error) {
	if upsert.Pings == 0 {
		return nil, fmt.Errorf("%w: upsert for member %s carries no pings", core.ErrInvariantViolation, upsert.UserID)
	}

	columnsStr := strings.Join(memberPingsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.member_pings AS mp (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			last_everyone_ping = COALESCE(excluded.last_everyone_ping, mp.last_everyone_ping),
			last_here_ping = COALESCE(excluded.last_here_ping, mp.last_here_ping),
			last_role_ping = COALESCE(excluded.last_role_ping, mp.last_role_ping),
			last_user_ping = COALESCE(excluded.last_user_ping, mp.last_user_ping),
			pings = mp.pings + excluded.pings
		RETURNING %s`, r.schema, columnsStr, columnsStr)

	db := dbtx.GetTransactional(ctx, r.db)
	var row memberPingRow
	err := db.QueryRowxContext(
		ctx,
		db.Rebind(query),
		int64(upsert.GuildID),
		int64(upsert.UserID),
		utcOrNil(upsert.LastEveryonePing),
		utcOrNil(upsert.LastHerePing),
		utcOrNil(upsert.LastRolePing),
		utcOrNil(upsert.LastUserPing),
		int64(upsert.Pings),
	).StructScan(&row)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: %v", core.ErrInvariantViolation, err)
		}
		return nil, fmt.Errorf("failed to upsert member pings: %w", err)
	}

	return row.toModel(), nil
}

func (r *SQLMemberPingsRepository) GetMemberPing(
	ctx context.Context,
	guildID, userID models.Snowflake,
) (mo.Option[*models.MemberPingRecord], error) {
	columnsStr := strings.Join(memberPingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.member_pings
		WHERE guild_id = ? AND user_id = ?`, columnsStr, r.schema)

	db := dbtx.GetTransactional(ctx, r.db)
	var row memberPingRow
	err := db.GetContext(ctx, &row, db.Rebind(query), int64(guildID), int64(userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.MemberPingRecord](), nil
		}
		return mo.None[*models.MemberPingRecord](), fmt.Errorf("failed to get member pings: %w", err)
	}

	return mo.Some(row.toModel()), nil
}

// GetLatestEveryonePing returns the most recent @everyone ping by any member of the guild
func (r *SQLMemberPingsRepository) GetLatestEveryonePing(
	ctx context.Context,
	guildID models.Snowflake,
) (mo.Option[time.Time], error) {
	// ORDER BY instead of MAX so sqlite keeps the column type on the result
	query := fmt.Sprintf(`
		SELECT last_everyone_ping
		FROM %s.member_pings
		WHERE guild_id = ? AND last_everyone_ping IS NOT NULL
		ORDER BY last_everyone_ping DESC
		LIMIT 1`, r.schema)

	db := dbtx.GetTransactional(ctx, r.db)
	var latest NullTimestamp
	err := db.QueryRowxContext(ctx, db.Rebind(query), int64(guildID)).Scan(&latest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[time.Time](), nil
		}
		return mo.None[time.Time](), fmt.Errorf("failed to get latest everyone ping: %w", err)
	}
	if !latest.Valid {
		return mo.None[time.Time](), nil
	}

	return mo.Some(latest.Time), nil
}

// GetTopMembers returns the guild's most pinged members, highest count first
func (r *SQLMemberPingsRepository) GetTopMembers(
	ctx context.Context,
	guildID models.Snowflake,
	limit int,
) ([]*models.MemberPingRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	columnsStr := strings.Join(memberPingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.member_pings
		WHERE guild_id = ?
		ORDER BY pings DESC, user_id ASC
		LIMIT ?`, columnsStr, r.schema)

	db := dbtx.GetTransactional(ctx, r.db)
	var rows []memberPingRow
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), int64(guildID), limit); err != nil {
		return nil, fmt.Errorf("failed to get top members: %w", err)
	}

	records := make([]*models.MemberPingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isCheckViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgCheckViolation
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK
	}
	return false
}
