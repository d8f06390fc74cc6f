package models

import (
	"fmt"
	"strconv"
	"time"
)

// Snowflake is a 64-bit Discord identifier
type Snowflake uint64

func ParseSnowflake(s string) (Snowflake, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", s, err)
	}
	return Snowflake(id), nil
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MarshalText keeps snowflakes as strings in JSON since they overflow JS numbers
func (s Snowflake) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Snowflake) UnmarshalText(text []byte) error {
	id, err := ParseSnowflake(string(text))
	if err != nil {
		return err
	}
	*s = id
	return nil
}

// MemberPingRecord is the persisted per-(guild, member) ping counter
type MemberPingRecord struct {
	GuildID          Snowflake  `json:"guild_id"`
	UserID           Snowflake  `json:"user_id"`
	LastEveryonePing *time.Time `json:"last_everyone_ping,omitempty"`
	LastHerePing     *time.Time `json:"last_here_ping,omitempty"`
	LastRolePing     *time.Time `json:"last_role_ping,omitempty"`
	LastUserPing     *time.Time `json:"last_user_ping,omitempty"`
	Pings            uint64     `json:"pings"`
}

// MemberPingUpsert carries one message's contribution to a MemberPingRecord.
// Nil timestamps mean the category did not fire and the stored value must be kept.
type MemberPingUpsert struct {
	GuildID          Snowflake
	UserID           Snowflake
	LastEveryonePing *time.Time
	LastHerePing     *time.Time
	LastRolePing     *time.Time
	LastUserPing     *time.Time
	Pings            uint64
}

// NewMemberPingUpsert stamps every category that fired in tally with at
func NewMemberPingUpsert(guildID, userID Snowflake, at time.Time, tally MentionTally) *MemberPingUpsert {
	stamp := func(fired bool) *time.Time {
		if !fired {
			return nil
		}
		t := at.UTC()
		return &t
	}

	return &MemberPingUpsert{
		GuildID:          guildID,
		UserID:           userID,
		LastEveryonePing: stamp(tally.EveryonePing),
		LastHerePing:     stamp(tally.HerePing),
		LastRolePing:     stamp(tally.RolePings > 0),
		LastUserPing:     stamp(tally.UserPings > 0),
		Pings:            uint64(tally.Total()),
	}
}

// Apply merges the upsert into an existing record, or creates one when existing is nil
func (u *MemberPingUpsert) Apply(existing *MemberPingRecord) *MemberPingRecord {
	if existing == nil {
		return &MemberPingRecord{
			GuildID:          u.GuildID,
			UserID:           u.UserID,
			LastEveryonePing: u.LastEveryonePing,
			LastHerePing:     u.LastHerePing,
			LastRolePing:     u.LastRolePing,
			LastUserPing:     u.LastUserPing,
			Pings:            u.Pings,
		}
	}

	merged := *existing
	if u.LastEveryonePing != nil {
		merged.LastEveryonePing = u.LastEveryonePing
	}
	if u.LastHerePing != nil {
		merged.LastHerePing = u.LastHerePing
	}
	if u.LastRolePing != nil {
		merged.LastRolePing = u.LastRolePing
	}
	if u.LastUserPing != nil {
		merged.LastUserPing = u.LastUserPing
	}
	merged.Pings += u.Pings
	return &merged
}

// EveryonePingSnapshot is the state captured before an @everyone ping is reconciled
type EveryonePingSnapshot struct {
	GuildLastEveryone  *time.Time
	MemberLastEveryone *time.Time
	MemberPings        uint64
}
