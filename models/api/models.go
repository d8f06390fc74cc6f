package api

import (
	"time"
)

// PingTimestamp is one "last pinged" value together with its humanized age
type PingTimestamp struct {
	At    time.Time `json:"at"`
	Since string    `json:"since"`
}

// PingInfoModel represents a member's ping stats returned by the API
type PingInfoModel struct {
	GuildID          string         `json:"guild_id"`
	UserID           string         `json:"user_id"`
	DisplayName      string         `json:"display_name"`
	AvatarURL        string         `json:"avatar_url,omitempty"`
	Pings            uint64         `json:"pings"`
	LastEveryonePing *PingTimestamp `json:"last_everyone_ping,omitempty"`
	LastHerePing     *PingTimestamp `json:"last_here_ping,omitempty"`
	LastRolePing     *PingTimestamp `json:"last_role_ping,omitempty"`
	LastUserPing     *PingTimestamp `json:"last_user_ping,omitempty"`
}

// LeaderboardEntryModel is one row of a guild's ping leaderboard
type LeaderboardEntryModel struct {
	Rank             int        `json:"rank"`
	UserID           string     `json:"user_id"`
	Pings            uint64     `json:"pings"`
	LastEveryonePing *time.Time `json:"last_everyone_ping,omitempty"`
}

type LeaderboardModel struct {
	GuildID string                  `json:"guild_id"`
	Entries []LeaderboardEntryModel `json:"entries"`
}

type ErrorModel struct {
	Error string `json:"error"`
}
