package models

import "time"

type NotifierActionKind string

const (
	NotifierActionNone            NotifierActionKind = "NONE"
	NotifierActionNotifyBroadcast NotifierActionKind = "NOTIFY_BROADCAST"
	NotifierActionAutoReply       NotifierActionKind = "AUTO_REPLY"
)

// NotifierAction is the outcome of handling one message
type NotifierAction struct {
	Kind      NotifierActionKind
	Broadcast *BroadcastNotice
	ReplyText string
}

func NoAction() NotifierAction {
	return NotifierAction{Kind: NotifierActionNone}
}

// BroadcastNotice holds everything the log channel embed shows for an @everyone ping
type BroadcastNotice struct {
	GuildID           string
	ChannelID         string
	MessageID         string
	AuthorID          string
	AuthorDisplayName string
	AuthorAvatarURL   string
	Excerpt           string
	MessageLink       string
	PingedAt          time.Time
	TotalPings        uint64
	// GuildLastEveryone is the previous @everyone ping by anyone in the guild
	GuildLastEveryone *time.Time
	// MemberLastEveryone is the previous @everyone ping by this member
	MemberLastEveryone *time.Time
}

// PingInfo is the per-member view answered by /pinginfo and the stats API
type PingInfo struct {
	GuildID          string
	UserID           string
	DisplayName      string
	AvatarURL        string
	RequestedAt      time.Time
	Pings            uint64
	LastEveryonePing *time.Time
	LastHerePing     *time.Time
	LastRolePing     *time.Time
	LastUserPing     *time.Time
}
