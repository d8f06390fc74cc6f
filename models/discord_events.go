package models

import "time"

type DiscordMessageEvent struct {
	// GuildID is empty for direct messages
	GuildID           string
	ChannelID         string
	MessageID         string
	AuthorID          string
	AuthorUsername    string
	AuthorDisplayName string
	AuthorAvatarURL   string
	// MemberRoleIDs is nil when the gateway did not attach the author's member object
	MemberRoleIDs []string
	Content       string
	// Mentions contains the user IDs of all users mentioned in this message
	Mentions  []string
	Timestamp time.Time
}

// MessageLink returns the jump URL of the message
func (e DiscordMessageEvent) MessageLink() string {
	return "https://discord.com/channels/" + e.GuildID + "/" + e.ChannelID + "/" + e.MessageID
}
