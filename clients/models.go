package clients

// DiscordMember is a guild member as seen by the ping tracker
type DiscordMember struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	RoleIDs     []string
}
