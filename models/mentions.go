package models

// RoleDescriptor is the subset of a guild role needed to classify mentions
type RoleDescriptor struct {
	ID string
	// CanMentionEveryone is set for roles with MENTION_EVERYONE or ADMINISTRATOR
	CanMentionEveryone bool
	Mentionable        bool
}

type PermissionVerdict struct {
	CanBroadcast bool
}

// MentionTally counts the mention categories that fired in a single message
type MentionTally struct {
	UserPings    int
	RolePings    int
	EveryonePing bool
	HerePing     bool
}

func (t MentionTally) Total() int {
	total := t.UserPings + t.RolePings
	if t.EveryonePing {
		total++
	}
	if t.HerePing {
		total++
	}
	return total
}
