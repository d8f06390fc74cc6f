package mentions

import (
	"regexp"
	"strconv"
	"strings"

	"pingwatch/models"
)

const (
	EveryoneMention = "@everyone"
	HereMention     = "@here"
)

var roleMentionRegex = regexp.MustCompile(`<@&(\d*?)>`)

// ExtractRoleMentionTokens returns every raw role mention token in content, in order
func ExtractRoleMentionTokens(content string) []string {
	return roleMentionRegex.FindAllString(content, -1)
}

// Classify counts the mention categories that legitimately fired in one message.
// mentionedUserIDs is trusted as reported by Discord and not deduplicated.
func Classify(
	content string,
	mentionedUserIDs []string,
	roleMentionTokens []string,
	verdict models.PermissionVerdict,
	guildRoles map[string]models.RoleDescriptor,
) models.MentionTally {
	return models.MentionTally{
		UserPings:    len(mentionedUserIDs),
		RolePings:    countRolePings(roleMentionTokens, verdict, guildRoles),
		EveryonePing: verdict.CanBroadcast && strings.Contains(content, EveryoneMention),
		HerePing:     verdict.CanBroadcast && strings.Contains(content, HereMention),
	}
}

func countRolePings(
	tokens []string,
	verdict models.PermissionVerdict,
	guildRoles map[string]models.RoleDescriptor,
) int {
	distinctTokens := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		distinctTokens[token] = struct{}{}
	}

	// Members allowed to ping @everyone can ping any role, mentionable or not
	if verdict.CanBroadcast {
		return len(distinctTokens)
	}

	pinged := make(map[uint64]struct{}, len(distinctTokens))
	for token := range distinctTokens {
		roleID, ok := parseRoleMention(token)
		if !ok {
			continue
		}
		role, exists := guildRoles[strconv.FormatUint(roleID, 10)]
		if !exists || !role.Mentionable {
			continue
		}
		pinged[roleID] = struct{}{}
	}
	return len(pinged)
}

// parseRoleMention extracts the role ID from a "<@&id>" token
func parseRoleMention(token string) (uint64, bool) {
	raw, ok := strings.CutPrefix(token, "<@&")
	if !ok {
		return 0, false
	}
	raw, ok = strings.CutSuffix(raw, ">")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
