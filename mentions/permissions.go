package mentions

import "pingwatch/models"

// ResolvePermissions decides whether a member may ping @everyone/@here.
// The guild's implicit @everyone role shares the guild ID and always applies to the member.
func ResolvePermissions(
	memberRoleIDs []string,
	guildRoles map[string]models.RoleDescriptor,
	guildID string,
) models.PermissionVerdict {
	effective := make([]string, 0, len(memberRoleIDs)+1)
	effective = append(effective, memberRoleIDs...)
	effective = append(effective, guildID)

	for _, roleID := range effective {
		role, ok := guildRoles[roleID]
		if ok && role.CanMentionEveryone {
			return models.PermissionVerdict{CanBroadcast: true}
		}
	}
	return models.PermissionVerdict{CanBroadcast: false}
}
