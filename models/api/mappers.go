package api

import (
	"time"

	"pingwatch/models"
	"pingwatch/utils"
)

// DomainPingInfoToAPIPingInfo converts a domain PingInfo to its API model.
// Ages are measured from the info's RequestedAt.
func DomainPingInfoToAPIPingInfo(info *models.PingInfo) *PingInfoModel {
	if info == nil {
		return nil
	}

	return &PingInfoModel{
		GuildID:          info.GuildID,
		UserID:           info.UserID,
		DisplayName:      info.DisplayName,
		AvatarURL:        info.AvatarURL,
		Pings:            info.Pings,
		LastEveryonePing: toPingTimestamp(info.LastEveryonePing, info.RequestedAt),
		LastHerePing:     toPingTimestamp(info.LastHerePing, info.RequestedAt),
		LastRolePing:     toPingTimestamp(info.LastRolePing, info.RequestedAt),
		LastUserPing:     toPingTimestamp(info.LastUserPing, info.RequestedAt),
	}
}

// DomainRecordsToAPILeaderboard converts records, already ordered by rank, to the leaderboard model
func DomainRecordsToAPILeaderboard(guildID string, records []*models.MemberPingRecord) *LeaderboardModel {
	entries := make([]LeaderboardEntryModel, 0, len(records))
	for i, record := range records {
		entries = append(entries, LeaderboardEntryModel{
			Rank:             i + 1,
			UserID:           record.UserID.String(),
			Pings:            record.Pings,
			LastEveryonePing: record.LastEveryonePing,
		})
	}
	return &LeaderboardModel{GuildID: guildID, Entries: entries}
}

func toPingTimestamp(at *time.Time, now time.Time) *PingTimestamp {
	if at == nil {
		return nil
	}
	return &PingTimestamp{At: at.UTC(), Since: utils.FormatSince(*at, now)}
}
