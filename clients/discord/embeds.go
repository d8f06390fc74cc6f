package discord

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"pingwatch/models"
	"pingwatch/utils"
)

const (
	EmbedColor   = 0xEF5858
	FooterText   = "Pingwatch"
	emptyExcerpt = "*(no text)*"
)

// BuildBroadcastEmbed renders the log channel notice for an @everyone ping
func BuildBroadcastEmbed(notice *models.BroadcastNotice) *discordgo.MessageEmbed {
	excerpt := notice.Excerpt
	if excerpt == "" {
		excerpt = emptyExcerpt
	}

	embed := themedEmbed(notice.AuthorAvatarURL, notice.PingedAt)
	embed.Title = fmt.Sprintf("_%s pinged @everyone!_", notice.AuthorDisplayName)
	embed.URL = notice.MessageLink
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Message", Value: excerpt},
		{Name: "Author", Value: "<@" + notice.AuthorID + ">", Inline: true},
		{Name: "Total Pings", Value: strconv.FormatUint(notice.TotalPings, 10), Inline: true},
	}

	if notice.GuildLastEveryone != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Time since last @everyone",
			Value: utils.FormatSince(*notice.GuildLastEveryone, notice.PingedAt),
		})
	}
	if notice.MemberLastEveryone != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Time since %s last pinged @everyone", notice.AuthorDisplayName),
			Value: utils.FormatSince(*notice.MemberLastEveryone, notice.PingedAt),
		})
	}
	return embed
}

// BuildPingInfoEmbed renders a member's ping stats for /pinginfo
func BuildPingInfoEmbed(info *models.PingInfo) *discordgo.MessageEmbed {
	embed := themedEmbed(info.AvatarURL, info.RequestedAt)
	embed.Title = fmt.Sprintf("%s's Ping Stats", info.DisplayName)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Total Pings", Value: strconv.FormatUint(info.Pings, 10)},
	}

	since := []struct {
		label string
		at    *time.Time
	}{
		{"@everyone", info.LastEveryonePing},
		{"@here", info.LastHerePing},
		{"@role", info.LastRolePing},
		{"@User", info.LastUserPing},
	}
	for _, s := range since {
		if s.at == nil {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Time since last " + s.label,
			Value:  utils.FormatSince(*s.at, info.RequestedAt),
			Inline: true,
		})
	}
	return embed
}

func themedEmbed(avatarURL string, at time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Color:     EmbedColor,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	if avatarURL != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: FooterText, IconURL: avatarURL}
	}
	return embed
}
