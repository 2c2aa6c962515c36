package discordbot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"rankbot/config"
	"rankbot/ranking"
	"rankbot/statstore"
)

const (
	colorSuccess = 0x2ecc71
	colorFailure = 0xe74c3c
	colorWarning = 0xe67e22
	colorInfo    = 0x3498db
	colorGold    = 0xf1c40f
)

func statusEmbed(title, message string, ok bool) *discordgo.MessageEmbed {
	color := colorSuccess
	if !ok {
		color = colorFailure
	}
	return &discordgo.MessageEmbed{Title: title, Description: message, Color: color}
}

func rankName(rec statstore.StatRecord) string {
	name := config.Ranks[rec.Rank].Name
	if rec.Rank == config.RankElite && rec.EliteType != nil {
		if info, ok := config.EliteTypes[string(*rec.EliteType)]; ok {
			name += " - " + info.Name
		}
	}
	return name
}

func welcomeEmbed(username string, rank int, prefix string) *discordgo.MessageEmbed {
	info := config.Ranks[rank]
	return &discordgo.MessageEmbed{
		Title: "Welcome " + username + "!",
		Description: fmt.Sprintf("You have been assigned the **%s** rank.\n\n%s\n\n"+
			"Complete your onboarding and use `%scontribute` when ready to become a Learner!",
			info.Name, info.Description, prefix),
		Color: info.Color,
	}
}

func statsEmbed(rec statstore.StatRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Stats for " + rec.DisplayName,
		Description: fmt.Sprintf("Rank: **%s**", rankName(rec)),
		Color:       config.Ranks[rec.Rank].Color,
	}
	add := func(name, value string, inline bool) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: name, Value: value, Inline: inline,
		})
	}
	add("Overall Score", fmt.Sprintf("%.2f pts", ranking.Score(rec)), false)
	add("Voice Time", fmt.Sprintf("%.2f hours", rec.VoiceHours()), true)
	add("Messages", fmt.Sprintf("%d", rec.MessageCount), true)
	add("Invites", fmt.Sprintf("%d", rec.InviteCount), true)
	add("Reactions", fmt.Sprintf("%d", rec.ReactionCount), true)
	add("Videos Shared", fmt.Sprintf("%d", rec.VideosShared), true)
	add("Subject Posts", fmt.Sprintf("%d", rec.SubjectPosts), true)
	add("Voice Sessions Hosted", fmt.Sprintf("%d", rec.SessionsHosted), true)
	add("Validations", fmt.Sprintf("%d", rec.Validations), true)
	if rec.ImmuneToDecay {
		add("Decay Immunity", "✅ Immune", true)
	}
	return embed
}

func requirementLabel(req ranking.Requirement) string {
	parts := strings.Split(string(req), "_")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func requirementValue(req ranking.Requirement, c ranking.Check) string {
	status := "❌"
	if c.Passed {
		status = "✅"
	}
	switch req {
	case ranking.ReqVoiceTimeHours:
		return fmt.Sprintf("%s %.1f/%.0f hours", status, c.Current, c.Required)
	case ranking.ReqWantsToContribute:
		answer := "No"
		if c.Current >= 1 {
			answer = "Yes"
		}
		return fmt.Sprintf("%s %s", status, answer)
	default:
		return fmt.Sprintf("%s %.0f/%.0f", status, c.Current, c.Required)
	}
}

func progressEmbed(rec statstore.StatRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Progress for " + rec.DisplayName,
		Description: fmt.Sprintf("Current Rank: **%s**", rankName(rec)),
		Color:       config.Ranks[rec.Rank].Color,
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Overall Score",
		Value: fmt.Sprintf("%.2f points", ranking.Score(rec)),
	})

	eligible, targetRank, progress := ranking.Evaluate(rec)
	if rec.Rank >= config.RankElite {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Status",
			Value: fmt.Sprintf("You have reached **%s** rank!", config.Ranks[rec.Rank].Name),
		})
		return embed
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("Progress to %s", config.Ranks[targetRank].Name),
		Value: config.PromotionRequirements[targetRank].Description,
	})
	for _, req := range ranking.RequirementOrder {
		c, ok := progress[req]
		if !ok {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   requirementLabel(req),
			Value:  requirementValue(req, c),
			Inline: true,
		})
	}
	if eligible {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Ready for Promotion!",
			Value: fmt.Sprintf("You can be promoted to **%s**!", config.Ranks[targetRank].Name),
		})
	}
	return embed
}

func leaderboardEmbed(recs []statstore.StatRecord, category string) *discordgo.MessageEmbed {
	if len(recs) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Leaderboard",
			Description: "No users found!",
			Color:       colorFailure,
		}
	}

	var title string
	var valueOf func(statstore.StatRecord) string
	switch category {
	case "voice":
		title = "Voice Time Leaderboard"
		sort.Slice(recs, func(i, j int) bool { return recs[i].VoiceTimeSecs > recs[j].VoiceTimeSecs })
		valueOf = func(r statstore.StatRecord) string { return fmt.Sprintf("%.1fh", r.VoiceHours()) }
	case "messages":
		title = "Messages Leaderboard"
		sort.Slice(recs, func(i, j int) bool { return recs[i].MessageCount > recs[j].MessageCount })
		valueOf = func(r statstore.StatRecord) string { return fmt.Sprintf("%d msgs", r.MessageCount) }
	case "invites":
		title = "Invites Leaderboard"
		sort.Slice(recs, func(i, j int) bool { return recs[i].InviteCount > recs[j].InviteCount })
		valueOf = func(r statstore.StatRecord) string { return fmt.Sprintf("%d invites", r.InviteCount) }
	default:
		title = "Overall Leaderboard"
		sort.Slice(recs, func(i, j int) bool { return ranking.Score(recs[i]) > ranking.Score(recs[j]) })
		valueOf = func(r statstore.StatRecord) string { return fmt.Sprintf("%.1f pts", ranking.Score(r)) }
	}

	embed := &discordgo.MessageEmbed{Title: title, Color: colorGold}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, rec := range recs {
		if i >= 10 {
			break
		}
		medal := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			medal = medals[i]
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s %s (%s)", medal, rec.DisplayName, config.Ranks[rec.Rank].Name),
			Value: valueOf(rec),
		})
	}
	return embed
}

func ranksEmbed() *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Ranking System",
		Description: "All available ranks in the server",
		Color:       colorInfo,
	}
	for level := config.RankViewer; level <= config.RankRuler; level++ {
		info := config.Ranks[level]
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s", level, info.Name),
			Value: info.Description,
		})
	}
	return embed
}

func promotionEmbed(mention string, rank int) *discordgo.MessageEmbed {
	info := config.Ranks[rank]
	return &discordgo.MessageEmbed{
		Title:       "Promotion Successful!",
		Description: fmt.Sprintf("%s has been promoted to **%s**!", mention, info.Name),
		Color:       info.Color,
	}
}

func eliteAssignedEmbed(mention string, rec statstore.StatRecord) *discordgo.MessageEmbed {
	info := config.EliteTypes[string(*rec.EliteType)]
	embed := &discordgo.MessageEmbed{
		Title:       "Elite Type Assigned",
		Description: fmt.Sprintf("%s has been assigned as **%s**!", mention, info.Name),
		Color:       config.Ranks[config.RankElite].Color,
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "Description", Value: info.Description,
	})
	return embed
}

func eliteListEmbed(recs []statstore.StatRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Elite Members",
		Description: fmt.Sprintf("Total Elite Members: %d", len(recs)),
		Color:       config.Ranks[config.RankElite].Color,
	}
	if len(recs) == 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "No Elite Members", Value: "Be the first to reach Elite rank!",
		})
		return embed
	}

	byType := map[string][]string{}
	for _, rec := range recs {
		key := ""
		if rec.EliteType != nil {
			key = string(*rec.EliteType)
		}
		byType[key] = append(byType[key], rec.DisplayName)
	}
	for _, et := range []string{"solid", "pillar", "team_x"} {
		if names := byType[et]; len(names) > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   fmt.Sprintf("%s (%d)", config.EliteTypes[et].Name, len(names)),
				Value:  strings.Join(names, "\n"),
				Inline: true,
			})
		}
	}
	if names := byType[""]; len(names) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("Unassigned (%d)", len(names)),
			Value:  strings.Join(names, "\n"),
			Inline: true,
		})
	}
	return embed
}

func eliteInfoEmbed() *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Elite System Information",
		Description: "Elite members are immune to point decay and are divided into three subtypes:",
		Color:       config.Ranks[config.RankElite].Color,
	}
	for _, et := range []string{"solid", "pillar", "team_x"} {
		info := config.EliteTypes[et]
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: info.Name, Value: info.Description,
		})
	}
	return embed
}

func leadershipChangeEmbed(mention string, rank int, assigned bool) *discordgo.MessageEmbed {
	info := config.Ranks[rank]
	if assigned {
		return &discordgo.MessageEmbed{
			Title:       info.Name + " Assignment",
			Description: fmt.Sprintf("%s has been assigned as %s!", mention, info.Name),
			Color:       info.Color,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "Leadership Removal",
		Description: fmt.Sprintf("%s has been returned to **%s**.", mention, info.Name),
		Color:       colorWarning,
	}
}

func leadershipEmbed(rulers, advisors []statstore.LeadershipAssignment) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Leadership Structure",
		Color: config.Ranks[config.RankRuler].Color,
	}

	mentionList := func(list []statstore.LeadershipAssignment) string {
		var lines []string
		for _, a := range list {
			lines = append(lines, "<@"+a.UserID+">")
		}
		return strings.Join(lines, "\n")
	}

	if len(rulers) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Ruler (%d/%d)", len(rulers), config.MaxRulers),
			Value: mentionList(rulers),
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Ruler", Value: "Position vacant",
		})
	}
	if len(advisors) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Advisors (%d/%d)", len(advisors), config.MaxAdvisors),
			Value: mentionList(advisors),
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Advisors", Value: "No advisors assigned",
		})
	}
	return embed
}

func decayInfoEmbed(settings config.DecaySettings) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Point Decay System",
		Description: "Inactive users will experience point decay to encourage consistent participation.",
		Color:       colorWarning,
	}
	add := func(name, value string, inline bool) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: name, Value: value, Inline: inline,
		})
	}
	add("Inactivity Period", fmt.Sprintf("%d days", settings.InactiveDays), true)
	add("Decay Rate", fmt.Sprintf("%d%% per check", settings.Percent), true)
	add("Check Frequency", fmt.Sprintf("Every %s", settings.CheckInterval), true)
	add("Immune Ranks", fmt.Sprintf("%s, %s, %s",
		config.Ranks[config.RankElite].Name,
		config.Ranks[config.RankAdvisor].Name,
		config.Ranks[config.RankRuler].Name), false)
	add("How to Avoid Decay",
		"Stay active! Send messages, join voice channels, and participate in the community.", false)
	return embed
}

func decayStatusEmbed(rec statstore.StatRecord, settings config.DecaySettings) *discordgo.MessageEmbed {
	daysInactive := int(time.Since(rec.LastActivity).Hours() / 24)
	safe := rec.ImmuneToDecay || daysInactive < settings.InactiveDays

	color := colorSuccess
	if !safe {
		color = colorFailure
	}
	embed := &discordgo.MessageEmbed{
		Title: "Decay Status - " + rec.DisplayName,
		Color: color,
	}
	immunity := "Not Immune"
	if rec.ImmuneToDecay {
		immunity = "Immune"
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Immunity Status", Value: immunity, Inline: true},
		&discordgo.MessageEmbedField{
			Name: "Days Since Last Activity", Value: fmt.Sprintf("%d days", daysInactive), Inline: true,
		},
	)
	if !safe {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Warning",
			Value: fmt.Sprintf("You are inactive and will lose %d%% of your points!", settings.Percent),
		})
	}
	return embed
}

func helpEmbed(prefix string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Community Ranking Bot - Commands",
		Description: "Complete command list organized by category",
		Color:       0x9b59b6,
	}
	p := prefix
	add := func(name, value string) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value})
	}
	add("User Commands",
		"`"+p+"stats [@user]` - View user statistics\n"+
			"`"+p+"progress [@user]` - View promotion progress\n"+
			"`"+p+"contribute` - Request to become a Learner\n"+
			"`"+p+"add_video` - Log a shared video\n"+
			"`"+p+"add_subject` - Log a subject post\n"+
			"`"+p+"add_session` - Log a hosted voice session")
	add("Leaderboards",
		"`"+p+"leaderboard [all|voice|messages|invites]` - View rankings\n"+
			"`"+p+"ranks` - View all rank information")
	add("Elite & Leadership",
		"`"+p+"elite_list` - View Elite members\n"+
			"`"+p+"elite_info` - Elite system information\n"+
			"`"+p+"leadership` - View current leaders\n"+
			"`"+p+"validate @user` - Validate user for promotion (Advisor/Ruler only)")
	add("Decay System",
		"`"+p+"decay_info` - View decay system information\n"+
			"`"+p+"decay_status [@user]` - Check decay status")
	add("Admin Commands",
		"`"+p+"approve_learner @user` - Approve Viewer → Learner\n"+
			"`"+p+"promote @user` - Promote user to next rank\n"+
			"`"+p+"elite_assign @user [solid|pillar|team_x]` - Assign Elite type\n"+
			"`"+p+"assign_advisor @user` - Assign Advisor role\n"+
			"`"+p+"assign_ruler @user` - Assign Ruler role\n"+
			"`"+p+"remove_advisor @user` - Remove Advisor\n"+
			"`"+p+"remove_ruler @user` - Remove Ruler\n"+
			"`"+p+"force_decay` - Run decay check manually")
	return embed
}
