package discordbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"rankbot/ranking"
	"rankbot/statstore"
)

type commandFunc func(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string)

func (b *Bot) dispatchCommand(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	commands := map[string]commandFunc{
		"stats":           b.cmdStats,
		"progress":        b.cmdProgress,
		"leaderboard":     b.cmdLeaderboard,
		"ranks":           b.cmdRanks,
		"contribute":      b.cmdContribute,
		"add_video":       b.cmdAddVideo,
		"add_subject":     b.cmdAddSubject,
		"add_session":     b.cmdAddSession,
		"validate":        b.cmdValidate,
		"leadership":      b.cmdLeadership,
		"elite_list":      b.cmdEliteList,
		"elite_info":      b.cmdEliteInfo,
		"decay_info":      b.cmdDecayInfo,
		"decay_status":    b.cmdDecayStatus,
		"help_bot":        b.cmdHelp,
		"approve_learner": b.adminOnly(b.cmdApproveLearner),
		"promote":         b.adminOnly(b.cmdPromote),
		"elite_assign":    b.adminOnly(b.cmdEliteAssign),
		"assign_advisor":  b.adminOnly(b.cmdAssignAdvisor),
		"assign_ruler":    b.adminOnly(b.cmdAssignRuler),
		"remove_advisor":  b.adminOnly(b.cmdRemoveAdvisor),
		"remove_ruler":    b.adminOnly(b.cmdRemoveRuler),
		"force_decay":     b.adminOnly(b.cmdForceDecay),
	}

	cmd, ok := commands[name]
	if !ok {
		return
	}
	cmd(ctx, s, m, args)
}

// adminOnly wraps a command so only members with the administrator
// permission can run it.
func (b *Bot) adminOnly(fn commandFunc) commandFunc {
	return func(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
		perms, err := s.State.MessagePermissions(m.Message)
		if err != nil {
			perms, err = s.UserChannelPermissions(m.Author.ID, m.ChannelID)
		}
		if err != nil || perms&discordgo.PermissionAdministrator == 0 {
			b.reply(s, m, "You need administrator permissions for that command.")
			return
		}
		fn(ctx, s, m, args)
	}
}

// target resolves the mentioned member, defaulting to the author.
func target(m *discordgo.MessageCreate) *discordgo.User {
	if len(m.Mentions) > 0 {
		return m.Mentions[0]
	}
	return m.Author
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		b.log.Warn("send reply failed", slog.String("error", err.Error()))
	}
}

func (b *Bot) replyEmbed(s *discordgo.Session, m *discordgo.MessageCreate, embed *discordgo.MessageEmbed) {
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, embed); err != nil {
		b.log.Warn("send embed failed", slog.String("error", err.Error()))
	}
}

// replyErr turns an error into a user-visible outcome: business errors are
// shown verbatim, store faults become a generic failure.
func (b *Bot) replyErr(s *discordgo.Session, m *discordgo.MessageCreate, title string, err error) {
	msg := "Something went wrong. Please try again later."
	if ranking.IsBusiness(err) {
		msg = capitalize(err.Error())
	} else {
		b.log.Error("command failed",
			slog.String("command", title),
			slog.String("error", err.Error()))
	}
	b.replyEmbed(s, m, statusEmbed(title, msg, false))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *Bot) cmdStats(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	user := target(m)
	rec, err := b.svc.GetStats(ctx, m.GuildID, user.ID)
	if err != nil {
		b.replyErr(s, m, "Stats", err)
		return
	}
	b.replyEmbed(s, m, statsEmbed(rec))
}

func (b *Bot) cmdProgress(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	user := target(m)
	rec, err := b.svc.GetStats(ctx, m.GuildID, user.ID)
	if err != nil {
		b.replyErr(s, m, "Progress", err)
		return
	}
	b.replyEmbed(s, m, progressEmbed(rec))
}

func (b *Bot) cmdLeaderboard(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	category := "all"
	if len(args) > 0 {
		category = strings.ToLower(args[0])
	}
	recs, err := b.svc.ListGuild(ctx, m.GuildID)
	if err != nil {
		b.replyErr(s, m, "Leaderboard", err)
		return
	}
	b.replyEmbed(s, m, leaderboardEmbed(recs, category))
}

func (b *Bot) cmdRanks(_ context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.replyEmbed(s, m, ranksEmbed())
}

func (b *Bot) cmdContribute(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	_, err := b.svc.RequestContribute(ctx, m.GuildID, m.Author.ID)
	if err != nil {
		b.replyErr(s, m, "Request Failed", err)
		return
	}
	b.replyEmbed(s, m, statusEmbed("Contribution Request Received",
		"Thank you for wanting to contribute! An admin will review your request.", true))
}

func (b *Bot) cmdApproveLearner(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	user := target(m)
	rec, err := b.svc.ApproveLearner(ctx, m.GuildID, user.ID)
	if err != nil {
		b.replyErr(s, m, "Approval Failed", err)
		return
	}
	b.replyEmbed(s, m, promotionEmbed(user.Mention(), rec.Rank))
}

func (b *Bot) cmdPromote(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	user := target(m)
	rec, err := b.svc.Promote(ctx, m.GuildID, user.ID)
	if err != nil {
		if errors.Is(err, ranking.ErrNotEligible) {
			b.replyEmbed(s, m, statusEmbed("Promotion Not Available",
				user.Username+" does not meet the requirements yet.", false))
			return
		}
		b.replyErr(s, m, "Promotion Failed", err)
		return
	}
	b.replyEmbed(s, m, promotionEmbed(user.Mention(), rec.Rank))
}

func (b *Bot) cmdEliteAssign(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(m.Mentions) == 0 || len(args) < 2 {
		b.reply(s, m, "Usage: "+b.prefix+"elite_assign @user [solid|pillar|team_x]")
		return
	}
	user := m.Mentions[0]
	eliteType := strings.ToLower(args[len(args)-1])
	rec, err := b.svc.AssignElite(ctx, m.GuildID, user.ID, eliteType)
	if err != nil {
		b.replyErr(s, m, "Elite Assignment", err)
		return
	}
	b.replyEmbed(s, m, eliteAssignedEmbed(user.Mention(), rec))
}

func (b *Bot) cmdEliteList(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	recs, err := b.svc.ListByRank(ctx, m.GuildID, 5)
	if err != nil {
		b.replyErr(s, m, "Elite Members", err)
		return
	}
	b.replyEmbed(s, m, eliteListEmbed(recs))
}

func (b *Bot) cmdEliteInfo(_ context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.replyEmbed(s, m, eliteInfoEmbed())
}

func (b *Bot) cmdAssignAdvisor(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.assignLeadership(ctx, s, m, statstore.RoleAdvisor)
}

func (b *Bot) cmdAssignRuler(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.assignLeadership(ctx, s, m, statstore.RoleRuler)
}

func (b *Bot) assignLeadership(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, roleType statstore.RoleType) {
	if len(m.Mentions) == 0 {
		b.reply(s, m, "Mention the member to assign.")
		return
	}
	user := m.Mentions[0]
	rec, err := b.svc.AssignLeadership(ctx, m.GuildID, user.ID, roleType)
	if err != nil {
		b.replyErr(s, m, "Leadership Assignment", err)
		return
	}
	b.replyEmbed(s, m, leadershipChangeEmbed(user.Mention(), rec.Rank, true))
}

func (b *Bot) cmdRemoveAdvisor(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.removeLeadership(ctx, s, m, statstore.RoleAdvisor)
}

func (b *Bot) cmdRemoveRuler(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.removeLeadership(ctx, s, m, statstore.RoleRuler)
}

func (b *Bot) removeLeadership(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, roleType statstore.RoleType) {
	if len(m.Mentions) == 0 {
		b.reply(s, m, "Mention the member to remove.")
		return
	}
	user := m.Mentions[0]
	rec, err := b.svc.RemoveLeadership(ctx, m.GuildID, user.ID, roleType)
	if err != nil {
		b.replyErr(s, m, "Leadership Removal", err)
		return
	}
	b.replyEmbed(s, m, leadershipChangeEmbed(user.Mention(), rec.Rank, false))
}

func (b *Bot) cmdValidate(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if len(m.Mentions) == 0 {
		b.reply(s, m, "Mention the member to validate.")
		return
	}
	user := m.Mentions[0]
	if _, err := b.svc.Validate(ctx, m.GuildID, m.Author.ID, user.ID); err != nil {
		b.replyErr(s, m, "Promotion Validation", err)
		return
	}
	b.replyEmbed(s, m, statusEmbed("Promotion Validation",
		"Validation added for "+user.Username+"!", true))
}

func (b *Bot) cmdLeadership(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	registry := b.svc.Registry()
	rulers, err := registry.ListByType(ctx, m.GuildID, statstore.RoleRuler)
	if err != nil {
		b.replyErr(s, m, "Leadership", err)
		return
	}
	advisors, err := registry.ListByType(ctx, m.GuildID, statstore.RoleAdvisor)
	if err != nil {
		b.replyErr(s, m, "Leadership", err)
		return
	}
	b.replyEmbed(s, m, leadershipEmbed(rulers, advisors))
}

func (b *Bot) cmdDecayInfo(_ context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if b.decay == nil {
		b.reply(s, m, "Decay is not enabled.")
		return
	}
	b.replyEmbed(s, m, decayInfoEmbed(b.decay.Settings()))
}

func (b *Bot) cmdDecayStatus(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if b.decay == nil {
		b.reply(s, m, "Decay is not enabled.")
		return
	}
	user := target(m)
	rec, err := b.svc.GetStats(ctx, m.GuildID, user.ID)
	if err != nil {
		b.replyErr(s, m, "Decay Status", err)
		return
	}
	b.replyEmbed(s, m, decayStatusEmbed(rec, b.decay.Settings()))
}

func (b *Bot) cmdForceDecay(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if b.decay == nil {
		b.reply(s, m, "Decay is not enabled.")
		return
	}
	b.reply(s, m, "Starting manual decay check...")
	b.decay.SweepGuild(ctx, m.GuildID)
	b.reply(s, m, "Decay check completed!")
}

func (b *Bot) cmdAddVideo(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if err := b.svc.RecordVideo(ctx, m.GuildID, m.Author.ID, m.Author.Username); err != nil {
		b.replyErr(s, m, "Video", err)
		return
	}
	b.reply(s, m, m.Author.Mention()+" video recorded!")
}

func (b *Bot) cmdAddSubject(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if err := b.svc.RecordSubjectPost(ctx, m.GuildID, m.Author.ID, m.Author.Username); err != nil {
		b.replyErr(s, m, "Subject Post", err)
		return
	}
	b.reply(s, m, m.Author.Mention()+" subject post recorded!")
}

func (b *Bot) cmdAddSession(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	if err := b.svc.RecordHostedSession(ctx, m.GuildID, m.Author.ID, m.Author.Username); err != nil {
		b.replyErr(s, m, "Voice Session", err)
		return
	}
	b.reply(s, m, m.Author.Mention()+" voice session recorded!")
}

func (b *Bot) cmdHelp(_ context.Context, s *discordgo.Session, m *discordgo.MessageCreate, _ []string) {
	b.replyEmbed(s, m, helpEmbed(b.prefix))
}
