package discordbot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onMemberJoin(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User.Bot {
		return
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	rec, err := b.svc.Onboard(ctx, m.GuildID, m.User.ID, m.User.Username)
	if err != nil {
		b.log.Error("onboarding failed",
			slog.String("guild_id", m.GuildID),
			slog.String("user_id", m.User.ID),
			slog.String("error", err.Error()))
		return
	}
	b.sendWelcome(s, m.GuildID, m.User, rec.Rank)
	b.attributeInvite(ctx, s, m.GuildID)
}

// attributeInvite diffs the invite snapshot against the current list to
// credit whoever's invite gained a use.
func (b *Bot) attributeInvite(ctx context.Context, s *discordgo.Session, guildID string) {
	current, err := s.GuildInvites(guildID)
	if err != nil {
		b.log.Warn("cannot track invites",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	previous := b.invites[guildID]
	b.invites[guildID] = current
	b.mu.Unlock()

	for _, now := range current {
		for _, before := range previous {
			if now.Code != before.Code || now.Uses <= before.Uses {
				continue
			}
			if now.Inviter == nil || now.Inviter.Bot {
				return
			}
			if err := b.svc.RecordInvite(ctx, guildID, now.Inviter.ID, now.Inviter.Username); err != nil {
				b.log.Warn("record invite failed",
					slog.String("guild_id", guildID),
					slog.String("user_id", now.Inviter.ID),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (b *Bot) onInviteCreate(s *discordgo.Session, i *discordgo.InviteCreate) {
	invites, err := s.GuildInvites(i.GuildID)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.invites[i.GuildID] = invites
	b.mu.Unlock()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	if err := b.svc.RecordMessage(ctx, m.GuildID, m.Author.ID, m.Author.Username); err != nil {
		b.log.Warn("record message failed",
			slog.String("guild_id", m.GuildID),
			slog.String("user_id", m.Author.ID),
			slog.String("error", err.Error()))
	}

	if strings.HasPrefix(m.Content, b.prefix) {
		b.dispatchCommand(ctx, s, m)
	}
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	name := ""
	if r.Member != nil && r.Member.User != nil {
		name = r.Member.User.Username
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	if err := b.svc.RecordReaction(ctx, r.GuildID, r.UserID, name); err != nil {
		b.log.Warn("record reaction failed",
			slog.String("guild_id", r.GuildID),
			slog.String("user_id", r.UserID),
			slog.String("error", err.Error()))
	}
	b.creditSubjectReaction(ctx, s, r)
}

// creditSubjectReaction credits the post author when the reaction landed in
// a subjects channel. Self-reactions never count.
func (b *Bot) creditSubjectReaction(ctx context.Context, s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	ch, err := s.State.Channel(r.ChannelID)
	if err != nil || !strings.Contains(strings.ToLower(ch.Name), "subject") {
		return
	}
	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil || msg.Author == nil || msg.Author.Bot || msg.Author.ID == r.UserID {
		return
	}
	if err := b.svc.RecordSubjectReaction(ctx, r.GuildID, msg.Author.ID, msg.Author.Username); err != nil {
		b.log.Warn("record subject reaction failed",
			slog.String("guild_id", r.GuildID),
			slog.String("user_id", msg.Author.ID),
			slog.String("error", err.Error()))
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	key := v.GuildID + "/" + v.UserID

	joined := v.ChannelID != ""
	wasIn := v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != ""

	switch {
	case joined && !wasIn:
		b.mu.Lock()
		b.voiceSessions[key] = time.Now()
		b.mu.Unlock()
	case !joined && wasIn:
		b.mu.Lock()
		start, ok := b.voiceSessions[key]
		delete(b.voiceSessions, key)
		b.mu.Unlock()
		if !ok {
			return
		}
		seconds := int64(time.Since(start).Seconds())
		name := ""
		if v.Member != nil && v.Member.User != nil {
			name = v.Member.User.Username
		}
		ctx, cancel := handlerCtx()
		defer cancel()
		if err := b.svc.RecordVoiceTime(ctx, v.GuildID, v.UserID, name, seconds); err != nil {
			b.log.Warn("record voice time failed",
				slog.String("guild_id", v.GuildID),
				slog.String("user_id", v.UserID),
				slog.String("error", err.Error()))
		}
	}
}

func (b *Bot) sendWelcome(s *discordgo.Session, guildID string, user *discordgo.User, rank int) {
	channel := b.welcomeChannel(s, guildID)
	if channel == "" {
		return
	}
	embed := welcomeEmbed(user.Username, rank, b.prefix)
	if _, err := s.ChannelMessageSendEmbed(channel, embed); err != nil {
		b.log.Warn("welcome message failed",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()))
	}
}

// welcomeChannel picks the first conventional channel name, falling back to
// the first text channel the bot can see.
func (b *Bot) welcomeChannel(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	var firstText string
	for _, name := range []string{"welcome", "general", "lobby"} {
		for _, ch := range guild.Channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			if firstText == "" {
				firstText = ch.ID
			}
			if ch.Name == name {
				return ch.ID
			}
		}
	}
	return firstText
}
