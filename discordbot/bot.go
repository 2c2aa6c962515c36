// Package discordbot is the gateway glue: it turns Discord events into
// activity records, dispatches prefix commands to the rank state machine,
// and mirrors rank changes back onto guild roles.
package discordbot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"rankbot/decay"
	"rankbot/ranking"
)

// Bot owns the Discord session and the per-guild state the event handlers
// need: live voice sessions and invite snapshots. Both are fields here, not
// package globals, so the handlers stay testable.
type Bot struct {
	session *discordgo.Session
	svc     *ranking.Service
	decay   *decay.Processor
	prefix  string
	log     *slog.Logger

	mu            sync.Mutex
	voiceSessions map[string]time.Time           // "guild/user" -> join time
	invites       map[string][]*discordgo.Invite // guild -> last snapshot
}

// New creates the session and registers all handlers. The decay processor
// is attached later via SetDecay because it needs the bot's guild list.
func New(token string, svc *ranking.Service, prefix string, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildInvites |
		discordgo.IntentMessageContent

	b := &Bot{
		session:       session,
		svc:           svc,
		prefix:        prefix,
		log:           log,
		voiceSessions: make(map[string]time.Time),
		invites:       make(map[string][]*discordgo.Invite),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMemberJoin)
	session.AddHandler(b.onMessage)
	session.AddHandler(b.onReactionAdd)
	session.AddHandler(b.onVoiceStateUpdate)
	session.AddHandler(b.onInviteCreate)

	return b, nil
}

// SetDecay attaches the decay processor used by the force_decay and
// decay_info commands.
func (b *Bot) SetDecay(p *decay.Processor) { b.decay = p }

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close shuts the gateway connection down.
func (b *Bot) Close() error {
	return b.session.Close()
}

// Guilds returns the IDs of every guild the session is in. Used as the
// decay sweep's guild lister.
func (b *Bot) Guilds() []string {
	var out []string
	for _, g := range b.session.State.Guilds {
		out = append(out, g.ID)
	}
	return out
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("discord session established",
		slog.String("bot", r.User.Username),
		slog.Int("guilds", len(r.Guilds)))

	for _, g := range r.Guilds {
		invites, err := s.GuildInvites(g.ID)
		if err != nil {
			b.log.Warn("cannot fetch invites",
				slog.String("guild_id", g.ID),
				slog.String("error", err.Error()))
			continue
		}
		b.mu.Lock()
		b.invites[g.ID] = invites
		b.mu.Unlock()
	}
}

// handlerCtx bounds every store call made from a gateway handler.
func handlerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}
