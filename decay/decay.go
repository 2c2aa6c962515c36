// Package decay runs the periodic inactivity sweep: shrinking accruing
// counters for inactive, non-immune members and demoting those whose raw
// activity fell below the demotion thresholds.
package decay

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"rankbot/config"
	"rankbot/ranking"
	"rankbot/statstore"
)

// GuildLister supplies the guilds to sweep; the bot provides the session's
// current guild set.
type GuildLister func() []string

// Processor drives the decay sweep on a fixed interval.
type Processor struct {
	store    statstore.Store
	svc      *ranking.Service
	guilds   GuildLister
	settings config.DecaySettings
	log      *slog.Logger
	now      func() time.Time
}

// New builds a processor. Settings default sensibly when zeroed.
func New(store statstore.Store, svc *ranking.Service, guilds GuildLister, settings config.DecaySettings, log *slog.Logger) *Processor {
	if settings.InactiveDays <= 0 {
		settings.InactiveDays = config.DefaultDecay.InactiveDays
	}
	if settings.Percent <= 0 {
		settings.Percent = config.DefaultDecay.Percent
	}
	if settings.CheckInterval <= 0 {
		settings.CheckInterval = config.DefaultDecay.CheckInterval
	}
	return &Processor{
		store:    store,
		svc:      svc,
		guilds:   guilds,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.settings.CheckInterval)
	defer ticker.Stop()

	p.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep processes every guild. Guilds run concurrently; a failure in one
// guild never aborts the others.
func (p *Processor) Sweep(ctx context.Context) {
	p.log.Info("decay sweep started")
	g, ctx := errgroup.WithContext(ctx)
	for _, guildID := range p.guilds() {
		guildID := guildID
		g.Go(func() error {
			p.SweepGuild(ctx, guildID)
			return nil
		})
	}
	_ = g.Wait()
	p.log.Info("decay sweep finished")
}

// SweepGuild decays every inactive, non-immune member of one guild and then
// checks each for demotion. Cancellation is honored between members, never
// mid-record. Per-member failures are logged and skipped.
func (p *Processor) SweepGuild(ctx context.Context, guildID string) {
	cutoff := p.now().AddDate(0, 0, -p.settings.InactiveDays)
	inactive, err := p.store.ListInactive(ctx, guildID, cutoff)
	if err != nil {
		p.log.Error("list inactive members failed",
			slog.String("guild_id", guildID),
			slog.String("error", err.Error()))
		return
	}

	processed := 0
	for _, rec := range inactive {
		select {
		case <-ctx.Done():
			p.log.Info("decay sweep cancelled",
				slog.String("guild_id", guildID),
				slog.Int("processed", processed))
			return
		default:
		}

		// ListInactive already filters the immunity flag; the rank check
		// guards members whose flag lagged a rank change.
		if rec.ImmuneToDecay || config.ImmuneRank(rec.Rank) {
			continue
		}

		if _, err := p.svc.ApplyDecay(ctx, guildID, rec.UserID, p.settings.Percent); err != nil {
			p.log.Warn("decay failed for member",
				slog.String("guild_id", guildID),
				slog.String("user_id", rec.UserID),
				slog.String("error", err.Error()))
			continue
		}

		if _, demoted, err := p.svc.MaybeDemote(ctx, guildID, rec.UserID); err != nil {
			p.log.Warn("demotion check failed",
				slog.String("guild_id", guildID),
				slog.String("user_id", rec.UserID),
				slog.String("error", err.Error()))
		} else if demoted {
			p.log.Info("inactive member demoted",
				slog.String("guild_id", guildID),
				slog.String("user_id", rec.UserID))
		}
		processed++
	}

	p.log.Info("guild decay processed",
		slog.String("guild_id", guildID),
		slog.Int("processed", processed))
}

// Settings returns the active sweep settings, for the info command.
func (p *Processor) Settings() config.DecaySettings {
	return p.settings
}
