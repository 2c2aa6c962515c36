package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rankbot/config"
	"rankbot/decay"
	"rankbot/discordbot"
	"rankbot/logging"
	"rankbot/ranking"
	"rankbot/statstore"
)

func main() {
	logger := logging.Setup("rankbot")

	cfgPath := os.Getenv("RANKBOT_CONFIG")
	settings, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if settings.DiscordToken == "" {
		logger.Error("DISCORD_BOT_TOKEN must be set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without a DSN the bot keeps everything in memory; useful for trials.
	var store statstore.Store
	if settings.DatabaseURL != "" {
		db, err := statstore.Connect(ctx, settings.DatabaseURL, settings.MaxConns)
		if err != nil {
			logger.Error("db connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("ensure schema failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = db
	} else {
		logger.Warn("no DATABASE_URL set, using in-memory store")
		store = statstore.NewMemory()
	}

	// The bot and the service reference each other: role sync needs the
	// session, the handlers need the service. The sync closure resolves the
	// bot lazily so both can be constructed in order.
	var bot *discordbot.Bot
	svc := ranking.NewService(store, logger, func(guildID, userID string, rank int, elite *statstore.EliteType) {
		if bot != nil {
			bot.SyncRank(guildID, userID, rank, elite)
		}
	})

	bot, err = discordbot.New(settings.DiscordToken, svc, settings.CommandPrefix, logger)
	if err != nil {
		logger.Error("create bot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Sweep the configured guilds when the list is set, otherwise every
	// guild the session joins.
	guilds := decay.GuildLister(bot.Guilds)
	if len(settings.Guilds) > 0 {
		guilds = func() []string { return settings.Guilds }
	}
	processor := decay.New(store, svc, guilds, settings.DecaySettings(), logger)
	bot.SetDecay(processor)

	if err := bot.Start(); err != nil {
		logger.Error("start bot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer bot.Close()

	go processor.Run(ctx)

	logger.Info("rankbot running", slog.String("prefix", settings.CommandPrefix))
	<-ctx.Done()
	logger.Info("shutting down")
}
