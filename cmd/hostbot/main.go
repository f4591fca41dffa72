package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grvsrs/hostbot/pkg/api"
	"github.com/grvsrs/hostbot/pkg/bot"
	"github.com/grvsrs/hostbot/pkg/config"
	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
	"github.com/grvsrs/hostbot/pkg/plugins/mock"
	"github.com/grvsrs/hostbot/pkg/plugins/quotes"
	"github.com/grvsrs/hostbot/pkg/plugins/schedule"
	"github.com/grvsrs/hostbot/pkg/stream"
	"github.com/grvsrs/hostbot/pkg/transport/console"
	"github.com/grvsrs/hostbot/pkg/transport/discord"
	"github.com/grvsrs/hostbot/pkg/transport/slack"
	"github.com/grvsrs/hostbot/pkg/transport/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hostbot:", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	logger.SetLevel(logger.ParseLevel(env.LogLevel))

	cfgMgr := config.NewManager(env.ConfigFile)
	defer cfgMgr.Stop()

	if _, statErr := os.Stat(env.ConfigFile); os.IsNotExist(statErr) {
		cfgMgr.Save()
		cfgMgr.FlushNow()
		logger.InfoCF("main", "wrote default config, fill in your tokens and restart", map[string]interface{}{
			"file": env.ConfigFile,
		})
		return nil
	}

	migratedFrom, err := cfgMgr.Load()
	if err != nil {
		return err
	}
	if migratedFrom != "" {
		cfgMgr.Save()
		cfgMgr.FlushNow()
	}

	bus := events.NewBus()
	b, err := bot.New(cfgMgr, bus)
	if err != nil {
		return err
	}

	cfg := cfgMgr.Config()

	attached := 0
	if cfg.DiscordToken != "" {
		b.AddTransport(discord.New(cfg.DiscordToken, cfg.DiscordServerID, bus))
		attached++
	}
	if cfg.SlackAppToken != "" && cfg.SlackBotToken != "" {
		b.AddTransport(slack.New(cfg.SlackAppToken, cfg.SlackBotToken, bus))
		attached++
	}
	if cfg.TelegramToken != "" {
		b.AddTransport(telegram.New(cfg.TelegramToken, bus))
		attached++
	}
	if attached == 0 {
		logger.InfoC("main", "no transport tokens configured, using local console")
		b.AddTransport(console.New(bus))
	}

	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		provider := stream.NewTwitchProvider(cfg.TwitchClientID, cfg.TwitchClientSecret)
		b.SetMonitor(stream.NewMonitor(provider, bus, cfg.StreamersToMonitor,
			cfg.HostStreamer, time.Duration(cfg.PollPeriodSeconds)*time.Second))
	}

	if err := b.Plugins().Register(schedule.New(), quotes.New(), mock.New()); err != nil {
		return err
	}
	if len(cfg.EnabledPlugins) > 0 {
		if err := b.Plugins().Enable(cfg.EnabledPlugins...); err != nil {
			logger.WarnCF("main", "some configured plugins failed to enable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	var ops *api.Server
	if cfg.OpsListenAddr != "" {
		ops = api.NewServer(cfg.OpsListenAddr, bus)
		if err := ops.Start(); err != nil {
			return err
		}
	}

	if err := b.Start(); err != nil {
		return err
	}
	logger.InfoC("main", "hostbot running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.InfoC("main", "shutting down")
	if ops != nil {
		ops.Stop()
	}
	b.Stop()
	return nil
}
