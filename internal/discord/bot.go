// Package discord connects the screening service to a Discord guild:
// it watches message attachments, removes images that match a
// registered fingerprint, and exposes moderator commands for managing
// the registry.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"sentra/internal/config"
	"sentra/internal/logging"
	"sentra/internal/matchlog"
	"sentra/internal/notifications"
	"sentra/internal/screening"
)

// Bot owns the Discord session and its event handlers.
type Bot struct {
	session  *discordgo.Session
	screener *screening.Service
	history  *matchlog.Store
	notifier notifications.Service
	logger   *slog.Logger

	prefix       string
	alertMessage string
	noticeTTL    time.Duration
	downloader   *downloader
}

// Options wires a Bot to the rest of the daemon. History may be nil
// when detection logging is disabled.
type Options struct {
	Config   *config.Config
	Screener *screening.Service
	History  *matchlog.Store
	Notifier notifications.Service
	Logger   *slog.Logger
}

// New creates a Bot and registers its handlers. The session is not
// opened until Start.
func New(opts Options) (*Bot, error) {
	token := opts.Config.BotToken()
	if token == "" {
		return nil, fmt.Errorf("discord bot token not configured (set discord.token or %s)", config.EnvTokenName)
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	cfg := opts.Config.Discord
	bot := &Bot{
		session:      session,
		screener:     opts.Screener,
		history:      opts.History,
		notifier:     opts.Notifier,
		logger:       logging.NewComponentLogger(opts.Logger, "discord"),
		prefix:       cfg.CommandPrefix,
		alertMessage: cfg.AlertMessage,
		noticeTTL:    time.Duration(cfg.NoticeTTLSeconds) * time.Second,
		downloader: &downloader{
			client:   &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second},
			maxBytes: int64(cfg.MaxDownloadMiB) << 20,
		},
	}
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)
	return bot, nil
}

// Start opens the gateway connection. It returns once the connection
// is established; events are delivered on discordgo's goroutines.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	b.logger.Info("discord session opened")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	if b == nil || b.session == nil {
		return nil
	}
	b.logger.Info("closing discord session")
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, ready *discordgo.Ready) {
	b.logger.Info("connected to discord",
		logging.String("username", ready.User.Username),
		logging.Int("guild_count", len(ready.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	if cmd, args, ok := parseCommand(b.prefix, m.Content); ok {
		b.handleCommand(s, m, cmd, args)
		return
	}

	b.screenMessage(s, m)
}
