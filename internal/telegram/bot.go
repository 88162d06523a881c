package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ProjectStatus is one line of the /status reply
type ProjectStatus struct {
	Name     string
	Title    string
	Latest   string // empty when nothing was recorded yet
	Notifier string // chat or reason it is disabled
	Err      error
}

// StatusProvider reports tracked projects for the /status command
type StatusProvider interface {
	Status(ctx context.Context) []ProjectStatus
}

// JobRunner interface for triggering release checks
type JobRunner interface {
	TriggerCheck(ctx context.Context) error
}

// Bot handles Telegram admin commands
type Bot struct {
	api          *tgbotapi.BotAPI
	status       StatusProvider
	jobRunner    JobRunner
	allowedUsers map[int64]bool
	logger       *slog.Logger
}

// NewBot creates a new bot instance
func NewBot(token string, status StatusProvider, jobRunner JobRunner, allowedUserIDs []int64, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	allowedUsers := make(map[int64]bool)
	for _, id := range allowedUserIDs {
		allowedUsers[id] = true
	}

	return &Bot{
		api:          api,
		status:       status,
		jobRunner:    jobRunner,
		allowedUsers: allowedUsers,
		logger:       logger,
	}, nil
}

// StartPolling starts polling for updates
func (b *Bot) StartPolling(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Check if user is allowed to use commands
	if message.From == nil || !b.allowedUsers[message.From.ID] {
		return
	}

	if !message.IsCommand() {
		return
	}

	command := message.Command()

	b.logger.Info("Processing command",
		"command", command,
		"user_id", message.From.ID,
		"chat_id", message.Chat.ID)

	response := b.respond(ctx, command)

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send command reply", "command", command, "error", err)
	}
}

// respond builds the reply for a command
func (b *Bot) respond(ctx context.Context, command string) string {
	switch command {
	case "status":
		return b.handleStatus(ctx)
	case "check":
		return b.handleCheck(ctx)
	case "test":
		return "✅ Bot is working!"
	case "help", "start":
		return helpText
	default:
		return "Unknown command. Use /help for available commands."
	}
}

// handleStatus handles /status command
func (b *Bot) handleStatus(ctx context.Context) string {
	projects := b.status.Status(ctx)
	if len(projects) == 0 {
		return "No projects are being tracked."
	}

	var response strings.Builder
	response.WriteString("<b>Tracked projects:</b>\n")

	for _, p := range projects {
		name := p.Title
		if name == "" {
			name = p.Name
		}
		response.WriteString(fmt.Sprintf("\n• <b>%s</b>", html.EscapeString(name)))

		switch {
		case p.Err != nil:
			response.WriteString(fmt.Sprintf(": ❌ %s", html.EscapeString(p.Err.Error())))
		case p.Latest == "":
			response.WriteString(": no version recorded yet")
		default:
			response.WriteString(fmt.Sprintf(": <code>%s</code>", html.EscapeString(p.Latest)))
		}
		if p.Notifier != "" {
			response.WriteString(fmt.Sprintf(" → %s", html.EscapeString(p.Notifier)))
		}
	}

	return response.String()
}

// handleCheck handles /check command
func (b *Bot) handleCheck(ctx context.Context) string {
	if b.jobRunner == nil {
		return "❌ Check not available"
	}

	b.logger.Info("Manual release check triggered")

	go func() {
		if err := b.jobRunner.TriggerCheck(ctx); err != nil {
			b.logger.Error("Manual release check failed", "error", err)
		}
	}()

	return "🔄 Manual release check started..."
}

const helpText = `<b>Available commands:</b>

/status - Show tracked projects and last announced versions
/check - Run a release check now
/test - Test bot functionality
/help - Show this help message`
