package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/yourorg/release-tracker/internal/release"
)

// maxRetryAfter caps how long a 429 response may stall a send
const maxRetryAfter = 30 * time.Second

// Chat is a delivery target: a numeric chat id or a public @channel
type Chat struct {
	ID       int64
	Username string
}

// ParseChat accepts "-1001234567890" or "@channel"
func ParseChat(s string) (Chat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chat{}, errors.New("empty chat id")
	}
	if strings.HasPrefix(s, "@") {
		if len(s) < 2 {
			return Chat{}, fmt.Errorf("invalid channel username %q", s)
		}
		return Chat{Username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Chat{}, fmt.Errorf("invalid chat id %q: %w", s, err)
	}
	return Chat{ID: id}, nil
}

func (c Chat) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// Sender handles Telegram message sending for one bot token
type Sender struct {
	bot      *tgbotapi.BotAPI
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
}

// NewSender creates a new Telegram sender
func NewSender(token string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newSender(bot), nil
}

// NewSenderWithEndpoint creates a sender against another Bot API server.
// endpoint is a format string like tgbotapi.APIEndpoint.
func NewSenderWithEndpoint(token, endpoint string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newSender(bot), nil
}

func newSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{
		bot:      bot,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		attempts: 3,
		backoff:  500 * time.Millisecond,
	}
}

// WithPacing sets the minimum interval between API calls; zero disables pacing
func (s *Sender) WithPacing(interval time.Duration) *Sender {
	if interval <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		s.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return s
}

// WithRetry overrides the retry policy
func (s *Sender) WithRetry(attempts int, backoff time.Duration) *Sender {
	if attempts < 1 {
		attempts = 1
	}
	s.attempts = attempts
	s.backoff = backoff
	return s
}

// Send delivers one HTML message and returns its message id.
// Permanent failures wrap release.ErrDeliveryRejected, others release.ErrDeliveryFailed.
func (s *Sender) Send(ctx context.Context, chat Chat, html string) (int, error) {
	var msg tgbotapi.MessageConfig
	if chat.Username != "" {
		msg = tgbotapi.NewMessageToChannel(chat.Username, html)
	} else {
		msg = tgbotapi.NewMessage(chat.ID, html)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := s.do(ctx, msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a sent message. An unchanged text is not an error.
func (s *Sender) Edit(ctx context.Context, chat Chat, messageID int, html string) error {
	edit := tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          chat.ID,
			ChannelUsername: chat.Username,
			MessageID:       messageID,
		},
		Text:                  html,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}

	_, err := s.do(ctx, edit)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
		return nil
	}
	return err
}

// do sends with retry logic for transient errors
func (s *Sender) do(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return tgbotapi.Message{}, fmt.Errorf("%w: %v", release.ErrDeliveryFailed, err)
		}

		msg, err := s.bot.Send(c)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		// Check if error is permanent (don't retry these)
		if isPermanentError(err) {
			return tgbotapi.Message{}, fmt.Errorf("%w: %v", release.ErrDeliveryRejected, err)
		}

		if attempt < s.attempts-1 {
			backoff := time.Duration(attempt+1) * s.backoff
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				backoff = min(time.Duration(apiErr.RetryAfter)*time.Second, maxRetryAfter)
			}
			select {
			case <-ctx.Done():
				return tgbotapi.Message{}, fmt.Errorf("%w: %v", release.ErrDeliveryFailed, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return tgbotapi.Message{}, fmt.Errorf("%w: failed to send message after retries: %v", release.ErrDeliveryFailed, lastErr)
}

// isPermanentError checks if a Telegram API error is permanent and shouldn't be retried
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// These errors indicate permanent issues that won't be fixed by retrying
	permanentErrors := []string{
		"chat not found",
		"bot was blocked by the user",
		"bot was kicked",
		"user is deactivated",
		"text must be encoded in utf-8",
		"message is too long",
		"can't parse entities",
		"message to edit not found",
		"message can't be edited",
		"message is not modified",
		"unauthorized",
		"forbidden",
	}

	for _, permErr := range permanentErrors {
		if strings.Contains(errStr, permErr) {
			return true
		}
	}

	return false
}

// Channel is a notifier bound to one chat
type Channel struct {
	sender *Sender
	chat   Chat
}

// NewChannel binds a sender to a chat
func NewChannel(sender *Sender, chat Chat) *Channel {
	return &Channel{sender: sender, chat: chat}
}

// Chat returns the bound chat
func (c *Channel) Chat() Chat {
	return c.chat
}

// Send delivers one message part
func (c *Channel) Send(ctx context.Context, html string) (int, error) {
	return c.sender.Send(ctx, c.chat, html)
}

// Edit replaces a previously delivered part
func (c *Channel) Edit(ctx context.Context, messageID int, html string) error {
	return c.sender.Edit(ctx, c.chat, messageID, html)
}

// Disabled is the notifier of a project without bot token or chat
type Disabled struct {
	Reason string
}

// Send always fails with release.ErrDeliveryRejected
func (d Disabled) Send(ctx context.Context, html string) (int, error) {
	return 0, fmt.Errorf("%w: notifier not configured: %s", release.ErrDeliveryRejected, d.Reason)
}

// Edit always fails with release.ErrDeliveryRejected
func (d Disabled) Edit(ctx context.Context, messageID int, html string) error {
	return fmt.Errorf("%w: notifier not configured: %s", release.ErrDeliveryRejected, d.Reason)
}
