// Package telegram sends outage, recovery and critical-stock notifications via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StatusFunc produces the reply to the /status command, already escaped for MarkdownV2.
type StatusFunc func() string

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         StatusFunc
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SetStatusSource installs the handler for /status. Call before ListenForCommands.
func (c *Client) SetStatusSource(fn StatusFunc) {
	c.status = fn
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "status":
		text := "Status unavailable"
		parseMode := ""
		if c.status != nil {
			text = c.status()
			parseMode = "MarkdownV2"
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = parseMode
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendOutage reports that the backend became unreachable.
// Call this only on the first failure of a consecutive run.
func (c *Client) SendOutage(cause error) error {
	return c.sendMarkdownV2(formatOutage(cause))
}

// SendRecovery reports the first success after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	return c.sendMarkdownV2(formatRecovery(failureCount))
}

// SendCritical lists products that just became critical.
func (c *Client) SendCritical(products []string) error {
	return c.sendMarkdownV2(formatCritical(products))
}

func formatOutage(cause error) string {
	return fmt.Sprintf("⚠️ *Backend unavailable*\n`%s`", escapeMarkdownV2(cause.Error()))
}

func formatRecovery(failureCount int) string {
	return fmt.Sprintf("✅ *Backend recovered* after %d consecutive failure\\(s\\)", failureCount)
}

func formatCritical(products []string) string {
	var b strings.Builder
	b.WriteString("🚨 *Critical stock*\n\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(p))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
