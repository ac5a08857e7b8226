// Package notify delivers alert messages via the Telegram Bot API.
package notify

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client handles Telegram notifications. Every message fans out to all
// configured chats; a failure for any chat fails the send as a whole so the
// caller's dedup state still treats the alert as delivered-at-most-once.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatIDs        []int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken string, chatIDs []string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if len(chatIDs) == 0 {
		return nil, errors.New("at least one chat ID is required")
	}
	ids := make([]int64, 0, len(chatIDs))
	for _, raw := range chatIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat ID %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatIDs:        ids,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send delivers an HTML message to every configured chat.
func (c *Client) Send(text string) error {
	var errs []error
	for _, chatID := range c.chatIDs {
		if err := c.sendHTML(chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// sendHTML sends one HTML message with linear-backoff retry.
func (c *Client) sendHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

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

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	return c.Send(fmt.Sprintf("⚠️ <b>Monitoring error</b>\n<code>%s</code>", escapeHTML(cycleErr.Error())))
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	return c.Send(fmt.Sprintf("✅ <b>Monitoring recovered</b> after %d consecutive failure(s)", failureCount))
}
