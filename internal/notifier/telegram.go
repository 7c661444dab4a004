// Package notifier
package notifier

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier delivers alert messages via the Telegram bot API.
type TelegramNotifier struct {
	Token   string
	ChatID  string
	Retries int
	Delay   time.Duration

	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTelegramNotifier creates a notifier with the default bot credentials.
func NewTelegramNotifier(token, chatID string, retries int, delay time.Duration, logger *zap.Logger) *TelegramNotifier {
	if retries < 1 {
		retries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		Token:      token,
		ChatID:     chatID,
		Retries:    retries,
		Delay:      delay,
		baseURL:    telegramAPI,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Send delivers one message using the configured credentials.
func (t *TelegramNotifier) Send(message string) error {
	return t.SendTo(t.Token, t.ChatID, message)
}

// SendTo delivers one message with explicit credentials, used when an alert
// target carries its own bot token and chat.
func (t *TelegramNotifier) SendTo(token, chatID, message string) error {
	if token == "" || chatID == "" {
		return fmt.Errorf("telegram credentials missing")
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, token)
	resp, err := t.httpClient.PostForm(apiURL, url.Values{
		"chat_id":    {chatID},
		"text":       {message},
		"parse_mode": {"Markdown"},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

// SendWithRetry attempts delivery up to Retries times with a fixed delay.
func (t *TelegramNotifier) SendWithRetry(message string) error {
	var err error
	for attempt := 1; attempt <= t.Retries; attempt++ {
		if err = t.Send(message); err == nil {
			return nil
		}
		t.logger.Warn("telegram send failed",
			zap.Int("attempt", attempt), zap.Int("max", t.Retries), zap.Error(err))
		if attempt < t.Retries {
			time.Sleep(t.Delay)
		}
	}
	return err
}
