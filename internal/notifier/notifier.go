// Package notifier
package notifier

// Notifier interface for sending push notifications (e.g., Telegram).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
	SendTo(token, chatID, msg string) error
}
