package bot

import (
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hr-attendance-bot/internal/services"
)

// Notifier implements services.BotNotifier on top of the Telegram API
type Notifier struct {
	api         Sender
	adminChatID int64
}

// NewNotifier creates a new bot notifier. An empty or invalid
// authorizedChatID disables admin notifications.
func NewNotifier(api Sender, authorizedChatID string) *Notifier {
	n := &Notifier{api: api}
	if authorizedChatID != "" {
		id, err := strconv.ParseInt(authorizedChatID, 10, 64)
		if err == nil {
			n.adminChatID = id
		} else {
			log.Printf("⚠️ Ignoring invalid AUTHORIZED_CHAT_ID %q", authorizedChatID)
		}
	}
	return n
}

// SendNotification sends a notification to the admin chat
func (n *Notifier) SendNotification(message string) {
	if n.api == nil || n.adminChatID == 0 {
		return
	}
	n.send(n.adminChatID, message)
}

// SendPersonalNotification sends a notification to a specific chat
func (n *Notifier) SendPersonalNotification(chatID int64, message string) {
	if n.api == nil {
		return
	}
	n.send(chatID, message)
}

func (n *Notifier) send(chatID int64, message string) {
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("Failed to send to %d: %v", chatID, err)
	}
}

// Ensure Notifier implements the BotNotifier interface
var _ services.BotNotifier = (*Notifier)(nil)
