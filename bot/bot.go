// Package bot is the Telegram front end of the attendance flow
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
	"hr-attendance-bot/internal/services"
)

// Sender is the part of the Telegram API the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

// Backend is everything the bot reads from or writes to the HR backend on
// behalf of one logged in user
type Backend interface {
	repository.CodeService
	repository.SubmissionService
	repository.TodayRepository
	repository.HistoryRepository
	repository.ModificationRepository
}

// BackendFactory returns a backend authenticated as the session's user
type BackendFactory func(s *models.Session) Backend

// Deps are the collaborators of a Bot
type Deps struct {
	Auth     repository.AuthRepository
	Sessions repository.SessionRepository
	Backend  BackendFactory
	// Geocoder fills addresses of shared locations. Optional.
	Geocoder repository.Geocoder
	Registry *services.ControllerRegistry
	Scans    services.ScanProcessor
}

// Options tune the check-in flow
type Options struct {
	QRScanEnabled  bool
	ScanRearmDelay time.Duration
	// LocationMaxAge is how long a shared location stays usable
	LocationMaxAge time.Duration
	HTTPClient     *http.Client
}

type Bot struct {
	api        Sender
	deps       Deps
	opts       Options
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	locations map[int64]*chatLocation
	// queues holds unhandled updates per chat; a key is present while its worker runs
	queues    map[int64][]tgbotapi.Update

	wg sync.WaitGroup
}

// New creates a bot around api
func New(api Sender, deps Deps, opts Options) *Bot {
	if deps.Registry == nil {
		deps.Registry = services.NewControllerRegistry()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Bot{
		api:        api,
		deps:       deps,
		opts:       opts,
		httpClient: client,
		now:        time.Now,
		locations:  make(map[int64]*chatLocation),
		queues:     make(map[int64][]tgbotapi.Update),
	}
}

// Run handles updates until ctx is cancelled or the channel closes, then
// waits for in-flight handlers. Updates of one chat are handled in arrival
// order; different chats run concurrently.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.enqueue(ctx, update)
		}
	}
}

// enqueue appends update to its chat's queue, starting a worker when idle
func (b *Bot) enqueue(ctx context.Context, update tgbotapi.Update) {
	chatID := updateChatID(update)

	b.mu.Lock()
	pending, running := b.queues[chatID]
	b.queues[chatID] = append(pending, update)
	b.mu.Unlock()
	if running {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.drain(ctx, chatID)
	}()
}

// drain handles the chat's queued updates until the queue is empty
func (b *Bot) drain(ctx context.Context, chatID int64) {
	for {
		b.mu.Lock()
		queue := b.queues[chatID]
		if len(queue) == 0 {
			delete(b.queues, chatID)
			b.mu.Unlock()
			return
		}
		next := queue[0]
		b.queues[chatID] = queue[1:]
		b.mu.Unlock()

		b.HandleUpdate(ctx, next)
	}
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

// HandleUpdate dispatches a single update
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	switch {
	case msg.Location != nil:
		b.handleLocation(ctx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

// session loads the chat's login, replying when there is none or it expired
func (b *Bot) session(ctx context.Context, chatID int64) (*models.Session, bool) {
	s, err := b.deps.Sessions.Get(ctx, chatID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		b.send(chatID, services.UserMessage(services.ErrMissingUser))
		return nil, false
	}
	if err != nil {
		log.Printf("❌ Failed to load session for chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not load your session. Please try again.")
		return nil, false
	}
	if s.Expired(b.clock()) {
		b.deps.Registry.Remove(chatID)
		if err := b.deps.Sessions.Delete(ctx, chatID); err != nil {
			log.Printf("⚠️ Failed to delete expired session for chat %d: %v", chatID, err)
		}
		b.send(chatID, "🔐 Your session has expired. Please /login again.")
		return nil, false
	}
	return s, true
}

// clock is b.now resolved at call time
func (b *Bot) clock() time.Time {
	return b.now()
}

func identityOf(s *models.Session) services.Identity {
	return services.Identity{UserID: s.UserID, Role: s.Role}
}

func (b *Bot) send(chatID int64, text string) {
	b.sendWithMarkup(chatID, text, nil)
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Bot send error to %d: %v", chatID, err)
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}

func splitArgs(msg *tgbotapi.Message) []string {
	return strings.Fields(msg.CommandArguments())
}
