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
	"hr-attendance-bot/internal/qrscan"
	"hr-attendance-bot/internal/services"
)

const (
	cbAction = "act:"
	cbMethod = "method:"
	cbCancel = "cancel"

	shareLocationText   = "📍 Share location"
	declineLocationText = "🚫 Don't share"
)

var errNoLocation = errors.New("no location shared")

// chatLocation is the location provider of one chat, fed by location messages
type chatLocation struct {
	mu      sync.Mutex
	denied  bool
	reading *models.LocationReading
	maxAge  time.Duration
	now     func() time.Time
}

var _ services.LocationProvider = (*chatLocation)(nil)

func (l *chatLocation) Permission(ctx context.Context) services.Permission {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied {
		return services.PermissionDenied
	}
	if l.reading == nil || (l.maxAge > 0 && l.now().Sub(l.reading.ReadAt) > l.maxAge) {
		return services.PermissionUnavailable
	}
	return services.PermissionGranted
}

func (l *chatLocation) Current(ctx context.Context) (*models.LocationReading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reading == nil {
		return nil, errNoLocation
	}
	r := *l.reading
	return &r, nil
}

func (l *chatLocation) set(r models.LocationReading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denied = false
	l.reading = &r
}

func (l *chatLocation) deny() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.denied = true
	l.reading = nil
}

// cameraProvider grants QR scanning when photo scanning is enabled
type cameraProvider struct {
	enabled bool
}

func (c cameraProvider) Permission(ctx context.Context) services.Permission {
	if c.enabled {
		return services.PermissionGranted
	}
	return services.PermissionUnavailable
}

func (b *Bot) locationFor(chatID int64) *chatLocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locations[chatID]
	if !ok {
		l = &chatLocation{maxAge: b.opts.LocationMaxAge, now: b.clock}
		b.locations[chatID] = l
	}
	return l
}

func (b *Bot) forgetChat(chatID int64) {
	b.deps.Registry.Remove(chatID)
	b.mu.Lock()
	delete(b.locations, chatID)
	b.mu.Unlock()
}

func (b *Bot) newController(s *models.Session) *services.Controller {
	backend := b.deps.Backend(s)
	return services.NewController(services.ControllerDeps{
		Codes:       backend,
		Submissions: backend,
		Today:       backend,
		Location:    b.locationFor(s.ChatID),
		Camera:      cameraProvider{enabled: b.opts.QRScanEnabled},
		Geocoder:    b.deps.Geocoder,

		RearmDelay:     b.opts.ScanRearmDelay,
		MaxLocationAge: b.opts.LocationMaxAge,
		Now:            b.clock,
	}, identityOf(s))
}

// handleCheckIn opens a fresh flow for the chat
func (b *Bot) handleCheckIn(ctx context.Context, chatID int64) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}
	if existing, ok := b.deps.Registry.Get(chatID); ok && existing.View().Busy {
		b.send(chatID, services.UserMessage(services.ErrBusy))
		return
	}

	s.ChatID = chatID
	ctrl := b.newController(s)
	b.deps.Registry.Put(chatID, ctrl)

	if err := ctrl.Activate(ctx); err != nil {
		b.reportFlowError(chatID, err)
	}
	b.sendView(chatID, ctrl.View())
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("⚠️ Failed to answer callback: %v", err)
	}
	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	chatID := q.Message.Chat.ID

	ctrl, ok := b.deps.Registry.Get(chatID)
	if !ok {
		b.send(chatID, services.UserMessage(services.ErrNoActiveFlow))
		return
	}

	var err error
	switch {
	case strings.HasPrefix(q.Data, cbAction):
		err = ctrl.RequestAction(ctx, models.ActionKind(strings.TrimPrefix(q.Data, cbAction)))
	case strings.HasPrefix(q.Data, cbMethod):
		err = ctrl.SelectMethod(ctx, services.Method(strings.TrimPrefix(q.Data, cbMethod)))
	case q.Data == cbCancel:
		err = ctrl.Cancel()
	default:
		log.Printf("⚠️ Unknown callback data %q from chat %d", q.Data, chatID)
		return
	}

	if err != nil {
		b.reportFlowError(chatID, err)
	}
	b.sendView(chatID, ctrl.View())
}

func (b *Bot) handleLocation(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	readAt := b.clock()
	if msg.Date > 0 {
		readAt = msg.Time()
	}
	b.locationFor(chatID).set(models.LocationReading{
		Latitude:  msg.Location.Latitude,
		Longitude: msg.Location.Longitude,
		ReadAt:    readAt,
	})
	b.sendWithMarkup(chatID, "📍 Location received.", tgbotapi.NewRemoveKeyboard(true))

	ctrl, ok := b.deps.Registry.Get(chatID)
	if !ok {
		return
	}
	if err := ctrl.RefreshLocation(ctx); err != nil {
		b.reportFlowError(chatID, err)
	}
	b.sendView(chatID, ctrl.View())
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctrl, hasFlow := b.deps.Registry.Get(chatID)

	if msg.Text == declineLocationText {
		b.locationFor(chatID).deny()
		if !hasFlow {
			b.sendWithMarkup(chatID, services.UserMessage(services.ErrLocationPermissionDenied), tgbotapi.NewRemoveKeyboard(true))
			return
		}
		if err := ctrl.RefreshLocation(ctx); err != nil {
			b.sendWithMarkup(chatID, services.UserMessage(err), tgbotapi.NewRemoveKeyboard(true))
		}
		b.sendView(chatID, ctrl.View())
		return
	}

	if !hasFlow || ctrl.View().State != services.StateCodeEntry {
		b.send(chatID, "ℹ️ Use /start to see what I can do.")
		return
	}

	action := ctrl.View().Action
	_, err := ctrl.EnterCode(ctx, msg.Text)
	b.reportSubmission(chatID, ctrl, action, err)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	ctrl, ok := b.deps.Registry.Get(chatID)
	if !ok || ctrl.View().State != services.StateScanning {
		b.send(chatID, "ℹ️ Choose *Scan QR* in /checkin before sending a photo.")
		return
	}

	photo := msg.Photo[len(msg.Photo)-1]
	payload, err := b.decodePhoto(ctx, photo.FileID)
	if err != nil {
		if errors.Is(err, qrscan.ErrNoQRCode) {
			b.send(chatID, "🔍 No QR code found in the photo. Please try again.")
			return
		}
		log.Printf("❌ Failed to read photo from chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not read the photo. Please try again.")
		return
	}

	// the scan service reports the outcome to the chat itself
	if _, err := b.deps.Scans.ProcessScan(ctx, chatID, payload); errors.Is(err, services.ErrScanDebounced) {
		return
	}
	b.sendView(chatID, ctrl.View())
}

func (b *Bot) decodePhoto(ctx context.Context, fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve photo: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download photo: %s", resp.Status)
	}
	return qrscan.Decode(resp.Body)
}

// reportSubmission tells the chat how a code or scan submission went
func (b *Bot) reportSubmission(chatID int64, ctrl *services.Controller, action models.ActionKind, err error) {
	if err != nil && !errors.Is(err, services.ErrSnapshotRefreshFailed) {
		b.reportFlowError(chatID, err)
		b.sendView(chatID, ctrl.View())
		return
	}
	b.send(chatID, services.SubmittedMessage(action, ctrl.View().Snapshot))
	if err != nil {
		b.send(chatID, services.UserMessage(err))
	}
	b.sendView(chatID, ctrl.View())
}

// reportFlowError sends the user message for err, offering the location
// keyboard when the flow is waiting on a location
func (b *Bot) reportFlowError(chatID int64, err error) {
	if errors.Is(err, services.ErrScanDebounced) {
		return
	}
	if errors.Is(err, services.ErrLocationPermissionDenied) ||
		errors.Is(err, services.ErrLocationPending) ||
		errors.Is(err, services.ErrLocationUnavailable) {
		b.sendWithMarkup(chatID, services.UserMessage(err), locationKeyboard())
		return
	}
	b.send(chatID, services.UserMessage(err))
}

func (b *Bot) requestLocation(chatID int64) {
	b.sendWithMarkup(chatID, "📍 Please share your current location.", locationKeyboard())
}

func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButtonLocation(shareLocationText),
		tgbotapi.NewKeyboardButton(declineLocationText),
	))
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) sendView(chatID int64, v services.View) {
	text, markup := renderView(v)
	if markup == nil {
		b.send(chatID, text)
		return
	}
	b.sendWithMarkup(chatID, text, *markup)
}

func actionLabel(a models.ActionKind) string {
	if a == models.ActionCheckOut {
		return "check-out"
	}
	return "check-in"
}

// renderView draws the controller state. Buttons are offered only for what
// the controller currently allows.
func renderView(v services.View) (string, *tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🏢 *Attendance*\n\n")
	sb.WriteString(services.SnapshotMessage(v.Snapshot))
	sb.WriteString("\n")

	switch {
	case v.LocationDenied:
		sb.WriteString("📍 Location: denied, use /location to share it")
	case v.Location != nil && v.Location.Address != "":
		sb.WriteString("📍 Location: " + escape(v.Location.Address))
	case v.Location != nil:
		sb.WriteString("📍 Location: " + formatCoordinates(v.Location.Latitude, v.Location.Longitude))
	default:
		sb.WriteString("📍 Location: waiting")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	cancelRow := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", cbCancel))

	switch v.State {
	case services.StateIdle:
		var row []tgbotapi.InlineKeyboardButton
		if v.CanCheckIn {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ Check in", cbAction+string(models.ActionCheckIn)))
		}
		if v.CanCheckOut {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🏁 Check out", cbAction+string(models.ActionCheckOut)))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		} else if v.Snapshot.CheckedOut() {
			sb.WriteString("\n\n🎉 You are done for today.")
		}
	case services.StateAwaitingLocation:
		sb.WriteString("\n\n📍 Share your location to continue.")
	case services.StateCodeRequested, services.StateSubmitting:
		sb.WriteString("\n\n⏳ Working on it...")
	case services.StateMethodSelection:
		sb.WriteString(fmt.Sprintf("\n\nHow do you want to confirm your %s?", actionLabel(v.Action)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📷 Scan QR", cbMethod+string(services.MethodQR)),
			tgbotapi.NewInlineKeyboardButtonData("⌨️ Enter code", cbMethod+string(services.MethodCode)),
		), cancelRow)
	case services.StateScanning:
		sb.WriteString("\n\n📷 Send a photo of your attendance QR code.")
		rows = append(rows, cancelRow)
	case services.StateCodeEntry:
		sb.WriteString("\n\n⌨️ Type your 6-digit attendance code.")
		rows = append(rows, cancelRow)
	}

	if len(rows) == 0 {
		return sb.String(), nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &markup
}
