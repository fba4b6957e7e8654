package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hr-attendance-bot/internal/export"
	"hr-attendance-bot/internal/models"
	"hr-attendance-bot/internal/repository"
	"hr-attendance-bot/internal/services"
)

const helpText = "🏢 *Attendance Bot*\n\n" +
	"*Commands:*\n" +
	"/login <id> <password> - Sign in\n" +
	"/logout - Sign out\n" +
	"/checkin - Check in or out\n" +
	"/location - Share your location\n" +
	"/history \\[page] - Recent attendance\n" +
	"/summary - This month\n" +
	"/export - Download history as Excel\n" +
	"/modify <YYYY-MM-DD> <HH:MM> <HH:MM> <reason> - Request a correction\n" +
	"/requests - Your correction requests\n\n" +
	"*Managers:*\n" +
	"/pending <departmentId> - Requests waiting for you\n" +
	"/approve <id> \\[comment]\n" +
	"/reject <id> \\[comment]"

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText)
	case "login":
		b.handleLogin(ctx, msg)
	case "logout":
		b.handleLogout(ctx, chatID)
	case "checkin":
		b.handleCheckIn(ctx, chatID)
	case "location":
		b.requestLocation(chatID)
	case "history":
		b.handleHistory(ctx, msg)
	case "summary":
		b.handleSummary(ctx, chatID)
	case "export":
		b.handleExport(ctx, chatID)
	case "modify":
		b.handleModify(ctx, msg)
	case "requests":
		b.handleRequests(ctx, chatID)
	case "pending":
		b.handlePending(ctx, msg)
	case "approve":
		b.handleDecision(ctx, msg, true)
	case "reject":
		b.handleDecision(ctx, msg, false)
	default:
		b.send(chatID, "Unknown command. Use /start")
	}
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := splitArgs(msg)
	if len(args) != 2 {
		b.send(chatID, "Usage: `/login <id> <password>`")
		return
	}

	// the message carries a password
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		log.Printf("⚠️ Failed to delete login message in chat %d: %v", chatID, err)
	}

	s, err := b.deps.Auth.Login(ctx, args[0], args[1])
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidCredentials) && !errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("❌ Login failed for chat %d: %v", chatID, err)
		}
		b.send(chatID, services.UserMessage(err))
		return
	}

	s.ChatID = chatID
	if err := b.deps.Sessions.Save(ctx, s); err != nil {
		log.Printf("❌ Failed to save session for chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not save your session. Please try again.")
		return
	}
	b.deps.Registry.Remove(chatID)

	b.send(chatID, fmt.Sprintf("✅ Logged in as user %s (%s).\nUse /checkin to record attendance.",
		escape(s.UserID), strings.ToLower(string(s.Role))))
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	b.forgetChat(chatID)
	if err := b.deps.Sessions.Delete(ctx, chatID); err != nil {
		log.Printf("❌ Failed to delete session for chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not log you out. Please try again.")
		return
	}
	b.send(chatID, "👋 Logged out.")
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	page := 1
	if args := splitArgs(msg); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			b.send(chatID, "Usage: `/history [page]`")
			return
		}
		page = n
	}

	svc := services.NewHistoryService(b.deps.Backend(s))
	from, to := svc.RecentWindow()
	result, err := svc.Page(ctx, s.UserID, from, to, page-1)
	if err != nil {
		log.Printf("❌ Failed to load history for chat %d: %v", chatID, err)
		b.send(chatID, services.UserMessage(err))
		return
	}
	if len(result.Records) == 0 {
		b.send(chatID, "No history found")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *History* (page %d)\n\n", page))
	for _, rec := range result.Records {
		sb.WriteString(historyLine(rec))
		sb.WriteString("\n")
	}
	if result.HasNext {
		sb.WriteString(fmt.Sprintf("\nMore: /history %d", page+1))
	}
	b.send(chatID, sb.String())
}

func historyLine(rec models.AttendanceRecord) string {
	date := "--/--"
	if rec.CheckInTime != nil {
		date = rec.CheckInTime.Format("02/01")
	}
	in, out := "--:--", "--:--"
	if rec.CheckInTime != nil {
		in = rec.CheckInTime.Format("15:04")
	}
	if rec.CheckOutTime != nil {
		out = rec.CheckOutTime.Format("15:04")
	}
	return fmt.Sprintf("%s: %s - %s %s", date, in, out, escape(rec.Status))
}

func (b *Bot) handleSummary(ctx context.Context, chatID int64) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	summary, from, err := services.NewHistoryService(b.deps.Backend(s)).MonthSummary(ctx, s.UserID)
	if err != nil {
		log.Printf("❌ Failed to load summary for chat %d: %v", chatID, err)
		b.send(chatID, services.UserMessage(err))
		return
	}
	b.send(chatID, fmt.Sprintf("📊 *Summary %s*\nPresent: %d/%d days\nLate: %d\nAbsent: %d\nHours: %.1f (avg %.1f)",
		from.Format("01/2006"), summary.PresentDays, summary.TotalDays, summary.LateDays,
		summary.AbsentDays, summary.TotalWorkingHours, summary.AverageWorkingHours))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	svc := services.NewHistoryService(b.deps.Backend(s))
	from, to := svc.RecentWindow()
	records, err := svc.All(ctx, s.UserID, from, to)
	if err != nil {
		log.Printf("❌ Failed to load history for export in chat %d: %v", chatID, err)
		b.send(chatID, services.UserMessage(err))
		return
	}
	buf, err := export.HistoryWorkbook(records)
	if err != nil {
		log.Printf("❌ Failed to build workbook for chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not build the spreadsheet.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: export.FileName(s.UserID, from), Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("📎 %d records since %s", len(records), from.Format("02/01/2006"))
	if _, err := b.api.Send(doc); err != nil {
		log.Printf("Bot send error to %d: %v", chatID, err)
	}
}

func (b *Bot) handleModify(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := splitArgs(msg)
	if len(args) < 4 {
		b.send(chatID, "Usage: `/modify <YYYY-MM-DD> <HH:MM> <HH:MM> <reason>`")
		return
	}
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	backend := b.deps.Backend(s)
	req, err := services.NewModificationService(backend, backend).Submit(ctx, s.UserID, services.ModificationInput{
		Date:     args[0],
		CheckIn:  args[1],
		CheckOut: args[2],
		Reason:   strings.Join(args[3:], " "),
	})
	if err != nil {
		if !services.IsValidationError(err) {
			log.Printf("❌ Modification request failed for chat %d: %v", chatID, err)
		}
		b.send(chatID, services.UserMessage(err))
		return
	}
	b.send(chatID, fmt.Sprintf("📝 Correction request #%d submitted (%s).", req.ID, statusLabel(req.Status)))
}

func (b *Bot) handleRequests(ctx context.Context, chatID int64) {
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	backend := b.deps.Backend(s)
	list, err := services.NewModificationService(backend, backend).Mine(ctx, s.UserID)
	if err != nil {
		log.Printf("❌ Failed to list requests for chat %d: %v", chatID, err)
		b.send(chatID, services.UserMessage(err))
		return
	}
	if len(list) == 0 {
		b.send(chatID, "No correction requests")
		return
	}
	b.send(chatID, "📝 *Your requests*\n\n"+modificationLines(list, false))
}

func (b *Bot) handlePending(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := splitArgs(msg)
	if len(args) != 1 {
		b.send(chatID, "Usage: `/pending <departmentId>`")
		return
	}
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	backend := b.deps.Backend(s)
	list, err := services.NewModificationService(backend, backend).Pending(ctx, identityOf(s), args[0])
	if err != nil {
		b.send(chatID, services.UserMessage(err))
		return
	}
	if len(list) == 0 {
		b.send(chatID, "No pending requests")
		return
	}
	b.send(chatID, "⏳ *Pending requests*\n\n"+modificationLines(list, true))
}

func (b *Bot) handleDecision(ctx context.Context, msg *tgbotapi.Message, approved bool) {
	chatID := msg.Chat.ID
	args := splitArgs(msg)
	id, err := int64Arg(args)
	if err != nil {
		b.send(chatID, fmt.Sprintf("Usage: `/%s <id> [comment]`", msg.Command()))
		return
	}
	s, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	backend := b.deps.Backend(s)
	d := models.Decision{Approved: approved, Comment: strings.Join(args[1:], " ")}
	if err := services.NewModificationService(backend, backend).Decide(ctx, identityOf(s), id, d); err != nil {
		if !errors.Is(err, services.ErrNotApprover) {
			log.Printf("❌ Decision on request %d failed for chat %d: %v", id, chatID, err)
		}
		b.send(chatID, services.UserMessage(err))
		return
	}

	if approved {
		b.send(chatID, fmt.Sprintf("✅ Request #%d approved.", id))
	} else {
		b.send(chatID, fmt.Sprintf("🚫 Request #%d rejected.", id))
	}
}

func int64Arg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errors.New("missing id")
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func statusLabel(status string) string {
	if status == "" {
		return "pending"
	}
	return strings.ToLower(status)
}

func modificationLines(list []models.ModificationRequest, withActions bool) string {
	var sb strings.Builder
	for _, m := range list {
		when := m.RequestedCheckInTime
		if when == "" {
			when = m.CheckInTime
		}
		if len(when) >= len("2006-01-02") {
			when = when[:len("2006-01-02")]
		}
		sb.WriteString(fmt.Sprintf("#%d %s %s: %s\n", m.ID, when, statusLabel(m.Status), escape(m.Reason)))
		if m.ApprovalComment != "" {
			sb.WriteString("   💬 " + escape(m.ApprovalComment) + "\n")
		}
		if withActions {
			sb.WriteString(fmt.Sprintf("   /approve %d · /reject %d\n", m.ID, m.ID))
		}
	}
	return sb.String()
}
