package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pitstop/internal/wizard"
)

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64) {
	if _, err := b.userWizard(ctx, userID); err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}
	s := b.wizards.Reset(userID)
	s.ChatID = chatID
	ui := b.ui.get(userID)
	now := time.Now()
	ui.CalYear, ui.CalMonth = now.Year(), now.Month()
	b.sendServiceMenu(chatID)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	_ = b.answerCallback(cq.ID)
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "my:"):
		b.sendAppointments(ctx, chatID, userID, strings.TrimPrefix(data, "my:"))
		return
	case strings.HasPrefix(data, "mycancel:"):
		b.cancelAppointment(ctx, chatID, userID, strings.TrimPrefix(data, "mycancel:"))
		return
	}

	s := b.wizards.Get(userID)
	if s == nil {
		b.reply(chatID, "That booking has finished. /book starts a new one.")
		return
	}
	s.ChatID = chatID
	wiz, err := b.userWizard(ctx, userID)
	if err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}

	switch {
	case strings.HasPrefix(data, "svc:"):
		b.handleServicePick(ctx, wiz, s, chatID, userID, strings.TrimPrefix(data, "svc:"))
	case data == "veh:add":
		b.beginVehicleForm(wiz, s, chatID)
	case data == "form:cancel":
		wiz.CancelAddVehicle(s)
		b.sendVehicleMenu(chatID, userID, s)
	case strings.HasPrefix(data, "veh:"):
		b.handleVehiclePick(ctx, wiz, s, chatID, userID, strings.TrimPrefix(data, "veh:"))
	case strings.HasPrefix(data, "cal:"):
		b.handleMonthNav(s, chatID, userID, strings.TrimPrefix(data, "cal:"))
	case strings.HasPrefix(data, "date:"):
		b.handleDatePick(ctx, wiz, s, chatID, userID, strings.TrimPrefix(data, "date:"))
	case data == "slots:retry":
		b.handleSlotRetry(ctx, wiz, s, chatID, userID)
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotPick(wiz, s, chatID, userID, strings.TrimPrefix(data, "slot:"))
	case data == "notes:add":
		b.ui.get(userID).AwaitingNotes = true
		b.reply(chatID, fmt.Sprintf("Send a note for the mechanic (up to %d characters):", wizard.MaxNotesLen))
	case data == "notes:clear":
		if err := wiz.SetNotes(s, ""); err == nil {
			b.sendConfirm(chatID, s)
		}
	case data == "confirm":
		b.handleSubmit(ctx, wiz, s, chatID, userID)
	case data == "back":
		b.handleBack(ctx, wiz, s, chatID, userID)
	case data == "abort":
		b.wizards.Delete(userID)
		b.ui.reset(userID)
		b.reply(chatID, "Booking discarded.")
	}
}

func (b *Bot) handleServicePick(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64, code string) {
	if err := wiz.ChooseService(ctx, s, code); err != nil {
		b.renderWizardError(chatID, userID, s, err)
		return
	}
	b.sendVehicleMenu(chatID, userID, s)
}

func (b *Bot) handleVehiclePick(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(chatID, "Pick a vehicle from the list.")
		return
	}
	if err := wiz.ChooseVehicle(ctx, s, id); err != nil {
		b.renderWizardError(chatID, userID, s, err)
		return
	}
	b.sendCalendar(chatID, userID)
	b.sendSlots(chatID, userID, s)
}

func (b *Bot) handleMonthNav(s *wizard.Session, chatID, userID int64, month string) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return
	}
	ui := b.ui.get(userID)
	ui.CalYear, ui.CalMonth = t.Year(), t.Month()
	b.sendCalendar(chatID, userID)
}

func (b *Bot) handleDatePick(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64, date string) {
	if err := wiz.SetDate(ctx, s, date); err != nil {
		b.renderWizardError(chatID, userID, s, err)
		return
	}
	b.sendSlots(chatID, userID, s)
}

func (b *Bot) handleSlotRetry(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64) {
	if err := wiz.RetrySlots(ctx, s); err != nil {
		b.renderWizardError(chatID, userID, s, err)
		return
	}
	b.sendSlots(chatID, userID, s)
}

func (b *Bot) handleSlotPick(wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(chatID, "Pick a time from the list.")
		return
	}
	if err := wiz.ChooseSlot(s, id); err != nil {
		b.renderWizardError(chatID, userID, s, err)
		return
	}
	b.sendConfirm(chatID, s)
}

func (b *Bot) handleSubmit(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64) {
	created, err := wiz.Submit(ctx, s)
	if err != nil {
		view := s.View()
		switch s.State() {
		case wizard.StateSelectSlot:
			// Conflict: the slot went away. Show fresh inventory.
			b.reply(chatID, "⚠️ "+view.LastError)
			b.sendSlots(chatID, userID, s)
		case wizard.StateFailed:
			b.wizards.Delete(userID)
			b.replyAuthProblem(chatID, err)
		default:
			b.reply(chatID, "⚠️ "+view.LastError)
			b.sendConfirm(chatID, s)
		}
		return
	}
	b.wizards.Delete(userID)
	b.ui.reset(userID)
	b.reply(chatID, formatSuccess(created))
}

func (b *Bot) handleBack(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID, userID int64) {
	if err := wiz.Back(ctx, s); err != nil {
		var trErr *wizard.ErrTransition
		if errors.As(err, &trErr) {
			b.reply(chatID, "Nothing to go back to.")
			return
		}
	}
	b.renderState(chatID, userID, s)
}

// renderState repaints the current step, used after backward navigation.
func (b *Bot) renderState(chatID, userID int64, s *wizard.Session) {
	switch s.State() {
	case wizard.StateSelectService:
		b.sendServiceMenu(chatID)
	case wizard.StateSelectVehicle:
		b.sendVehicleMenu(chatID, userID, s)
	case wizard.StateSelectSlot:
		b.sendCalendar(chatID, userID)
		b.sendSlots(chatID, userID, s)
	case wizard.StateConfirm:
		b.sendConfirm(chatID, s)
	}
}

func (b *Bot) beginVehicleForm(wiz *wizard.Wizard, s *wizard.Session, chatID int64) {
	prompt, err := wiz.BeginAddVehicle(s)
	if err != nil {
		b.reply(chatID, "Adding a vehicle is only possible while choosing one.")
		return
	}
	b.sendFormPrompt(chatID, prompt)
}

func (b *Bot) handleFormMessage(ctx context.Context, wiz *wizard.Wizard, s *wizard.Session, chatID int64, text string) {
	prompt, created, err := wiz.HandleFormInput(ctx, s, text)
	if err != nil {
		var vErr *wizard.ValidationError
		if errors.As(err, &vErr) {
			b.reply(chatID, vErr.Message)
			if prompt != "" {
				b.sendFormPrompt(chatID, prompt)
			}
			return
		}
		view := s.View()
		b.reply(chatID, "⚠️ "+view.LastError)
		return
	}
	if created != nil {
		b.reply(chatID, fmt.Sprintf("Added %d %s %s.", created.Year, created.Make, created.Model))
		b.sendVehicleMenu(chatID, s.UserID, s)
		return
	}
	b.sendFormPrompt(chatID, prompt)
}

func (b *Bot) handleNotesMessage(wiz *wizard.Wizard, s *wizard.Session, chatID int64, text string) {
	truncated := false
	if utf8.RuneCountInString(text) > wizard.MaxNotesLen {
		text = string([]rune(text)[:wizard.MaxNotesLen])
		truncated = true
	}
	if err := wiz.SetNotes(s, text); err != nil {
		b.reply(chatID, err.Error())
		return
	}
	counter := fmt.Sprintf("%d/%d", utf8.RuneCountInString(text), wizard.MaxNotesLen)
	if truncated {
		b.reply(chatID, fmt.Sprintf("Note was longer than the limit and has been truncated (%s).", counter))
	} else {
		b.reply(chatID, fmt.Sprintf("Note saved (%s).", counter))
	}
	b.sendConfirm(chatID, s)
}

// renderWizardError distinguishes input problems (inline hint, no network)
// from fetch problems (banner plus retry on the same step).
func (b *Bot) renderWizardError(chatID, userID int64, s *wizard.Session, err error) {
	var vErr *wizard.ValidationError
	if errors.As(err, &vErr) {
		b.reply(chatID, vErr.Message)
		return
	}
	var trErr *wizard.ErrTransition
	if errors.As(err, &trErr) {
		b.reply(chatID, "That step is not available right now. /cancel to start over.")
		return
	}
	view := s.View()
	text := view.LastError
	if text == "" {
		text = "Something went wrong, please try again."
	}
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if s.State() == wizard.StateSelectSlot {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", "slots:retry"),
				tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
			),
		)
	}
	if _, sendErr := b.tg.Send(msg); sendErr != nil {
		b.logger.Warn().Err(sendErr).Int64("chat_id", chatID).Msg("send failed")
	}
}
