package bot

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pitstop/internal/calendar"
	"pitstop/internal/catalog"
	"pitstop/internal/shopapi"
	"pitstop/internal/wizard"
)

func (b *Bot) sendServiceMenu(chatID int64) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(catalog.All())+1)
	for _, st := range catalog.All() {
		label := fmt.Sprintf("%s (%s)", st.Label, formatDuration(st.Duration))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "svc:"+st.Code),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "abort"),
	))

	msg := tgbotapi.NewMessage(chatID, "🔧 What does your vehicle need?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) sendVehicleMenu(chatID, userID int64, s *wizard.Session) {
	view := s.View()
	text := "🚗 Which vehicle is it for?"
	if len(view.Vehicles) == 0 {
		text = "You have no vehicles on file yet. Add one to continue."
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(view.Vehicles)+2)
	for _, v := range view.Vehicles {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(vehicleLabel(v), "veh:"+strconv.FormatInt(v.ID, 10)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add a vehicle", "veh:add"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "abort"),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) sendFormPrompt(chatID int64, prompt string) {
	msg := tgbotapi.NewMessage(chatID, prompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "form:cancel"),
		),
	)
	b.send(msg)
}

func (b *Bot) sendCalendar(chatID, userID int64) {
	ui := b.ui.get(userID)
	now := time.Now()
	if ui.CalYear == 0 {
		ui.CalYear, ui.CalMonth = now.Year(), now.Month()
	}
	year, month := ui.CalYear, ui.CalMonth

	weeks := calendar.MonthGrid(year, month, now, b.maxAdvance)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(weeks)+2)

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, wd := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd, "noop"))
	}
	rows = append(rows, header)

	for _, week := range weeks {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for _, day := range week {
			if !day.InMonth || !day.Selectable {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "noop"))
				continue
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				strconv.Itoa(day.Date.Day()),
				"date:"+day.Date.Format(calendar.DateFormat),
			))
		}
		rows = append(rows, row)
	}

	py, pm := calendar.PrevMonth(year, month)
	ny, nm := calendar.NextMonth(year, month)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️", fmt.Sprintf("cal:%04d-%02d", py, pm)),
		tgbotapi.NewInlineKeyboardButtonData("▶️", fmt.Sprintf("cal:%04d-%02d", ny, nm)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "abort"),
	))

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📅 %s %d — pick a day:", month, year))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) sendSlots(chatID, userID int64, s *wizard.Session) {
	text, markup := slotListContent(s.View())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup

	sent, err := b.tg.Send(msg)
	if err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
		return
	}
	b.ui.get(userID).SlotMsgID = sent.MessageID
}

// repaintSlots edits the slot message in place after a live inventory change,
// so the user never holds a stale list.
func (b *Bot) repaintSlots(s *wizard.Session) {
	ui := b.ui.get(s.UserID)
	if ui.SlotMsgID == 0 || s.ChatID == 0 {
		return
	}
	text, markup := slotListContent(s.View())
	edit := tgbotapi.NewEditMessageTextAndMarkup(s.ChatID, ui.SlotMsgID, text, markup)
	if _, err := b.tg.Send(edit); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", s.ChatID).Msg("slot repaint failed")
	}
}

func slotListContent(view wizard.View) (string, tgbotapi.InlineKeyboardMarkup) {
	date := view.Draft.Date
	var text string
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(view.Slots)/2+2)

	if len(view.Slots) == 0 {
		text = fmt.Sprintf("No free times on %s. Try another day.", date)
	} else {
		text = fmt.Sprintf("🕒 Free times on %s:", date)
		row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
		for _, slot := range view.Slots {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				slot.Start+"–"+slot.End,
				"slot:"+strconv.FormatInt(slot.ID, 10),
			))
			if len(row) == 2 {
				rows = append(rows, row)
				row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "slots:retry"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "abort"),
	))
	return text, tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) sendConfirm(chatID int64, s *wizard.Session) {
	view := s.View()
	notesBtn := "📝 Add a note"
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm booking", "confirm"),
		),
	}
	if view.Draft.Notes != "" {
		notesBtn = "📝 Edit note"
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(notesBtn, "notes:add"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear note", "notes:clear"),
		))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(notesBtn, "notes:add"),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back"),
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "abort"),
	))

	msg := tgbotapi.NewMessage(chatID, formatConfirmCard(view))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Msg("send failed")
	}
}

func vehicleLabel(v shopapi.Vehicle) string {
	label := fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
	if v.Plate != "" {
		label += " · " + v.Plate
	}
	return label
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	if d > time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
