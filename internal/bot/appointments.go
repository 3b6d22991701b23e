package bot

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pitstop/internal/calendar"
	"pitstop/internal/report"
	"pitstop/internal/shopapi"
)

// filterUpcoming is a list filter resolved on our side: the backend list
// endpoint takes a single status, but "upcoming" spans every status that
// still has a shop visit ahead of it.
const filterUpcoming = "upcoming"

func isUpcomingStatus(status string) bool {
	switch status {
	case shopapi.StatusPending, shopapi.StatusConfirmed, shopapi.StatusInProgress:
		return true
	}
	return false
}

// sendAppointments shows the customer's appointments grouped by day, with
// a status filter row and a cancel button per upcoming appointment.
func (b *Bot) sendAppointments(ctx context.Context, chatID, userID int64, filter string) {
	client, err := b.userClient(ctx, userID)
	if err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}
	status := filter
	if filter == filterUpcoming {
		status = ""
	}
	appts, err := client.ListAppointments(ctx, status)
	if err != nil {
		b.reply(chatID, "⚠️ "+shopapi.UserMessage(err))
		return
	}
	if filter == filterUpcoming {
		kept := appts[:0]
		for _, a := range appts {
			if isUpcomingStatus(a.Status) {
				kept = append(kept, a)
			}
		}
		appts = kept
	}

	var sb strings.Builder
	if filter == "" {
		sb.WriteString("🗓 Your appointments:\n")
	} else {
		sb.WriteString(fmt.Sprintf("🗓 Your %s appointments:\n", filter))
	}
	if len(appts) == 0 {
		sb.WriteString("\nNothing here yet. /book to schedule a visit.")
	}

	byDay := calendar.BucketByDay(appts)
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(appts)+2)
	for _, day := range days {
		sb.WriteString("\n" + day + "\n")
		for _, a := range byDay[day] {
			sb.WriteString("  " + formatAppointmentLine(a) + "\n")
			if a.Status == shopapi.StatusPending || a.Status == shopapi.StatusConfirmed {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData(
						fmt.Sprintf("✖️ Cancel %s %s", a.Date, a.Start),
						"mycancel:"+strconv.FormatInt(a.ID, 10),
					),
				))
			}
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("All", "my:"),
		tgbotapi.NewInlineKeyboardButtonData("Upcoming", "my:"+filterUpcoming),
		tgbotapi.NewInlineKeyboardButtonData("Done", "my:"+shopapi.StatusCompleted),
	))

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(msg)
}

func (b *Bot) cancelAppointment(ctx context.Context, chatID, userID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}
	client, err := b.userClient(ctx, userID)
	if err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}
	if err := client.CancelAppointment(ctx, id); err != nil {
		b.reply(chatID, "⚠️ "+shopapi.UserMessage(err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Appointment #%d cancelled.", id))
	b.sendAppointments(ctx, chatID, userID, "")
}

// sendExport builds an xlsx of the customer's appointments and uploads it
// as a document.
func (b *Bot) sendExport(ctx context.Context, chatID, userID int64) {
	client, err := b.userClient(ctx, userID)
	if err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}
	appts, err := client.ListAppointments(ctx, "")
	if err != nil {
		b.reply(chatID, "⚠️ "+shopapi.UserMessage(err))
		return
	}
	if len(appts) == 0 {
		b.reply(chatID, "Nothing to export yet.")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAppointments(&buf, appts); err != nil {
		b.logger.Error().Err(err).Msg("export build failed")
		b.reply(chatID, "⚠️ Could not build the export, please try again.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  report.Filename(time.Now()),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Your service history (%d appointments)", len(appts))
	b.send(doc)
}
