// Package bot is the Telegram surface of the booking client. It renders
// wizard states and forwards user input; every business decision belongs to
// the wizard or the backend.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"pitstop/internal/live"
	"pitstop/internal/session"
	"pitstop/internal/shopapi"
	"pitstop/internal/wizard"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bot wires the Telegram transport to the booking wizard.
type Bot struct {
	tg       telegramClient
	api      *shopapi.Client // unauthenticated base client
	sessions *session.Store
	wizards  *wizard.SessionStore
	liveCh   live.Subscriber
	ui       *uiStore
	logger   *zerolog.Logger

	maxAdvance time.Duration
}

// New creates a bot over the real Telegram API.
func New(token string, api *shopapi.Client, sessions *session.Store, wizards *wizard.SessionStore,
	liveCh live.Subscriber, maxAdvance time.Duration, logger *zerolog.Logger) (*Bot, error) {
	tgAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(&realTelegramClient{api: tgAPI}, api, sessions, wizards, liveCh, maxAdvance, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, api *shopapi.Client, sessions *session.Store,
	wizards *wizard.SessionStore, liveCh live.Subscriber, maxAdvance time.Duration, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, api, sessions, wizards, liveCh, maxAdvance, logger)
}

func newBot(tg telegramClient, api *shopapi.Client, sessions *session.Store, wizards *wizard.SessionStore,
	liveCh live.Subscriber, maxAdvance time.Duration, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if maxAdvance <= 0 {
		maxAdvance = 30 * 24 * time.Hour
	}
	return &Bot{
		tg:         tg,
		api:        api,
		sessions:   sessions,
		wizards:    wizards,
		liveCh:     liveCh,
		ui:         newUIStore(),
		logger:     logger,
		maxAdvance: maxAdvance,
	}, nil
}

// SendText implements notify.Messenger.
func (b *Bot) SendText(_ context.Context, chatID int64, text string) error {
	_, err := b.tg.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// Start polls updates until ctx is cancelled. It also fans slot-change
// events out to wizard sessions sitting in slot selection and sweeps
// expired sessions.
func (b *Bot) Start(ctx context.Context) {
	unsubscribe := b.liveCh.Subscribe(live.TopicSlotsChanged, func(ev live.Event) {
		b.fanOutSlotChange(ctx, ev)
	})
	defer unsubscribe()

	go b.cleanupLoop(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := b.wizards.Cleanup(); removed > 0 {
				b.logger.Debug().Int("removed", removed).Msg("swept expired wizard sessions")
			}
		}
	}
}

// fanOutSlotChange refetches the slot list of every session showing the
// affected date and repaints its slot keyboard. Sessions on other dates or
// other steps ignore the event without a network call.
func (b *Bot) fanOutSlotChange(ctx context.Context, ev live.Event) {
	for _, s := range b.wizards.Active() {
		s := s
		go func() {
			wiz, err := b.userWizard(ctx, s.UserID)
			if err != nil {
				return
			}
			view := s.View()
			if s.State() != wizard.StateSelectSlot || view.Draft.Date != ev.Date {
				return
			}
			if err := wiz.HandleSlotChange(ctx, s, ev.Date); err != nil {
				b.logger.Warn().Err(err).Int64("user_id", s.UserID).Msg("live slot refresh failed")
				return
			}
			b.repaintSlots(s)
		}()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	userID, chatID := msg.From.ID, msg.Chat.ID
	ui := b.ui.get(userID)

	if strings.HasPrefix(text, "/") {
		switch {
		case strings.HasPrefix(text, "/start"):
			b.ui.reset(userID)
			b.wizards.Delete(userID)
			b.reply(chatID, "Welcome to the service desk. /book starts a new appointment, /my shows your bookings, /login links your shop account.")
			return
		case strings.HasPrefix(text, "/help"):
			b.reply(chatID, "Commands: /book — book an appointment, /my — your appointments, /export — download history, /login, /logout, /cancel.")
			return
		case strings.HasPrefix(text, "/login"):
			ui.AwaitingLogin = true
			b.reply(chatID, "Paste the access token from your shop account page:")
			return
		case strings.HasPrefix(text, "/logout"):
			b.handleLogout(ctx, chatID, userID)
			return
		case strings.HasPrefix(text, "/book"):
			b.startBooking(ctx, chatID, userID)
			return
		case strings.HasPrefix(text, "/my"):
			b.sendAppointments(ctx, chatID, userID, "")
			return
		case strings.HasPrefix(text, "/export"):
			b.sendExport(ctx, chatID, userID)
			return
		case strings.HasPrefix(text, "/cancel"):
			b.ui.reset(userID)
			b.wizards.Delete(userID)
			b.reply(chatID, "Booking discarded.")
			return
		}
		// Unknown commands fall through to the active flow.
	}

	if ui.AwaitingLogin {
		ui.AwaitingLogin = false
		b.handleLoginToken(ctx, chatID, userID, text)
		return
	}

	s := b.wizards.Get(userID)
	if s == nil {
		b.reply(chatID, "Nothing in progress. /book starts a new appointment.")
		return
	}
	wiz, err := b.userWizard(ctx, userID)
	if err != nil {
		b.replyAuthProblem(chatID, err)
		return
	}

	if wiz.FormActive(s) {
		b.handleFormMessage(ctx, wiz, s, chatID, text)
		return
	}
	if ui.AwaitingNotes && s.State() == wizard.StateConfirm {
		ui.AwaitingNotes = false
		b.handleNotesMessage(wiz, s, chatID, text)
		return
	}
	b.reply(chatID, "Use the buttons above, or /cancel to start over.")
}

func (b *Bot) handleLoginToken(ctx context.Context, chatID, userID int64, token string) {
	if token == "" {
		b.reply(chatID, "That does not look like a token. /login to try again.")
		return
	}
	tok := &oauth2.Token{AccessToken: token}
	probe := b.api.WithToken(0, oauth2.StaticTokenSource(tok))
	me, err := probe.Me(ctx)
	if err != nil {
		b.reply(chatID, "The shop did not accept that token: "+shopapi.UserMessage(err))
		return
	}
	if err := b.sessions.Put(ctx, userID, me.ID, tok); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("store session")
		b.reply(chatID, "Could not store your session, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Linked to %s. /book when you are ready.", me.Name))
}

func (b *Bot) handleLogout(ctx context.Context, chatID, userID int64) {
	b.wizards.Delete(userID)
	if err := b.sessions.Delete(ctx, userID); err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("delete session")
	}
	b.reply(chatID, "Logged out.")
}

// userWizard builds a wizard over a client bound to the user's credential.
func (b *Bot) userWizard(ctx context.Context, userID int64) (*wizard.Wizard, error) {
	customerID, err := b.sessions.CustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	client := b.api.WithToken(customerID, b.sessions.TokenSource(userID))
	return wizard.New(client), nil
}

// userClient is userWizard without the wizard, for plain CRUD screens.
func (b *Bot) userClient(ctx context.Context, userID int64) (*shopapi.Client, error) {
	customerID, err := b.sessions.CustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.api.WithToken(customerID, b.sessions.TokenSource(userID)), nil
}

func (b *Bot) replyAuthProblem(chatID int64, err error) {
	if errors.Is(err, session.ErrNoSession) || shopapi.IsAuthorization(err) {
		b.reply(chatID, "Your session is missing or expired. /login to link your shop account.")
		return
	}
	b.reply(chatID, "Something went wrong, please try again.")
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}
