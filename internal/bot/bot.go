// Package bot routes Telegram updates to the reminder services.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"pillsreminder/internal/callback"
	"pillsreminder/internal/models"
	"pillsreminder/internal/services"
	"pillsreminder/internal/telegram"

	"github.com/rs/zerolog"
)

// API is the part of the Bot API the router talks to
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb models.Keyboard) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// Bot handles private commands, dialog input and inline button presses
type Bot struct {
	api    API
	dialog *services.Dialog
	ack    *services.Acknowledger
	mgmt   *services.Management
	chatID int64
	clock  func() time.Time
	loc    *time.Location
	log    zerolog.Logger
}

func New(api API, dialog *services.Dialog, ack *services.Acknowledger, mgmt *services.Management, chatID int64, clock func() time.Time, loc *time.Location, log zerolog.Logger) *Bot {
	return &Bot{
		api:    api,
		dialog: dialog,
		ack:    ack,
		mgmt:   mgmt,
		chatID: chatID,
		clock:  clock,
		loc:    loc,
		log:    log.With().Str("component", "bot").Logger(),
	}
}

func userID(u telegram.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) now() time.Time {
	return b.clock().In(b.loc)
}

// HandleUpdate implements telegram.Handler. Failures are reported in chat and logged.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int64("update_id", u.UpdateID).Msg("update handler panicked")
		}
	}()

	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, kb models.Keyboard) {
	if _, err := b.api.SendMessage(ctx, chatID, text, kb); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.api.EditMessageText(ctx, chatID, messageID, text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Int64("message_id", messageID).Msg("Failed to edit message")
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	// The shared chat only carries button presses
	if m.Text == "" || m.From == nil || m.Chat.ID == b.chatID || m.Chat.Type != telegram.ChatPrivate {
		return
	}
	if strings.HasPrefix(m.Text, "/") {
		b.handleCommand(ctx, m)
		return
	}
	b.handleDialogInput(ctx, m)
}

// command extracts "setup" from "/setup@PillsBot args"
func command(text string) string {
	cmd, _, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}

func profile(from telegram.User, chatID int64) models.Profile {
	return models.Profile{UserID: userID(from), Username: from.Username, FirstName: from.FirstName, ChatID: chatID}
}

func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message) {
	uid := userID(*m.From)
	chatID := m.Chat.ID
	cmd := command(m.Text)
	b.log.Debug().Str("user_id", uid).Str("command", cmd).Msg("command received")

	switch cmd {
	case "start":
		name := m.From.Username
		if name == "" {
			name = m.From.FirstName
		}
		if name == "" {
			name = "there"
		}
		b.send(ctx, chatID, startText(name), nil)
	case "setup":
		b.startSetup(ctx, profile(*m.From, chatID), chatID, 0)
	case "manage":
		b.showManage(ctx, chatID, uid)
	case "status":
		b.showStatus(ctx, chatID, uid)
	case "history":
		rep, err := b.mgmt.History(ctx, uid, true)
		if err != nil {
			b.fail(ctx, chatID, err, "history")
			return
		}
		b.send(ctx, chatID, historyText(rep), nil)
	case "archive":
		rep, err := b.mgmt.ArchiveList(ctx, uid)
		if err != nil {
			b.fail(ctx, chatID, err, "archive")
			return
		}
		b.send(ctx, chatID, archiveText(rep), repeatKeyboard(rep))
	case "cleanup":
		s, err := b.mgmt.CleanupPreview(ctx, uid)
		if err != nil {
			b.fail(ctx, chatID, err, "cleanup preview")
			return
		}
		if s.Empty() {
			b.send(ctx, chatID, nothingToCleanText, nil)
			return
		}
		b.send(ctx, chatID, cleanupText(s), cleanupKeyboard(uid, s))
	case "stop":
		n, err := b.mgmt.StopAll(ctx, uid)
		if err != nil {
			b.fail(ctx, chatID, err, "stop")
			return
		}
		if n == 0 {
			b.send(ctx, chatID, "❌ You have no active reminders", nil)
			return
		}
		b.send(ctx, chatID, "🔴 Stopped "+strconv.Itoa(n)+" reminder(s)\n\nUse /manage to manage reminders", nil)
	case "help":
		b.send(ctx, chatID, helpText(), nil)
	}
}

// fail logs err and answers with a generic message
func (b *Bot) fail(ctx context.Context, chatID int64, err error, op string) {
	b.log.Error().Err(err).Str("op", op).Int64("chat_id", chatID).Msg("request failed")
	b.send(ctx, chatID, genericErrorText, nil)
}

// startSetup begins the dialog; a non-zero messageID rewrites that message instead of sending
func (b *Bot) startSetup(ctx context.Context, p models.Profile, chatID, messageID int64) {
	state, err := b.dialog.Start(ctx, p)
	if err != nil {
		b.fail(ctx, chatID, err, "setup")
		return
	}
	text := stepPrompt(state, nil)
	if messageID != 0 {
		b.edit(ctx, chatID, messageID, text)
		return
	}
	b.send(ctx, chatID, text, nil)
}

func (b *Bot) liveReminders(ctx context.Context, uid string) ([]*models.Reminder, error) {
	u, err := b.mgmt.User(ctx, uid)
	if errors.Is(err, services.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.LiveReminders(), nil
}

func (b *Bot) showManage(ctx context.Context, chatID int64, uid string) {
	live, err := b.liveReminders(ctx, uid)
	if err != nil {
		b.fail(ctx, chatID, err, "manage")
		return
	}
	if len(live) == 0 {
		b.send(ctx, chatID, noRemindersText, nil)
		return
	}
	b.send(ctx, chatID, manageText(live), manageKeyboard(live))
}

func (b *Bot) showStatus(ctx context.Context, chatID int64, uid string) {
	live, err := b.liveReminders(ctx, uid)
	if err != nil {
		b.fail(ctx, chatID, err, "status")
		return
	}
	if len(live) == 0 {
		b.send(ctx, chatID, noRemindersText, nil)
		return
	}
	b.send(ctx, chatID, statusText(live, b.now()), nil)
}

func (b *Bot) handleDialogInput(ctx context.Context, m *telegram.Message) {
	uid := userID(*m.From)
	chatID := m.Chat.ID

	res, err := b.dialog.Handle(ctx, uid, m.Text)
	var verr *services.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNoActiveDialog):
		b.send(ctx, chatID, noDialogText, nil)
		return
	case errors.Is(err, services.ErrReminderNotFound):
		b.send(ctx, chatID, draftGoneText, nil)
		return
	case errors.As(err, &verr):
		b.send(ctx, chatID, "❌ "+verr.Message, nil)
		return
	default:
		b.fail(ctx, chatID, err, "dialog")
		return
	}

	switch {
	case res.State == nil:
		b.send(ctx, chatID, timesUpdatedText(res.Reminder), nil)
	case res.State.Step == models.StepConfirm:
		name := m.From.Username
		if name == "" {
			name = m.From.FirstName
		}
		b.send(ctx, chatID, confirmationText(res.Reminder, name), confirmationKeyboard(res.Reminder.ID))
	default:
		b.send(ctx, chatID, stepPrompt(res.State, res.Reminder), nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if err := b.api.AnswerCallbackQuery(ctx, q.ID); err != nil {
		b.log.Warn().Err(err).Str("callback_id", q.ID).Msg("Failed to answer callback query")
	}
	if q.Message == nil {
		return
	}
	data, err := callback.Parse(q.Data)
	if err != nil {
		b.log.Warn().Err(err).Msg("ignoring malformed callback")
		return
	}

	from := userID(q.From)
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	b.log.Debug().Str("user_id", from).Str("action", string(data.Action)).Msg("callback received")

	switch data.Action {
	case callback.Taken, callback.Skip:
		status := models.StatusTaken
		if data.Action == callback.Skip {
			status = models.StatusSkipped
		}
		_, err := b.ack.Acknowledge(ctx, services.AckRequest{
			UserID:     data.UserID,
			ReminderID: data.ReminderID,
			SlotIndex:  data.SlotIndex,
			Status:     status,
			ActorID:    from,
			ChatID:     chatID,
			MessageID:  msgID,
		})
		if errors.Is(err, services.ErrReminderNotFound) || errors.Is(err, services.ErrUserNotFound) {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		if err != nil {
			b.fail(ctx, chatID, err, "acknowledge")
		}

	case callback.Description:
		r, err := b.mgmt.Description(ctx, data.UserID, data.ReminderID)
		if err != nil {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		b.send(ctx, chatID, descriptionText(r, b.now()), descriptionKeyboard(data.UserID, r))

	case callback.SaveReminder:
		r, err := b.dialog.Confirm(ctx, from, data.ReminderID)
		var verr *services.ValidationError
		switch {
		case err == nil:
			b.edit(ctx, chatID, msgID, savedText(r))
		case errors.As(err, &verr):
			b.edit(ctx, chatID, msgID, "❌ "+verr.Message)
		case errors.Is(err, services.ErrReminderNotFound), errors.Is(err, services.ErrUserNotFound):
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
		default:
			b.fail(ctx, chatID, err, "save reminder")
		}

	case callback.CancelReminder:
		if err := b.dialog.Cancel(ctx, from, data.ReminderID); err != nil {
			b.fail(ctx, chatID, err, "cancel reminder")
			return
		}
		b.edit(ctx, chatID, msgID, canceledText)

	case callback.NewReminder:
		b.startSetup(ctx, profile(q.From, chatID), chatID, msgID)

	case callback.EditReminder:
		r, err := b.dialog.StartEditTimes(ctx, from, data.ReminderID)
		if err != nil {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		b.edit(ctx, chatID, msgID, stepPrompt(&models.DialogState{Step: models.StepEditTimes, ReminderID: r.ID}, r))

	case callback.ToggleReminder:
		r, err := b.mgmt.Toggle(ctx, from, data.ReminderID)
		if err != nil {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		state := "paused"
		if r.IsActive() {
			state = "resumed"
		}
		b.edit(ctx, chatID, msgID, "✅ Reminder '"+r.PillName+"' "+state)
		b.showManage(ctx, chatID, from)

	case callback.ArchiveReminder:
		p, err := b.mgmt.ArchivePreview(ctx, from, data.ReminderID)
		if err != nil {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		b.send(ctx, chatID, archivePreviewText(p), archivePreviewKeyboard(data.ReminderID))

	case callback.ConfirmArchive:
		entry, err := b.mgmt.Archive(ctx, from, data.ReminderID)
		if errors.Is(err, services.ErrReminderNotFound) {
			b.edit(ctx, chatID, msgID, reminderNotFoundText)
			return
		}
		if err != nil {
			b.fail(ctx, chatID, err, "archive")
			return
		}
		b.edit(ctx, chatID, msgID, archivedText(entry))
		live, err := b.liveReminders(ctx, from)
		if err == nil && len(live) == 0 {
			b.send(ctx, chatID, noMoreRemindersText, nil)
			return
		}
		b.showManage(ctx, chatID, from)

	case callback.CancelArchive:
		b.edit(ctx, chatID, msgID, "❌ Course finish canceled")
		b.showManage(ctx, chatID, from)

	case callback.RepeatCourse:
		r, err := b.mgmt.Repeat(ctx, from, data.ArchiveID)
		switch {
		case err == nil:
			b.send(ctx, chatID, repeatedText(r), nil)
		case errors.Is(err, services.ErrNotParentCourse):
			b.send(ctx, chatID, notParentCourseText, nil)
		case errors.Is(err, services.ErrArchiveNotFound), errors.Is(err, services.ErrUserNotFound):
			b.send(ctx, chatID, archiveNotFoundText, nil)
		default:
			b.fail(ctx, chatID, err, "repeat course")
		}

	case callback.CleanupAll:
		s, err := b.mgmt.CleanupAll(ctx, from, data.UserID)
		if errors.Is(err, services.ErrForbidden) {
			b.edit(ctx, chatID, msgID, forbiddenText)
			return
		}
		if err != nil {
			b.fail(ctx, chatID, err, "cleanup all")
			return
		}
		b.edit(ctx, chatID, msgID, cleanedText(s, ""))

	case callback.CleanupSelective:
		items, err := b.mgmt.PillInventory(ctx, from, data.UserID)
		if errors.Is(err, services.ErrForbidden) {
			b.edit(ctx, chatID, msgID, forbiddenText)
			return
		}
		if err != nil {
			b.fail(ctx, chatID, err, "pill inventory")
			return
		}
		if len(items) == 0 {
			b.edit(ctx, chatID, msgID, nothingToCleanText)
			return
		}
		kb, omitted := inventoryKeyboard(data.UserID, items)
		b.send(ctx, chatID, inventoryText(omitted), kb)

	case callback.CleanupPill:
		s, err := b.mgmt.CleanupPillPreview(ctx, from, data.UserID, data.PillName)
		switch {
		case err == nil:
			b.send(ctx, chatID, pillCleanupText(data.PillName, s), pillCleanupKeyboard(data.UserID, data.PillName))
		case errors.Is(err, services.ErrForbidden):
			b.edit(ctx, chatID, msgID, forbiddenText)
		case errors.Is(err, services.ErrNothingToClean):
			b.edit(ctx, chatID, msgID, nothingToCleanText)
		default:
			b.fail(ctx, chatID, err, "cleanup pill preview")
		}

	case callback.ConfirmCleanup:
		s, err := b.mgmt.CleanupPill(ctx, from, data.UserID, data.PillName)
		if errors.Is(err, services.ErrForbidden) {
			b.edit(ctx, chatID, msgID, forbiddenText)
			return
		}
		if err != nil {
			b.fail(ctx, chatID, err, "cleanup pill")
			return
		}
		b.edit(ctx, chatID, msgID, cleanedText(s, data.PillName))

	case callback.CleanupCancel:
		b.edit(ctx, chatID, msgID, cleanupCanceled)
	}
}
