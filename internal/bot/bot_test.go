package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pillsreminder/internal/callback"
	"pillsreminder/internal/models"
	"pillsreminder/internal/services"
	"pillsreminder/internal/store"
	"pillsreminder/internal/telegram"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharedChat int64 = -100

type sent struct {
	ChatID int64
	Text   string
	Kb     models.Keyboard
}

type edited struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []sent
	edited   []edited
	answered []string
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string, kb models.Keyboard) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ChatID: chatID, Text: text, Kb: kb})
	return int64(len(f.sent)), nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, chatID, messageID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, edited{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeAPI) lastSent(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastEdited(t *testing.T) edited {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.edited)
	return f.edited[len(f.edited)-1]
}

type harness struct {
	ctx     context.Context
	api     *fakeAPI
	bot     *Bot
	store   *store.Store
	tracker *services.Tracker
}

var now = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()
	clock := func() time.Time { return now }

	st := store.New(store.NewMemoryBackend(), log)
	api := &fakeAPI{}
	tracker := services.NewTracker(30*time.Minute, log, services.WithAfter(func(time.Duration) <-chan time.Time { return nil }))
	dialog := services.NewDialog(st, nil, clock, log)
	ack := services.NewAcknowledger(st, tracker, nopNotifier{}, nil, clock, time.UTC, true, log)
	mgmt := services.NewManagement(st, tracker, nil, nil, clock, time.UTC, log)

	t.Cleanup(func() {
		cancel()
		tracker.Wait()
		st.Close()
	})
	return &harness{
		ctx:     ctx,
		api:     api,
		bot:     New(api, dialog, ack, mgmt, sharedChat, clock, time.UTC, log),
		store:   st,
		tracker: tracker,
	}
}

type nopNotifier struct{}

func (nopNotifier) Deliver(context.Context, int64, string, models.Keyboard) (int64, error) {
	return 0, nil
}
func (nopNotifier) Update(context.Context, int64, int64, string) error { return nil }

var aliceTG = telegram.User{ID: 1, Username: "alice", FirstName: "Alice"}

func (h *harness) private(text string) {
	h.bot.HandleUpdate(h.ctx, telegram.Update{Message: &telegram.Message{
		MessageID: 10,
		From:      &aliceTG,
		Chat:      telegram.Chat{ID: 1, Type: telegram.ChatPrivate},
		Text:      text,
	}})
}

func (h *harness) press(from telegram.User, chatID, messageID int64, data string) {
	h.bot.HandleUpdate(h.ctx, telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    from,
		Message: &telegram.Message{MessageID: messageID, Chat: telegram.Chat{ID: chatID}},
		Data:    data,
	}})
}

func (h *harness) users(t *testing.T) *models.UsersDocument {
	t.Helper()
	doc, err := h.store.Users(h.ctx)
	require.NoError(t, err)
	return doc
}

func TestCommand(t *testing.T) {
	assert.Equal(t, "setup", command("/setup"))
	assert.Equal(t, "setup", command("/setup@PillsBot"))
	assert.Equal(t, "help", command("/HELP now"))
}

func TestBot_SetupFlowThroughButtons(t *testing.T) {
	h := newHarness(t)

	h.private("/setup")
	assert.Contains(t, h.api.lastSent(t).Text, "Step 1 of 7")

	for _, text := range []string{"Vitamin D", "1000 IU", "for bones", "30", "2", "08:00"} {
		h.private(text)
	}
	assert.Contains(t, h.api.lastSent(t).Text, "Time of dose 2 (HH:MM)")

	h.private("8pm")
	assert.Equal(t, "❌ use the 24-hour HH:MM format, e.g. 08:30", h.api.lastSent(t).Text)

	h.private("20:00")
	confirm := h.api.lastSent(t)
	assert.Contains(t, confirm.Text, "⏰ Dose times: 08:00, 20:00")
	assert.Contains(t, confirm.Text, "👤 User: @alice")
	require.Len(t, confirm.Kb, 2)

	h.press(aliceTG, 1, 55, confirm.Kb[0][0].Data)
	assert.Contains(t, h.api.lastEdited(t).Text, "✅ Reminder created!")
	assert.Equal(t, []string{"cb"}, h.api.answered)

	u := h.users(t).User("1")
	require.NotNil(t, u)
	require.Len(t, u.LiveReminders(), 1)
	assert.True(t, u.LiveReminders()[0].IsActive())
	assert.Nil(t, u.Dialog)
}

func TestBot_IgnoresSharedChatAndGroups(t *testing.T) {
	h := newHarness(t)
	h.bot.HandleUpdate(h.ctx, telegram.Update{Message: &telegram.Message{
		From: &aliceTG, Chat: telegram.Chat{ID: sharedChat, Type: "supergroup"}, Text: "/setup",
	}})
	h.bot.HandleUpdate(h.ctx, telegram.Update{Message: &telegram.Message{
		From: &aliceTG, Chat: telegram.Chat{ID: -5, Type: "group"}, Text: "/help",
	}})
	assert.Empty(t, h.api.sent)
}

func TestBot_FreeTextWithoutDialog(t *testing.T) {
	h := newHarness(t)
	h.private("hello")
	assert.Equal(t, noDialogText, h.api.lastSent(t).Text)
}

func seedActive(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.store.UpdateUsers(h.ctx, func(doc *models.UsersDocument) error {
		doc.Users["1"] = &models.User{ID: "1", Username: "alice", ChatID: 1, Reminders: map[string]*models.Reminder{
			"r1": {ID: "r1", PillName: "Iron", CourseNumber: 1, Times: []models.TimeSlot{{Time: "08:00"}},
				Status: models.ReminderActive, Created: now.Add(-48 * time.Hour)},
		}}
		return nil
	}))
}

func TestBot_ManageToggleAndArchive(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)

	h.private("/manage")
	menu := h.api.lastSent(t)
	assert.Contains(t, menu.Text, "🟢 Iron")
	require.Len(t, menu.Kb, 4)

	h.press(aliceTG, 1, 60, menu.Kb[1][0].Data)
	assert.Equal(t, "✅ Reminder 'Iron' paused", h.api.lastEdited(t).Text)
	assert.Contains(t, h.api.lastSent(t).Text, "🔴 Iron")

	h.press(aliceTG, 1, 60, menu.Kb[2][0].Data)
	preview := h.api.lastSent(t)
	assert.Contains(t, preview.Text, "🗄️ Finish course")

	h.press(aliceTG, 1, 61, preview.Kb[0][0].Data)
	assert.Contains(t, h.api.lastEdited(t).Text, "✅ Course finished and moved to the archive")
	assert.Equal(t, noMoreRemindersText, h.api.lastSent(t).Text)

	h.private("/archive")
	arch := h.api.lastSent(t)
	assert.Contains(t, arch.Text, "🗄️ Archive of @alice")
	require.Len(t, arch.Kb, 1)

	h.press(aliceTG, 1, 62, arch.Kb[0][0].Data)
	assert.Contains(t, h.api.lastSent(t).Text, "🔄 Course repeated!")
	assert.Contains(t, h.api.lastSent(t).Text, "Iron [Course #2]")
}

func TestBot_AcknowledgeFromSharedChat(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)
	bob := telegram.User{ID: 2, Username: "bob"}

	data := callback.Data{Action: callback.Taken, UserID: "1", ReminderID: "r1", SlotIndex: 0}.Encode()
	h.press(bob, sharedChat, 99, data)

	doc, err := h.store.History(h.ctx)
	require.NoError(t, err)
	require.Len(t, doc.History, 1)
	assert.Equal(t, "2", doc.History[0].ActionBy)
	assert.Equal(t, models.StatusTaken, doc.History[0].Status)

	missing := callback.Data{Action: callback.Skip, UserID: "1", ReminderID: "gone", SlotIndex: 0}.Encode()
	h.press(bob, sharedChat, 100, missing)
	assert.Equal(t, edited{ChatID: sharedChat, MessageID: 100, Text: reminderNotFoundText}, h.api.lastEdited(t))
}

func TestBot_AcknowledgeStorageFailureIsReported(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)
	h.store.Close()

	data := callback.Data{Action: callback.Taken, UserID: "1", ReminderID: "r1", SlotIndex: 0}.Encode()
	h.press(aliceTG, sharedChat, 99, data)

	assert.Equal(t, sent{ChatID: sharedChat, Text: genericErrorText}, h.api.lastSent(t))
	assert.Equal(t, []string{"cb"}, h.api.answered)
}

func TestBot_DescriptionOffersEverySlot(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)

	h.press(aliceTG, sharedChat, 5, callback.Data{Action: callback.Description, UserID: "1", ReminderID: "r1"}.Encode())
	msg := h.api.lastSent(t)
	assert.Equal(t, sharedChat, msg.ChatID)
	assert.Contains(t, msg.Text, "💊 Name: Iron")
	assert.Contains(t, msg.Text, "💡 No description")
	require.Len(t, msg.Kb, 2)
	d, err := callback.Parse(msg.Kb[1][0].Data)
	require.NoError(t, err)
	assert.Equal(t, callback.Skip, d.Action)
}

func TestBot_CleanupOtherUsersDataIsForbidden(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)
	bob := telegram.User{ID: 2, Username: "bob"}

	h.press(bob, 2, 7, callback.Data{Action: callback.CleanupAll, UserID: "1"}.Encode())
	assert.Equal(t, forbiddenText, h.api.lastEdited(t).Text)
	assert.NotNil(t, h.users(t).User("1"))
}

func TestBot_SelectiveCleanup(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)

	h.private("/cleanup")
	menu := h.api.lastSent(t)
	assert.Contains(t, menu.Text, "⚙️ Reminders: 1")
	require.Len(t, menu.Kb, 3)

	h.press(aliceTG, 1, 8, menu.Kb[1][0].Data)
	inv := h.api.lastSent(t)
	require.Len(t, inv.Kb, 2)
	assert.Equal(t, "🗑️ Iron (active)", inv.Kb[0][0].Text)

	h.press(aliceTG, 1, 9, inv.Kb[0][0].Data)
	confirm := h.api.lastSent(t)
	assert.Contains(t, confirm.Text, "Delete all data for 'Iron'?")

	h.press(aliceTG, 1, 10, confirm.Kb[0][0].Data)
	assert.True(t, strings.HasPrefix(h.api.lastEdited(t).Text, "✅ Data for 'Iron' has been deleted"))
	assert.Empty(t, h.users(t).User("1").Reminders)
}

func TestInventoryKeyboard_OmitsLongNames(t *testing.T) {
	items := []services.PillInventoryItem{
		{Name: "Iron"},
		{Name: strings.Repeat("x", 60)},
	}
	kb, omitted := inventoryKeyboard("1", items)
	assert.Equal(t, 1, omitted)
	require.Len(t, kb, 2)
	assert.Contains(t, inventoryText(omitted), "1 pill(s)")
}

func TestBot_StopAndStatus(t *testing.T) {
	h := newHarness(t)
	seedActive(t, h)

	h.private("/status")
	status := h.api.lastSent(t).Text
	assert.Contains(t, status, "🟢 Iron")
	assert.Contains(t, status, "📊 Total: 1 active, 0 paused")

	h.private("/stop")
	assert.True(t, strings.HasPrefix(h.api.lastSent(t).Text, "🔴 Stopped 1 reminder(s)"))

	h.private("/stop")
	assert.Equal(t, "❌ You have no active reminders", h.api.lastSent(t).Text)
}
