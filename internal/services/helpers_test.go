package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"pillsreminder/internal/events"
	"pillsreminder/internal/models"
	"pillsreminder/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testChatID int64 = -1001

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// manualAfter hands every requested timer to the test, which fires it explicitly
type manualAfter struct {
	timers chan chan time.Time
}

func newManualAfter() *manualAfter {
	return &manualAfter{timers: make(chan chan time.Time, 32)}
}

func (m *manualAfter) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.timers <- ch
	return ch
}

func (m *manualAfter) next(t *testing.T) chan time.Time {
	t.Helper()
	select {
	case ch := <-m.timers:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no timer was requested")
		return nil
	}
}

type delivered struct {
	ChatID int64
	Text   string
	Kb     models.Keyboard
}

type updated struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []delivered
	updated   []updated
	failWith  error
	signal    chan struct{}
	nextID    int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{signal: make(chan struct{}, 64)}
}

func (n *fakeNotifier) Deliver(_ context.Context, chatID int64, text string, kb models.Keyboard) (int64, error) {
	n.mu.Lock()
	defer func() {
		n.mu.Unlock()
		select {
		case n.signal <- struct{}{}:
		default:
		}
	}()
	if n.failWith != nil {
		return 0, n.failWith
	}
	n.nextID++
	n.delivered = append(n.delivered, delivered{ChatID: chatID, Text: text, Kb: kb})
	return n.nextID, nil
}

func (n *fakeNotifier) Update(_ context.Context, chatID, messageID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, updated{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (n *fakeNotifier) Delivered() []delivered {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]delivered(nil), n.delivered...)
}

func (n *fakeNotifier) Updated() []updated {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]updated(nil), n.updated...)
}

func (n *fakeNotifier) waitDeliveries(t *testing.T, count int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for len(n.Delivered()) < count {
		select {
		case <-n.signal:
		case <-deadline:
			t.Fatalf("expected %d deliveries, got %d", count, len(n.Delivered()))
		}
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.Change
}

func (p *recordingPublisher) Publish(c events.Change) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return true
}

func (p *recordingPublisher) Kinds() []events.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.ChangeKind, 0, len(p.changes))
	for _, c := range p.changes {
		out = append(out, c.Kind)
	}
	return out
}

type recordingMailer struct {
	mu      sync.Mutex
	entries []models.ArchiveEntry
}

func (m *recordingMailer) SendCourseSummary(entry models.ArchiveEntry, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

type fixture struct {
	ctx       context.Context
	store     *store.Store
	clock     *fakeClock
	after     *manualAfter
	tracker   *Tracker
	notifier  *fakeNotifier
	changes   *recordingPublisher
	mailer    *recordingMailer
	dialog    *Dialog
	worker    *ReminderWorker
	ack       *Acknowledger
	mgmt      *Management
	aggregate *Aggregator
}

// baseTime is 08:00 UTC on a fixed day
var baseTime = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()

	st := store.New(store.NewMemoryBackend(), log)
	f := &fixture{
		ctx:      ctx,
		store:    st,
		clock:    newFakeClock(baseTime),
		after:    newManualAfter(),
		notifier: newFakeNotifier(),
		changes:  &recordingPublisher{},
		mailer:   &recordingMailer{},
	}
	f.tracker = NewTracker(30*time.Minute, log, WithAfter(f.after.After))
	f.dialog = NewDialog(st, f.changes, f.clock.Now, log)
	f.worker = NewReminderWorker(st, f.tracker, f.notifier, testChatID, time.UTC, f.clock.Now, log)
	f.ack = NewAcknowledger(st, f.tracker, f.notifier, f.changes, f.clock.Now, time.UTC, true, log)
	f.mgmt = NewManagement(st, f.tracker, f.changes, f.mailer, f.clock.Now, time.UTC, log)
	f.aggregate = NewAggregator(st, f.clock.Now, time.UTC)

	t.Cleanup(func() {
		cancel()
		f.tracker.Wait()
		st.Close()
	})
	return f
}

func intPtr(n int) *int { return &n }

func (f *fixture) seedUser(t *testing.T, u *models.User) {
	t.Helper()
	if u.Reminders == nil {
		u.Reminders = map[string]*models.Reminder{}
	}
	require.NoError(t, f.store.UpdateUsers(f.ctx, func(doc *models.UsersDocument) error {
		doc.Users[u.ID] = u
		return nil
	}))
}

func (f *fixture) seedEvents(t *testing.T, evs ...models.Event) {
	t.Helper()
	require.NoError(t, f.store.UpdateHistory(f.ctx, func(doc *models.HistoryDocument) error {
		doc.History = append(doc.History, evs...)
		return nil
	}))
}

func (f *fixture) seedArchive(t *testing.T, entries ...models.ArchiveEntry) {
	t.Helper()
	require.NoError(t, f.store.UpdateArchive(f.ctx, func(doc *models.ArchiveDocument) error {
		doc.Archive = append(doc.Archive, entries...)
		return nil
	}))
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	doc, err := f.store.Users(f.ctx)
	require.NoError(t, err)
	return doc.User(id)
}

func (f *fixture) history(t *testing.T) []models.Event {
	t.Helper()
	doc, err := f.store.History(f.ctx)
	require.NoError(t, err)
	return doc.History
}

// aliceWithVitamin seeds user 1 (alice) with an active two-slot reminder r1
func (f *fixture) aliceWithVitamin(t *testing.T) {
	t.Helper()
	f.seedUser(t, &models.User{
		ID:       "1",
		Username: "alice",
		ChatID:   1,
		Reminders: map[string]*models.Reminder{
			"r1": {
				ID:           "r1",
				PillName:     "Vitamin D",
				CourseNumber: 1,
				Dosage:       "1000 IU",
				Description:  "with breakfast",
				DurationDays: intPtr(10),
				TimesPerDay:  2,
				Times:        []models.TimeSlot{{Time: "08:00"}, {Time: "20:00"}},
				Status:       models.ReminderActive,
				Created:      baseTime.Add(-9 * day),
			},
		},
	})
}
