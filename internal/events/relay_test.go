package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pillsreminder/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotter struct{}

func (fakeSnapshotter) UserSnapshot(_ context.Context, userID string) (*models.UserSnapshot, error) {
	return &models.UserSnapshot{UserID: userID, Username: "alice"}, nil
}

type recordingSink struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (s *recordingSink) Publish(_ context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.body = append(s.body, body)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func TestBus_PublishDropsWhenFull(t *testing.T) {
	b := NewBus(1)
	assert.True(t, b.Publish(Change{Kind: ChangeEventRecorded}))
	assert.False(t, b.Publish(Change{Kind: ChangeEventRecorded}))

	var nilBus *Bus
	assert.False(t, nilBus.Publish(Change{}))
}

func TestRelay_PublishesUserSnapshot(t *testing.T) {
	bus := NewBus(4)
	sink := &recordingSink{}
	relay := NewRelay(bus, fakeSnapshotter{}, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	bus.Publish(Change{Kind: ChangeEventRecorded, UserID: "7"})
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, "pills.changed.7", sink.keys[0])
	var msg snapshotMessage
	require.NoError(t, json.Unmarshal(sink.body[0], &msg))
	assert.Equal(t, ChangeEventRecorded, msg.Change.Kind)
	assert.Equal(t, "7", msg.Snapshot.UserID)
}
