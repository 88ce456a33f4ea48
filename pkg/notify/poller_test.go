package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollNotifiesOnChange(t *testing.T) {
	inbox, backend, _ := newInbox(t)

	var seen []int
	poller, err := NewPoller(inbox, PollerConfig{OnChange: func(unread int) { seen = append(seen, unread) }})
	require.NoError(t, err)

	poller.Poll()
	assert.Empty(t, seen, "unchanged count is not reported")

	backend.mu.Lock()
	backend.unread = 5
	backend.mu.Unlock()
	poller.Poll()
	assert.Equal(t, []int{5}, seen)
	assert.Equal(t, 5, inbox.UnreadCount())

	backend.failWith(errors.New("offline"))
	poller.Poll()
	assert.Equal(t, []int{5}, seen)
	assert.Equal(t, 5, inbox.UnreadCount())
}

func TestNewPollerValidation(t *testing.T) {
	_, err := NewPoller(nil, PollerConfig{})
	assert.Error(t, err)

	inbox, _, _ := newInbox(t)
	_, err = NewPoller(inbox, PollerConfig{Schedule: "every now and then"})
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestPollerStartStop(t *testing.T) {
	inbox, _, _ := newInbox(t)
	poller, err := NewPoller(inbox, PollerConfig{Schedule: DefaultPollSchedule})
	require.NoError(t, err)

	poller.Start()
	poller.Start()

	select {
	case <-poller.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
