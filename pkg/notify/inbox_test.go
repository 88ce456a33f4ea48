package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniusharmony/harmony/pkg/api"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/mutation"
	"github.com/geniusharmony/harmony/pkg/storage"
	memorystorage "github.com/geniusharmony/harmony/pkg/storage/memory"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu     sync.Mutex
	items  []model.Notification
	unread int
	fail   error
	calls  []string
	filter api.NotificationFilter
}

func (f *fakeBackend) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail
}

func (f *fakeBackend) ListNotifications(_ context.Context, filter api.NotificationFilter) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]model.Notification(nil), f.items...), nil
}

func (f *fakeBackend) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	return f.unread, nil
}

func (f *fakeBackend) MarkNotificationRead(context.Context, model.NotificationID) error {
	return f.record("mark-read")
}

func (f *fakeBackend) MarkAllNotificationsRead(context.Context) error {
	return f.record("mark-all-read")
}

func (f *fakeBackend) DeleteNotification(context.Context, model.NotificationID) error {
	return f.record("delete")
}

func (f *fakeBackend) DeleteAllReadNotifications(context.Context) error {
	return f.record("delete-all-read")
}

func (f *fakeBackend) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

type staticUser struct {
	user *model.User
}

func (s staticUser) User() *model.User { return s.user.Clone() }

func seed() []model.Notification {
	readAt := fixedNow.Add(-time.Hour)
	return []model.Notification{
		{ID: 1, Type: "tache_assignee", Titre: "Nouvelle tâche", IsRead: false},
		{ID: 2, Type: "projet_statut", Titre: "Projet en revue", IsRead: true, ReadAt: &readAt},
		{ID: 3, Type: "chef_projet", Titre: "Chef de projet", IsRead: false},
		{ID: 4, Type: "document", Titre: "Nouveau document", IsRead: true, ReadAt: &readAt},
	}
}

func newInbox(t *testing.T) (*Inbox, *fakeBackend, *memorystorage.Adapter) {
	t.Helper()
	backend := &fakeBackend{items: seed(), unread: 2}
	journal := memorystorage.NewAdapter()
	inbox, err := NewInbox(
		backend,
		staticUser{user: &model.User{ID: 5, Role: model.RoleMembre}},
		mutation.NewExecutor(mutation.Config{Journal: journal}),
		Config{Now: func() time.Time { return fixedNow }},
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, inbox.Refresh(ctx))
	require.NoError(t, inbox.RefreshUnread(ctx))
	return inbox, backend, journal
}

func TestRefresh(t *testing.T) {
	inbox, backend, _ := newInbox(t)

	assert.Equal(t, api.DefaultNotificationLimit, backend.filter.Limit)
	assert.Nil(t, backend.filter.IsRead)
	assert.Len(t, inbox.Notifications(), 4)
	assert.Equal(t, 2, inbox.UnreadCount())

	backend.failWith(herrors.New(herrors.CodeAPIUnavailable, "down"))
	assert.Error(t, inbox.Refresh(context.Background()))
	assert.Error(t, inbox.RefreshUnread(context.Background()))
	assert.Len(t, inbox.Notifications(), 4, "failed refresh keeps the last state")
	assert.Equal(t, 2, inbox.UnreadCount())
}

func TestMarkRead(t *testing.T) {
	inbox, backend, journal := newInbox(t)

	require.NoError(t, inbox.MarkRead(context.Background(), 1))
	n := inbox.Notifications()[0]
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, fixedNow, *n.ReadAt)
	assert.Equal(t, 1, inbox.UnreadCount())
	assert.Equal(t, []string{"mark-read"}, backend.calls)

	records, err := journal.ListJournalByEntity(context.Background(), entityKind, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, storage.JournalEventCommitted, records[1].Event)

	require.NoError(t, inbox.MarkRead(context.Background(), 2))
	assert.Equal(t, 1, inbox.UnreadCount(), "already read notifications do not move the counter")
}

func TestFailedMutationsRestoreExactState(t *testing.T) {
	tests := []struct {
		name string
		run  func(context.Context, *Inbox) error
	}{
		{name: "mark read", run: func(ctx context.Context, i *Inbox) error { return i.MarkRead(ctx, 1) }},
		{name: "mark all read", run: func(ctx context.Context, i *Inbox) error { return i.MarkAllRead(ctx) }},
		{name: "delete unread", run: func(ctx context.Context, i *Inbox) error { return i.Delete(ctx, 3) }},
		{name: "delete read", run: func(ctx context.Context, i *Inbox) error { return i.Delete(ctx, 2) }},
		{name: "delete all read", run: func(ctx context.Context, i *Inbox) error { return i.DeleteAllRead(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inbox, backend, _ := newInbox(t)
			before := inbox.Notifications()
			backend.failWith(herrors.New(herrors.CodeNotFound, "Notification introuvable"))

			err := tt.run(context.Background(), inbox)
			require.Error(t, err)
			assert.True(t, herrors.IsCode(err, herrors.CodeNotFound))
			assert.Equal(t, before, inbox.Notifications())
			assert.Equal(t, 2, inbox.UnreadCount())
		})
	}
}

func TestMarkAllRead(t *testing.T) {
	inbox, _, _ := newInbox(t)

	require.NoError(t, inbox.MarkAllRead(context.Background()))
	for _, n := range inbox.Notifications() {
		assert.True(t, n.IsRead)
		assert.NotNil(t, n.ReadAt)
	}
	assert.Zero(t, inbox.UnreadCount())
}

func TestDelete(t *testing.T) {
	inbox, _, _ := newInbox(t)
	ctx := context.Background()

	require.NoError(t, inbox.Delete(ctx, 3))
	assert.Equal(t, []model.NotificationID{1, 2, 4}, ids(inbox.Notifications()))
	assert.Equal(t, 1, inbox.UnreadCount())

	require.NoError(t, inbox.Delete(ctx, 2))
	assert.Equal(t, 1, inbox.UnreadCount(), "deleting a read notification keeps the counter")

	require.NoError(t, inbox.Delete(ctx, 99), "unknown ids are still sent to the backend")
	assert.Equal(t, []model.NotificationID{1, 4}, ids(inbox.Notifications()))
}

func TestDeleteAllRead(t *testing.T) {
	inbox, backend, _ := newInbox(t)

	require.NoError(t, inbox.DeleteAllRead(context.Background()))
	assert.Equal(t, []model.NotificationID{1, 3}, ids(inbox.Notifications()))
	assert.Equal(t, 2, inbox.UnreadCount())
	assert.Equal(t, []string{"delete-all-read"}, backend.calls)
}

func TestMutationsRequireUser(t *testing.T) {
	inbox, err := NewInbox(&fakeBackend{}, staticUser{}, nil, Config{})
	require.NoError(t, err)

	err = inbox.MarkAllRead(context.Background())
	assert.True(t, herrors.IsCode(err, herrors.CodeUnauthenticated))
}

func TestNewInboxRequiresCollaborators(t *testing.T) {
	_, err := NewInbox(nil, staticUser{}, nil, Config{})
	assert.ErrorIs(t, err, herrors.ErrMissingAPI)

	_, err = NewInbox(&fakeBackend{}, nil, nil, Config{})
	assert.ErrorIs(t, err, herrors.ErrNotLoggedIn)
}

func ids(items []model.Notification) []model.NotificationID {
	out := make([]model.NotificationID, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}
