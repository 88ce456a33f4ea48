// Package notify keeps the current user's notification inbox and its
// unread counter in sync with the backend.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/geniusharmony/harmony/pkg/api"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/mutation"
)

const (
	entityKind  = "notification"
	allEntities = 0
)

type Backend interface {
	ListNotifications(ctx context.Context, filter api.NotificationFilter) ([]model.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id model.NotificationID) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id model.NotificationID) error
	DeleteAllReadNotifications(ctx context.Context) error
}

type UserSource interface {
	User() *model.User
}

type Config struct {
	Logger logr.Logger
	Now    func() time.Time
}

type Inbox struct {
	backend  Backend
	users    UserSource
	executor *mutation.Executor
	logger   logr.Logger
	now      func() time.Time

	mu     sync.RWMutex
	items  []model.Notification
	unread int
}

func NewInbox(backend Backend, users UserSource, executor *mutation.Executor, config Config) (*Inbox, error) {
	if backend == nil {
		return nil, herrors.ErrMissingAPI
	}
	if users == nil {
		return nil, herrors.Wrap(herrors.CodeUnauthenticated, "notify: user source is required", herrors.ErrNotLoggedIn)
	}
	if executor == nil {
		executor = mutation.NewExecutor(mutation.Config{Logger: config.Logger})
	}
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Inbox{
		backend:  backend,
		users:    users,
		executor: executor,
		logger:   logger.WithName("notify"),
		now:      now,
		items:    []model.Notification{},
	}, nil
}

// Refresh reloads the latest notifications.
func (i *Inbox) Refresh(ctx context.Context) error {
	items, err := i.backend.ListNotifications(ctx, api.NotificationFilter{Limit: api.DefaultNotificationLimit})
	if err != nil {
		i.logger.Error(err, "failed to fetch notifications")
		return err
	}
	if items == nil {
		items = []model.Notification{}
	}

	i.mu.Lock()
	i.items = items
	i.mu.Unlock()
	return nil
}

// RefreshUnread reloads only the unread counter.
func (i *Inbox) RefreshUnread(ctx context.Context) error {
	count, err := i.backend.UnreadCount(ctx)
	if err != nil {
		i.logger.Error(err, "failed to fetch unread count")
		return err
	}

	i.mu.Lock()
	i.unread = count
	i.mu.Unlock()
	return nil
}

func (i *Inbox) Notifications() []model.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]model.Notification, len(i.items))
	copy(out, i.items)
	return out
}

func (i *Inbox) UnreadCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.unread
}

func (i *Inbox) MarkRead(ctx context.Context, id model.NotificationID) error {
	return i.execute(ctx, &markReadCommand{inbox: i, id: id})
}

func (i *Inbox) MarkAllRead(ctx context.Context) error {
	return i.execute(ctx, &markAllReadCommand{inbox: i})
}

func (i *Inbox) Delete(ctx context.Context, id model.NotificationID) error {
	return i.execute(ctx, &deleteCommand{inbox: i, id: id})
}

func (i *Inbox) DeleteAllRead(ctx context.Context) error {
	return i.execute(ctx, &deleteAllReadCommand{inbox: i})
}

func (i *Inbox) execute(ctx context.Context, cmd mutation.Command) error {
	user := i.users.User()
	if user == nil {
		return herrors.Wrap(herrors.CodeUnauthenticated, "notify: not logged in", herrors.ErrNotLoggedIn)
	}
	return i.executor.Execute(ctx, user.ID, cmd)
}

// indexOf expects i.mu to be held.
func (i *Inbox) indexOf(id model.NotificationID) int {
	for idx, n := range i.items {
		if n.ID == id {
			return idx
		}
	}
	return -1
}

type readState struct {
	id     model.NotificationID
	isRead bool
	readAt *time.Time
}

type markReadCommand struct {
	inbox *Inbox
	id    model.NotificationID

	prev        *readState
	decremented bool
}

func (c *markReadCommand) Name() string { return "mark_notification_read" }

func (c *markReadCommand) Entity() (string, int64) { return entityKind, int64(c.id) }

// Apply decrements the counter unless the notification is known to be read
// already.
func (c *markReadCommand) Apply() {
	i := c.inbox
	at := i.now().UTC()

	i.mu.Lock()
	defer i.mu.Unlock()

	alreadyRead := false
	if idx := i.indexOf(c.id); idx >= 0 {
		n := &i.items[idx]
		alreadyRead = n.IsRead
		c.prev = &readState{id: n.ID, isRead: n.IsRead, readAt: n.ReadAt}
		n.IsRead = true
		if !alreadyRead {
			n.ReadAt = &at
		}
	}
	if !alreadyRead && i.unread > 0 {
		i.unread--
		c.decremented = true
	}
}

func (c *markReadCommand) Revert() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	if c.prev != nil {
		if idx := i.indexOf(c.id); idx >= 0 {
			i.items[idx].IsRead = c.prev.isRead
			i.items[idx].ReadAt = c.prev.readAt
		}
	}
	if c.decremented {
		i.unread++
	}
}

func (c *markReadCommand) Commit(ctx context.Context) error {
	return c.inbox.backend.MarkNotificationRead(ctx, c.id)
}

type markAllReadCommand struct {
	inbox *Inbox

	prev   []readState
	unread int
}

func (c *markAllReadCommand) Name() string { return "mark_all_notifications_read" }

func (c *markAllReadCommand) Entity() (string, int64) { return entityKind, allEntities }

func (c *markAllReadCommand) Apply() {
	i := c.inbox
	at := i.now().UTC()

	i.mu.Lock()
	defer i.mu.Unlock()

	c.unread = i.unread
	c.prev = c.prev[:0]
	for idx := range i.items {
		n := &i.items[idx]
		if n.IsRead {
			continue
		}
		c.prev = append(c.prev, readState{id: n.ID, readAt: n.ReadAt})
		n.IsRead = true
		n.ReadAt = &at
	}
	i.unread = 0
}

func (c *markAllReadCommand) Revert() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, state := range c.prev {
		if idx := i.indexOf(state.id); idx >= 0 {
			i.items[idx].IsRead = false
			i.items[idx].ReadAt = state.readAt
		}
	}
	i.unread = c.unread
}

func (c *markAllReadCommand) Commit(ctx context.Context) error {
	return c.inbox.backend.MarkAllNotificationsRead(ctx)
}

type removed struct {
	index int
	item  model.Notification
}

type deleteCommand struct {
	inbox *Inbox
	id    model.NotificationID

	removed     *removed
	decremented bool
}

func (c *deleteCommand) Name() string { return "delete_notification" }

func (c *deleteCommand) Entity() (string, int64) { return entityKind, int64(c.id) }

func (c *deleteCommand) Apply() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	idx := i.indexOf(c.id)
	if idx < 0 {
		return
	}
	item := i.items[idx]
	c.removed = &removed{index: idx, item: item}
	i.items = append(i.items[:idx:idx], i.items[idx+1:]...)
	if !item.IsRead && i.unread > 0 {
		i.unread--
		c.decremented = true
	}
}

func (c *deleteCommand) Revert() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	if c.removed != nil {
		i.items = insertAt(i.items, c.removed.index, c.removed.item)
	}
	if c.decremented {
		i.unread++
	}
}

func (c *deleteCommand) Commit(ctx context.Context) error {
	return c.inbox.backend.DeleteNotification(ctx, c.id)
}

type deleteAllReadCommand struct {
	inbox *Inbox

	removed []removed
}

func (c *deleteAllReadCommand) Name() string { return "delete_read_notifications" }

func (c *deleteAllReadCommand) Entity() (string, int64) { return entityKind, allEntities }

func (c *deleteAllReadCommand) Apply() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := make([]model.Notification, 0, len(i.items))
	c.removed = c.removed[:0]
	for idx, n := range i.items {
		if n.IsRead {
			c.removed = append(c.removed, removed{index: idx, item: n})
			continue
		}
		kept = append(kept, n)
	}
	i.items = kept
}

// Revert reinserts in ascending original order so every index lands where
// it was.
func (c *deleteAllReadCommand) Revert() {
	i := c.inbox
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, r := range c.removed {
		i.items = insertAt(i.items, r.index, r.item)
	}
}

func (c *deleteAllReadCommand) Commit(ctx context.Context) error {
	return c.inbox.backend.DeleteAllReadNotifications(ctx)
}

func insertAt(items []model.Notification, index int, item model.Notification) []model.Notification {
	if index > len(items) {
		index = len(items)
	}
	out := make([]model.Notification, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	return append(out, items[index:]...)
}
