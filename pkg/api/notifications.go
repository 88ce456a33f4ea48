package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/geniusharmony/harmony/pkg/model"
)

const DefaultNotificationLimit = 50

type NotificationFilter struct {
	Limit  int
	IsRead *bool
}

func (f NotificationFilter) query() map[string]string {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	q := map[string]string{"limit": strconv.Itoa(limit)}
	if f.IsRead != nil {
		q["is_read"] = strconv.FormatBool(*f.IsRead)
	}
	return q
}

func notificationPath(id model.NotificationID) string {
	return fmt.Sprintf("/notifications/%d/", id)
}

func (c *Client) ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/notifications/", query: filter.query(), result: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteNotification(ctx context.Context, id model.NotificationID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: notificationPath(id)})
}

func (c *Client) MarkNotificationRead(ctx context.Context, id model.NotificationID) error {
	return c.do(ctx, call{method: resty.MethodPost, path: notificationPath(id) + "mark-read/"})
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, call{method: resty.MethodPost, path: "/notifications/mark-all-read/"})
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/notifications/unread-count/", result: &out}); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) DeleteAllReadNotifications(ctx context.Context) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: "/notifications/delete-all-read/"})
}
