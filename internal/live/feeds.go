package live

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

const msgQueueDeleted = "The queue was deleted."

// SocketURL turns an http(s) base URL and a feed path into a ws(s) URL.
func SocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func QueuePath(queueID int) string {
	return fmt.Sprintf("/ws/queues/%d/", queueID)
}

func UserPath(userID int) string {
	return fmt.Sprintf("/ws/users/%d/", userID)
}

// QueueFeed follows one queue. The payload is the host view when the user
// hosts the queue and the attendee view otherwise. When the queue is
// deleted onUpdate receives nil and the channel reports that the queue was
// deleted.
func QueueFeed(ctx context.Context, baseURL string, queueID int, onUpdate func(*model.QueueDetail), opts ...Option) (*Channel[*model.QueueDetail], error) {
	u, err := SocketURL(baseURL, QueuePath(queueID))
	if err != nil {
		return nil, err
	}
	onDelete := func() {
		if onUpdate != nil {
			onUpdate(nil)
		}
	}
	opts = append(opts, withDeleteError(msgQueueDeleted))
	return Open(ctx, u, onUpdate, onDelete, opts...), nil
}

// UserFeed follows one user. When the user is deleted onUpdate receives nil.
func UserFeed(ctx context.Context, baseURL string, userID int, onUpdate func(*model.MyUser), opts ...Option) (*Channel[*model.MyUser], error) {
	u, err := SocketURL(baseURL, UserPath(userID))
	if err != nil {
		return nil, err
	}
	onDelete := func() {
		if onUpdate != nil {
			onUpdate(nil)
		}
	}
	return Open(ctx, u, onUpdate, onDelete, opts...), nil
}
