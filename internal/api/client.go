// Package api is the REST client for the office hours server. The push
// feeds in package live reflect every mutation made here back to the
// client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

// IdempotencyHeader carries a fresh random key on every mutating request so
// a retried call can be recognised server-side.
const IdempotencyHeader = "Idempotency-Key"

// Client makes REST calls against one server.
type Client struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client targeting baseURL (e.g. "http://127.0.0.1:8000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	return c
}

// NewQueue is the body of CreateQueue.
type NewQueue struct {
	Name             string   `json:"name"`
	AllowedBackends  []string `json:"allowed_backends"`
	Description      string   `json:"description,omitempty"`
	InpersonLocation string   `json:"inperson_location,omitempty"`
	HostIDs          []int    `json:"host_ids"`
}

// QueuePatch holds the queue fields to change. Nil fields are left alone.
type QueuePatch struct {
	Name             *string            `json:"name,omitempty"`
	Description      *string            `json:"description,omitempty"`
	InpersonLocation *string            `json:"inperson_location,omitempty"`
	AllowedBackends  []string           `json:"allowed_backends,omitempty"`
	Status           *model.QueueStatus `json:"status,omitempty"`
}

// GetUsers fetches /api/users/.
func (c *Client) GetUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, http.MethodGet, "/api/users/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser fetches /api/users/{id}/. Private fields are only filled in for
// the signed-in user.
func (c *Client) GetUser(ctx context.Context, id int) (*model.MyUser, error) {
	var out model.MyUser
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQueues fetches the queues the user hosts.
func (c *Client) GetQueues(ctx context.Context) ([]model.Queue, error) {
	var out []model.Queue
	if err := c.do(ctx, http.MethodGet, "/api/queues/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetQueue fetches /api/queues/{id}/ in the host or attendee view.
func (c *Client) GetQueue(ctx context.Context, id int) (*model.QueueDetail, error) {
	var out model.QueueDetail
	if err := c.do(ctx, http.MethodGet, queuePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchQueues(ctx context.Context, term string) ([]model.Queue, error) {
	var out []model.Queue
	path := "/api/queues_search/?search=" + url.QueryEscape(term)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateQueue(ctx context.Context, q NewQueue) (*model.QueueDetail, error) {
	if q.AllowedBackends == nil {
		q.AllowedBackends = []string{}
	}
	if q.HostIDs == nil {
		q.HostIDs = []int{}
	}
	var out model.QueueDetail
	if err := c.do(ctx, http.MethodPost, "/api/queues/", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateQueue(ctx context.Context, id int, patch QueuePatch) (*model.QueueDetail, error) {
	var out model.QueueDetail
	if err := c.do(ctx, http.MethodPatch, queuePath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetStatus opens or closes a queue.
func (c *Client) SetStatus(ctx context.Context, id int, open bool) (*model.QueueDetail, error) {
	status := model.QueueClosed
	if open {
		status = model.QueueOpen
	}
	return c.UpdateQueue(ctx, id, QueuePatch{Status: &status})
}

func (c *Client) DeleteQueue(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, queuePath(id), nil, nil)
}

func (c *Client) AddHost(ctx context.Context, queueID, userID int) error {
	return c.do(ctx, http.MethodPost, hostPath(queueID, userID), nil, nil)
}

func (c *Client) RemoveHost(ctx context.Context, queueID, userID int) error {
	return c.do(ctx, http.MethodDelete, hostPath(queueID, userID), nil, nil)
}

// AddMeeting puts userID in line. assigneeID may be nil.
func (c *Client) AddMeeting(ctx context.Context, queueID, userID int, backendType string, assigneeID *int) error {
	body := struct {
		Queue       int    `json:"queue"`
		AttendeeIDs []int  `json:"attendee_ids"`
		AssigneeID  *int   `json:"assignee_id"`
		BackendType string `json:"backend_type"`
	}{queueID, []int{userID}, assigneeID, backendType}
	return c.do(ctx, http.MethodPost, "/api/meetings/", body, nil)
}

func (c *Client) RemoveMeeting(ctx context.Context, meetingID int) error {
	return c.do(ctx, http.MethodDelete, meetingPath(meetingID), nil, nil)
}

func (c *Client) ChangeAgenda(ctx context.Context, meetingID int, agenda string) (*model.Meeting, error) {
	body := map[string]string{"agenda": agenda}
	return c.patchMeeting(ctx, meetingID, body)
}

// ChangeMeetingAssignee sets the host of a meeting. A nil userID unassigns it.
func (c *Client) ChangeMeetingAssignee(ctx context.Context, meetingID int, userID *int) (*model.Meeting, error) {
	body := struct {
		AssigneeID *int `json:"assignee_id"`
	}{userID}
	return c.patchMeeting(ctx, meetingID, body)
}

func (c *Client) ChangeMeetingType(ctx context.Context, meetingID int, backendType string) (*model.Meeting, error) {
	body := map[string]string{"backend_type": backendType}
	return c.patchMeeting(ctx, meetingID, body)
}

// StartMeeting sends POST /api/meetings/{id}/start/.
func (c *Client) StartMeeting(ctx context.Context, meetingID int) (*model.Meeting, error) {
	var out model.Meeting
	if err := c.do(ctx, http.MethodPost, meetingPath(meetingID)+"start/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) patchMeeting(ctx context.Context, meetingID int, body any) (*model.Meeting, error) {
	var out model.Meeting
	if err := c.do(ctx, http.MethodPatch, meetingPath(meetingID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "path": path})
	if method != http.MethodGet {
		key := uuid.NewString()
		req.Header.Set(IdempotencyHeader, key)
		log = log.WithField("idempotency_key", key)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody := drain(resp.Body)
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(respBody)}).Warn("request rejected")
		return responseError(resp, respBody)
	}
	log.WithField("status", resp.StatusCode).Debug("request ok")

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func queuePath(id int) string {
	return fmt.Sprintf("/api/queues/%d/", id)
}

func hostPath(queueID, userID int) string {
	return fmt.Sprintf("/api/queues/%d/hosts/%d/", queueID, userID)
}

func meetingPath(id int) string {
	return fmt.Sprintf("/api/meetings/%d/", id)
}
