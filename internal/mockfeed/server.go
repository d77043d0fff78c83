package mockfeed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
)

// Server serves the REST routes and push feeds over a Store. Every
// mutation goes through Server so that subscribers see it.
type Server struct {
	store *Store
	hub   *Hub
	log   *logrus.Entry
}

func NewServer(store *Store, log *logrus.Entry) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{store: store, hub: NewHub(log), log: log}
}

func (s *Server) Store() *Store { return s.store }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/queues/{id}/", s.handleQueueFeed)
	mux.HandleFunc("GET /ws/users/{id}/", s.handleUserFeed)

	mux.HandleFunc("GET /api/users/", s.handleUsers)
	mux.HandleFunc("GET /api/users/{id}/", s.handleUser)
	mux.HandleFunc("GET /api/queues/", s.handleQueues)
	mux.HandleFunc("GET /api/queues/{id}/", s.handleQueue)
	mux.HandleFunc("PATCH /api/queues/{id}/", s.handlePatchQueue)
	mux.HandleFunc("DELETE /api/queues/{id}/", s.handleDeleteQueue)
	mux.HandleFunc("POST /api/queues/{id}/hosts/{user_id}/", s.handleAddHost)
	mux.HandleFunc("DELETE /api/queues/{id}/hosts/{user_id}/", s.handleRemoveHost)
	mux.HandleFunc("PATCH /api/meetings/{id}/", s.handlePatchMeeting)
	mux.HandleFunc("DELETE /api/meetings/{id}/", s.handleDeleteMeeting)
	mux.HandleFunc("POST /api/meetings/{id}/start/", s.handleStartMeeting)
}

// SetQueueStatus opens or closes a queue and notifies its feeds.
func (s *Server) SetQueueStatus(queueID int, status model.QueueStatus) error {
	if err := s.store.SetStatus(queueID, status); err != nil {
		return err
	}
	s.publishQueue(queueID)
	return nil
}

func (s *Server) RenameQueue(queueID int, name string) error {
	if err := s.store.Rename(queueID, name); err != nil {
		return err
	}
	s.publishQueue(queueID)
	return nil
}

// AddHost adds a host. The new host's feed learns about the queue.
func (s *Server) AddHost(queueID, userID int) error {
	if err := s.store.AddHost(queueID, userID); err != nil {
		return err
	}
	s.publishQueue(queueID)
	return nil
}

// RemoveHost removes a host. The removed host's feed drops the queue.
func (s *Server) RemoveHost(queueID, userID int) error {
	if err := s.store.RemoveHost(queueID, userID); err != nil {
		return err
	}
	s.publishQueue(queueID)
	s.publishUser(userID)
	return nil
}

func (s *Server) AddMeeting(queueID int, attendee model.User, backendType string) (model.Meeting, error) {
	m, err := s.store.AddMeeting(queueID, attendee, backendType)
	if err != nil {
		return model.Meeting{}, err
	}
	s.publishQueue(queueID)
	s.publishUser(attendee.ID)
	return m, nil
}

func (s *Server) AssignMeeting(meetingID int, host *model.User) error {
	queueID, err := s.store.AssignMeeting(meetingID, host)
	if err != nil {
		return err
	}
	s.publishQueue(queueID)
	return nil
}

func (s *Server) StartMeeting(meetingID int) (model.Meeting, error) {
	queueID, err := s.store.StartMeeting(meetingID)
	if err != nil {
		return model.Meeting{}, err
	}
	s.publishQueue(queueID)
	m, _, _ := s.store.Meeting(meetingID)
	return m, nil
}

func (s *Server) RemoveMeeting(meetingID int) error {
	m, _, ok := s.store.Meeting(meetingID)
	if !ok {
		return ErrNotFound
	}
	queueID, err := s.store.RemoveMeeting(meetingID)
	if err != nil {
		return err
	}
	s.publishQueue(queueID)
	if a, ok := m.PrimaryAttendee(); ok {
		s.publishUser(a.ID)
	}
	return nil
}

// DeleteQueue removes a queue. Queue subscribers get a deleted message and
// then a not-found close.
func (s *Server) DeleteQueue(queueID int) error {
	hostIDs, err := s.store.DeleteQueue(queueID)
	if err != nil {
		return err
	}
	topic := live.QueuePath(queueID)
	env, _ := live.NewEnvelope(live.MsgDeleted, nil)
	s.hub.Publish(topic, env)
	s.hub.CloseTopic(topic, live.CloseNotFound)
	for _, id := range hostIDs {
		s.publishUser(id)
	}
	s.log.WithField("queue", queueID).Info("queue deleted")
	return nil
}

func (s *Server) publishQueue(queueID int) {
	q, ok := s.store.Queue(queueID)
	if !ok {
		return
	}
	env, err := live.NewEnvelope(live.MsgUpdate, q)
	if err != nil {
		s.log.WithError(err).Error("encode queue update")
		return
	}
	s.hub.Publish(live.QueuePath(queueID), env)
	for _, h := range q.Hosts {
		s.publishUser(h.ID)
	}
}

func (s *Server) publishUser(userID int) {
	u, ok := s.store.User(userID)
	if !ok {
		return
	}
	env, err := live.NewEnvelope(live.MsgUpdate, u)
	if err != nil {
		s.log.WithError(err).Error("encode user update")
		return
	}
	s.hub.Publish(live.UserPath(userID), env)
}

func (s *Server) handleQueueFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, found := s.store.Queue(id)
	s.serveFeed(w, r, live.QueuePath(id), found, q)
}

func (s *Server) handleUserFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, found := s.store.User(id)
	s.serveFeed(w, r, live.UserPath(id), found, u)
}

// serveFeed upgrades the request and subscribes it to topic. A missing
// resource is reported with a not-found close right after the handshake.
func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, topic string, found bool, current any) {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("feed upgrade failed")
		return
	}
	log := s.log.WithFields(logrus.Fields{"topic": topic, "remote": r.RemoteAddr})

	if !found {
		msg := websocket.FormatCloseMessage(live.CloseNotFound, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		conn.Close()
		log.Info("feed requested for missing resource")
		return
	}

	env, err := live.NewEnvelope(live.MsgInit, current)
	if err != nil {
		log.WithError(err).Error("encode init")
		conn.Close()
		return
	}
	c := s.hub.Subscribe(topic, conn, env)
	log.Debug("feed client connected")

	go func() {
		defer func() {
			s.hub.Unsubscribe(topic, c)
			log.Debug("feed client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Users())
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, found := s.store.User(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.SortQueues(s.store.Queues()))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, found := s.store.Queue(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePatchQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch struct {
		Name   *string            `json:"name"`
		Status *model.QueueStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Malformed request body."}})
		return
	}

	var err error
	if patch.Status != nil {
		if *patch.Status != model.QueueOpen && *patch.Status != model.QueueClosed {
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"status": {fmt.Sprintf("%q is not a valid choice.", *patch.Status)},
			})
			return
		}
		err = s.SetQueueStatus(id, *patch.Status)
	}
	if err == nil && patch.Name != nil {
		if *patch.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"name": {"This field may not be blank."}})
			return
		}
		err = s.RenameQueue(id, *patch.Name)
	}
	if s.writeStoreError(w, err) {
		return
	}
	q, _ := s.store.Queue(id)
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if s.writeStoreError(w, s.DeleteQueue(id)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddHost(w http.ResponseWriter, r *http.Request) {
	queueID, userID, ok := hostIDs(w, r)
	if !ok {
		return
	}
	if s.writeStoreError(w, s.AddHost(queueID, userID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveHost(w http.ResponseWriter, r *http.Request) {
	queueID, userID, ok := hostIDs(w, r)
	if !ok {
		return
	}
	if s.writeStoreError(w, s.RemoveHost(queueID, userID)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatchMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Malformed request body."}})
		return
	}

	if raw, ok := patch["assignee_id"]; ok {
		var assigneeID *int
		if err := json.Unmarshal(raw, &assigneeID); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"assignee_id": {"Expected an id or null."}})
			return
		}
		var host *model.User
		if assigneeID != nil {
			u, found := s.store.User(*assigneeID)
			if !found {
				writeJSON(w, http.StatusBadRequest, map[string][]string{"assignee_id": {"Unknown user."}})
				return
			}
			host = &u.User
		}
		if s.writeStoreError(w, s.AssignMeeting(id, host)) {
			return
		}
	}
	if raw, ok := patch["agenda"]; ok {
		var agenda string
		if err := json.Unmarshal(raw, &agenda); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"agenda": {"Not a valid string."}})
			return
		}
		queueID, err := s.store.SetAgenda(id, agenda)
		if s.writeStoreError(w, err) {
			return
		}
		s.publishQueue(queueID)
	}
	if raw, ok := patch["backend_type"]; ok {
		var backend string
		if err := json.Unmarshal(raw, &backend); err != nil || backend == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"backend_type": {"This field may not be blank."}})
			return
		}
		queueID, err := s.store.SetMeetingType(id, backend)
		if s.writeStoreError(w, err) {
			return
		}
		s.publishQueue(queueID)
	}

	m, _, found := s.store.Meeting(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if s.writeStoreError(w, s.RemoveMeeting(id)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.StartMeeting(id)
	if s.writeStoreError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	case errors.Is(err, ErrLastHost):
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"A queue must have at least one host."}})
	default:
		s.log.WithError(err).Error("store operation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func hostIDs(w http.ResponseWriter, r *http.Request) (queueID, userID int, ok bool) {
	queueID, err := strconv.Atoi(r.PathValue("id"))
	if err == nil {
		userID, err = strconv.Atoi(r.PathValue("user_id"))
	}
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return 0, 0, false
	}
	return queueID, userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// checkOrigin accepts clients without an Origin header and loopback
// origins. The mock server is only meant to run locally.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}
	ip := net.ParseIP(host)
	return host == "localhost" || (ip != nil && ip.IsLoopback())
}
