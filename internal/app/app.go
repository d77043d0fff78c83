package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/api"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/changelog"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/live"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/model"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/refresh"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/theme"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/views/activity"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/views/alerts"
	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/views/status"
)

// Options selects what the model follows and how.
type Options struct {
	BaseURL string
	QueueID int
	// UserID enables the user feed and the hosted-queue list when positive.
	UserID int
	// Poll replaces the queue feed with REST polling.
	Poll             bool
	RefreshInterval  time.Duration
	EventLifetime    time.Duration
	Live             []live.Option
	DescriptionStyle string
	Log              *logrus.Entry
}

// Model is the root Bubble Tea model.
type Model struct {
	api    *api.Client
	opts   Options
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Feed handles, set once openFeeds reports back.
	queueFeed  *live.Channel[*model.QueueDetail]
	userFeed   *live.Channel[*model.MyUser]
	poller     *refresh.Scheduler
	queueSnaps *snapshots[*model.QueueDetail]
	userSnaps  *snapshots[*model.MyUser]
	polls      chan pollMsg

	// Snapshots.
	queue    *model.QueueDetail
	meetings []model.Meeting // sorted by line place
	user     *model.MyUser
	hosted   []model.Queue // sorted open first

	meetingLog *changelog.Log[model.Meeting]
	queueLog   *changelog.Log[model.Queue]

	// Errors.
	queueErr  error
	userErr   error
	pollErr   error
	actionErr error
	queueDone bool

	selected     int
	showActivity bool
	prompt       prompt

	statusBar status.Model
	activity  activity.Model
	desc      *descRenderer
}

// New creates the root model. Nothing connects until Init runs.
func New(client *api.Client, opts Options) Model {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.DescriptionStyle == "" {
		opts.DescriptionStyle = "dark"
	}
	// Polling needs a REST client; follow the live feed without one.
	if client == nil {
		opts.Poll = false
	}
	ctx, cancel := context.WithCancel(context.Background())
	lifetime := changelog.WithLifetime(opts.EventLifetime)

	statusBar := status.New()
	if opts.Poll {
		statusBar.Link = status.LinkPolling
	}

	return Model{
		api:        client,
		opts:       opts,
		log:        opts.Log,
		ctx:        ctx,
		cancel:     cancel,
		keys:       DefaultKeyMap(),
		queueSnaps: &snapshots[*model.QueueDetail]{},
		userSnaps:  &snapshots[*model.MyUser]{},
		polls:      make(chan pollMsg, 1),
		meetingLog: changelog.New[model.Meeting](lifetime, changelog.WithLogger(opts.Log.WithField("log", "meetings"))),
		queueLog:   changelog.New[model.Queue](lifetime, changelog.WithLogger(opts.Log.WithField("log", "queues"))),
		statusBar:  statusBar,
		activity:   activity.New(),
		desc:       &descRenderer{style: opts.DescriptionStyle},
	}
}

// Init opens the feeds and starts listening to both change logs.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.openFeeds,
		waitChanges(m.ctx, m.meetingLog.Notify()),
		waitChanges(m.ctx, m.queueLog.Notify()),
	}
	if m.opts.Poll {
		cmds = append(cmds, m.fetch)
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.poller != nil {
			m.poller.Interact()
		}
		return m.handleKey(msg)

	case feedsOpenedMsg:
		m.queueFeed, m.userFeed, m.poller = msg.queue, msg.user, msg.poller
		var cmds []tea.Cmd
		if msg.err != nil {
			m.queueErr = msg.err
			m.activity.Error(activity.SourceQueue, msg.err)
		}
		if m.queueFeed != nil {
			m.activity.Opened(activity.SourceQueue, m.queueFeed.URL())
			cmds = append(cmds, waitFeed(m.queueFeed, m.queueSnaps))
		}
		if m.userFeed != nil {
			m.activity.Opened(activity.SourceUser, m.userFeed.URL())
			cmds = append(cmds, waitFeed(m.userFeed, m.userSnaps))
		}
		if m.poller != nil {
			m.activity.Opened(activity.SourcePoll, fmt.Sprintf("every %s", m.opts.RefreshInterval))
			cmds = append(cmds, m.waitPoll)
		}
		m.refreshStatus()
		return m, tea.Batch(cmds...)

	case feedMsg[*model.QueueDetail]:
		for _, q := range msg.values {
			m.activity.Snapshot(activity.SourceQueue, m.applyQueue(q), q == nil)
		}
		m.noteErr(activity.SourceQueue, m.queueErr, msg.err)
		m.queueErr = msg.err
		m.queueDone = msg.done
		m.refreshStatus()
		if msg.done {
			m.activity.Stopped(activity.SourceQueue)
			return m, nil
		}
		return m, waitFeed(m.queueFeed, m.queueSnaps)

	case feedMsg[*model.MyUser]:
		for _, u := range msg.values {
			m.activity.Snapshot(activity.SourceUser, m.applyUser(u), u == nil)
		}
		m.noteErr(activity.SourceUser, m.userErr, msg.err)
		m.userErr = msg.err
		if msg.done {
			m.activity.Stopped(activity.SourceUser)
			return m, nil
		}
		return m, waitFeed(m.userFeed, m.userSnaps)

	case pollMsg:
		if msg.err != nil {
			m.noteErr(activity.SourcePoll, m.pollErr, msg.err)
			m.pollErr = msg.err
		} else {
			m.pollErr = nil
			m.activity.Snapshot(activity.SourcePoll, m.applyQueue(msg.queue), false)
		}
		m.refreshStatus()
		if m.poller != nil && !msg.manual {
			return m, m.waitPoll
		}
		return m, nil

	case changesMsg:
		return m, waitChanges(m.ctx, msg.notify)

	case actionMsg:
		m.actionErr = msg.err
		if msg.err != nil {
			m.activity.Error(activity.SourceAction, fmt.Errorf("%s: %w", msg.what, msg.err))
			return m, nil
		}
		m.activity.Action(msg.what)
		if m.opts.Poll {
			return m, m.fetch
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt.kind != promptNone {
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}
		return m.handlePromptKey(msg)
	}
	if m.showActivity {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Activity):
			m.showActivity = false
		case key.Matches(msg, m.keys.Up):
			m.activity.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.activity.ScrollDown(1)
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Down):
		if len(m.meetings) > 0 {
			m.selected = (m.selected + 1) % len(m.meetings)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.meetings) > 0 {
			m.selected = (m.selected - 1 + len(m.meetings)) % len(m.meetings)
		}
		return m, nil

	case key.Matches(msg, m.keys.Start):
		mt, ok := m.selectedMeeting()
		if !ok || mt.Started() || m.api == nil {
			return m, nil
		}
		return m, m.action("started meeting with "+meetingName(mt), func(ctx context.Context) error {
			_, err := m.api.StartMeeting(ctx, mt.ID)
			return err
		})

	case key.Matches(msg, m.keys.Assign):
		mt, ok := m.selectedMeeting()
		if !ok || m.api == nil || m.opts.UserID <= 0 {
			return m, nil
		}
		var assignee *int
		what := "released " + meetingName(mt)
		if mt.Assignee == nil || mt.Assignee.ID != m.opts.UserID {
			me := m.opts.UserID
			assignee = &me
			what = "took " + meetingName(mt)
		}
		return m, m.action(what, func(ctx context.Context) error {
			_, err := m.api.ChangeMeetingAssignee(ctx, mt.ID, assignee)
			return err
		})

	case key.Matches(msg, m.keys.MeetingType):
		mt, ok := m.selectedMeeting()
		if !ok || m.api == nil || m.queue == nil {
			return m, nil
		}
		next, ok := nextBackend(m.queue.AllowedBackends, mt.BackendType)
		if !ok {
			return m, nil
		}
		return m, m.action(fmt.Sprintf("switched %s to %s", meetingName(mt), next), func(ctx context.Context) error {
			_, err := m.api.ChangeMeetingType(ctx, mt.ID, next)
			return err
		})

	case key.Matches(msg, m.keys.Agenda):
		return m.openPrompt(promptAgenda)

	case key.Matches(msg, m.keys.Remove):
		mt, ok := m.selectedMeeting()
		if !ok || m.api == nil {
			return m, nil
		}
		return m, m.action("removed "+meetingName(mt)+" from the line", func(ctx context.Context) error {
			return m.api.RemoveMeeting(ctx, mt.ID)
		})

	case key.Matches(msg, m.keys.AddHost):
		return m.openPrompt(promptAddHost)

	case key.Matches(msg, m.keys.RemoveHost):
		return m.openPrompt(promptRemoveHost)

	case key.Matches(msg, m.keys.Toggle):
		if m.queue == nil || m.api == nil {
			return m, nil
		}
		open := !m.queue.IsOpen()
		what := "closed the queue"
		if open {
			what = "opened the queue"
		}
		id := m.queue.ID
		return m, m.action(what, func(ctx context.Context) error {
			_, err := m.api.SetStatus(ctx, id, open)
			return err
		})

	case key.Matches(msg, m.keys.Dismiss):
		m.dismissNewest()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.api == nil {
			return m, nil
		}
		return m, m.fetch

	case key.Matches(msg, m.keys.Activity):
		m.showActivity = true
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.queueFeed != nil {
		m.queueFeed.Close()
	}
	if m.userFeed != nil {
		m.userFeed.Close()
	}
	if m.poller != nil {
		m.poller.Stop()
	}
	m.meetingLog.Close()
	m.queueLog.Close()
	m.cancel()
	return m, tea.Quit
}

// applyQueue records meeting changes against the previous snapshot,
// replaces it and returns the number of change events. Only host views
// carry meetings to compare.
func (m *Model) applyQueue(q *model.QueueDetail) int {
	recorded := 0
	if m.queue.IsHostView() && q.IsHostView() {
		recorded = m.meetingLog.Record(m.queue.MeetingSet, q.MeetingSet)
	}
	m.queue = q
	m.meetings = nil
	if q != nil {
		m.meetings = model.SortMeetings(q.MeetingSet)
	}
	if m.selected >= len(m.meetings) {
		m.selected = max(len(m.meetings)-1, 0)
	}
	return recorded
}

func (m *Model) applyUser(u *model.MyUser) int {
	recorded := 0
	if m.user != nil && u != nil {
		recorded = m.queueLog.Record(m.user.HostedQueues, u.HostedQueues)
	}
	m.user = u
	m.hosted = nil
	if u != nil {
		m.hosted = model.SortQueues(u.HostedQueues)
	}
	m.refreshStatus()
	return recorded
}

// dismissNewest drops the most recent meeting change, or the most recent
// queue change when no meeting changes are showing.
func (m *Model) dismissNewest() {
	if events := m.meetingLog.Events(); len(events) > 0 {
		m.meetingLog.Dismiss(events[len(events)-1].ID)
		return
	}
	if events := m.queueLog.Events(); len(events) > 0 {
		m.queueLog.Dismiss(events[len(events)-1].ID)
	}
}

func (m *Model) noteErr(feed string, prev, next error) {
	if next == nil || (prev != nil && prev.Error() == next.Error()) {
		return
	}
	m.activity.Error(feed, next)
}

func (m *Model) refreshStatus() {
	switch {
	case m.opts.Poll && m.pollErr != nil:
		m.statusBar.Link = status.LinkReconnecting
	case m.opts.Poll:
		m.statusBar.Link = status.LinkPolling
	case m.queueDone || live.IsTerminal(m.queueErr):
		m.statusBar.Link = status.LinkStopped
	case m.queueErr != nil:
		m.statusBar.Link = status.LinkReconnecting
	case m.queue != nil:
		m.statusBar.Link = status.LinkLive
	default:
		m.statusBar.Link = status.LinkConnecting
	}

	m.statusBar.QueueName, m.statusBar.QueueStatus = "", ""
	if m.queue != nil {
		m.statusBar.QueueName = m.queue.Name
		m.statusBar.QueueStatus = string(m.queue.Status)
	}
	inLine, inProgress := 0, 0
	for _, mt := range m.meetings {
		if mt.Started() {
			inProgress++
		} else {
			inLine++
		}
	}
	m.statusBar.SetCounts(inLine, inProgress)

	m.statusBar.User = ""
	if m.user != nil {
		m.statusBar.User = m.user.DisplayName()
	}
}

func (m Model) selectedMeeting() (model.Meeting, bool) {
	if m.selected < 0 || m.selected >= len(m.meetings) {
		return model.Meeting{}, false
	}
	return m.meetings[m.selected], true
}

// banners lists the errors that are currently showing.
func (m Model) banners() []alerts.Banner {
	var out []alerts.Banner
	for _, err := range []error{m.queueErr, m.userErr, m.pollErr, m.actionErr} {
		if err == nil {
			continue
		}
		out = append(out, alerts.Banner{Text: err.Error(), Terminal: live.IsTerminal(err)})
	}
	return out
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.showActivity {
		return m.activity.View(m.width, m.height)
	}

	changes := append(m.queueLog.Events(), m.meetingLog.Events()...)
	alertArea := alerts.Model{Banners: m.banners(), Changes: changes, Width: m.width}

	sections := []string{m.statusBar.View()}
	if !alertArea.Empty() {
		sections = append(sections, alertArea.View())
	}
	sections = append(sections, m.renderQueue())
	if len(m.hosted) > 0 {
		sections = append(sections, m.renderHosted())
	}
	if m.prompt.kind != promptNone {
		sections = append(sections, m.prompt.View(),
			theme.StyleDimmed.Render("  enter:submit  esc:cancel"))
	} else {
		sections = append(sections,
			theme.StyleDimmed.Render("  j/k:select  s:start  a:take  t:type  e:agenda  del:remove  o:open/close  h/H:hosts  x:dismiss  r:refresh  d:activity  q:quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderQueue() string {
	if m.queue == nil {
		return theme.StyleDimmed.Render("  No queue loaded")
	}
	q := m.queue

	lines := []string{theme.StyleHeader.Render(fmt.Sprintf("=== %s (#%d) ", q.Name, q.ID))}
	if desc := m.desc.render(q.Description, max(m.width-4, 20)); desc != "" {
		lines = append(lines, desc)
	}
	if q.InpersonLocation != "" {
		lines = append(lines, theme.StyleDimmed.Render("  Location: "+q.InpersonLocation))
	}

	if !q.IsHostView() {
		lines = append(lines, fmt.Sprintf("  %d in line", q.LineLength))
		if q.MyMeeting != nil {
			lines = append(lines, m.renderMeetingLine("> ", *q.MyMeeting))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, theme.StyleDimmed.Render("--- MEETINGS ------------------------------------------------------"))
	for i, mt := range m.meetings {
		prefix := "  "
		if i == m.selected {
			prefix = "> "
		}
		lines = append(lines, m.renderMeetingLine(prefix, mt))
	}
	if len(m.meetings) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  Nobody is in line"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// nextBackend returns the backend after current in allowed, wrapping
// around. It reports false when there is nothing to switch to.
func nextBackend(allowed []string, current string) (string, bool) {
	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == current) {
		return "", false
	}
	for i, b := range allowed {
		if b == current {
			return allowed[(i+1)%len(allowed)], true
		}
	}
	return allowed[0], true
}

func (m Model) renderMeetingLine(prefix string, mt model.Meeting) string {
	place := " -"
	if mt.LinePlace != nil {
		place = fmt.Sprintf("%2d", *mt.LinePlace+1)
	}
	name := fmt.Sprintf("meeting %d", mt.ID)
	if a, ok := mt.PrimaryAttendee(); ok {
		name = a.FullName()
	}
	if len(name) > 24 {
		name = name[:23] + "..."
	}

	st := mt.Status.String()
	color := theme.MeetingColor(st)
	line := prefix + place + " " + theme.MeetingGlyph(st) + " " +
		lipgloss.NewStyle().Foreground(color).Width(26).Render(name) + " " +
		theme.BackendBadge(mt.BackendType) + " " +
		lipgloss.NewStyle().Foreground(color).Render(st)
	if mt.Assignee != nil {
		line += theme.StyleDimmed.Render(" · " + mt.Assignee.DisplayName())
	}
	if prefix == "> " {
		return theme.StyleSelected.Render(line)
	}
	return line
}

func (m Model) renderHosted() string {
	lines := []string{theme.StyleDimmed.Render("--- YOUR QUEUES ---------------------------------------------------")}
	for _, q := range m.hosted {
		st := lipgloss.NewStyle().Foreground(theme.QueueStatusColor(string(q.Status))).Render(string(q.Status))
		lines = append(lines, fmt.Sprintf("  #%-4d %s  %s", q.ID, q.Name, st))
	}
	return strings.Join(lines, "\n")
}
