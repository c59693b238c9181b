package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"github.com/dwizi/devops-assistant/internal/apiclient"
	"github.com/dwizi/devops-assistant/internal/chat"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/heartbeat"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/store"
	"github.com/dwizi/devops-assistant/internal/stream"
)

const (
	requestTimeout  = 10 * time.Second
	escalationLimit = 50
	chatClientKey   = "tui"
)

type viewID string

const (
	viewOverview    viewID = "overview"
	viewPipelines   viewID = "pipelines"
	viewEscalations viewID = "escalations"
	viewChat        viewID = "chat"
)

func allViews() []viewID {
	return []viewID{viewOverview, viewPipelines, viewEscalations, viewChat}
}

func viewLabel(view viewID) string {
	switch view {
	case viewPipelines:
		return "Pipelines"
	case viewEscalations:
		return "Escalations"
	case viewChat:
		return "Chat"
	default:
		return "Overview"
	}
}

func sidebarIndexForView(view viewID) int {
	for index, candidate := range allViews() {
		if candidate == view {
			return index
		}
	}
	return 0
}

type focusZone int

const (
	focusSidebar focusZone = iota
	focusWorkbench
	focusInspector
	focusHelp
	focusZoneCount
)

func focusLabel(focus focusZone) string {
	switch focus {
	case focusWorkbench:
		return "workbench"
	case focusInspector:
		return "inspector"
	case focusHelp:
		return "help"
	default:
		return "sidebar"
	}
}

type chatLine struct {
	Role   string
	Text   string
	Route  string
	Type   string
	Reason string
	At     time.Time
}

type tickMsg time.Time

type pipelinesLoadedMsg struct {
	items []pipeline.Pipeline
	err   error
}

type healthLoadedMsg struct {
	health       apiclient.Health
	snapshot     heartbeat.Snapshot
	heartbeatErr error
	err          error
}

type escalationsLoadedMsg struct {
	items []store.Escalation
	err   error
}

type logsLoadedMsg struct {
	logs apiclient.PipelineLogs
	err  error
}

type actionDoneMsg struct {
	action pipeline.Action
	result pipeline.ActionResult
	err    error
}

type chatReplyMsg struct {
	output chat.MessageOutput
	err    error
}

type model struct {
	ctx    context.Context
	cfg    config.Config
	client *apiclient.Client
	logger *slog.Logger

	keys              keyMap
	help              help.Model
	spinner           spinner.Model
	inspectorViewport viewport.Model
	chatViewport      viewport.Model
	chatInput         textinput.Model

	width        int
	height       int
	focus        focusZone
	activeView   viewID
	sidebarIndex int
	clock        time.Time
	refreshEvery time.Duration

	pipelines      []pipeline.Pipeline
	pipelineCursor int
	lastRefresh    time.Time
	health         apiclient.Health
	snapshot       heartbeat.Snapshot
	heartbeatNote  string

	escalations      []store.Escalation
	escalationCursor int

	logs       apiclient.PipelineLogs
	lastAction *pipeline.ActionResult

	chatLines   []chatLine
	chatPending bool

	streamEvents    <-chan stream.Event
	streamConnected bool

	pendingLoads     int
	pendingMutations int
	statusText       string
	errorText        string
	quitting         bool
}

func Run(cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, cfg, apiclient.New(cfg), logger.With("component", "tui"))
	program := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func newModel(ctx context.Context, cfg config.Config, client *apiclient.Client, logger *slog.Logger) model {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := newTheme()

	spin := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(t.spinner))

	input := textinput.New()
	input.Placeholder = "ask about pipeline health"
	input.Prompt = "› "
	input.CharLimit = 2000
	inputStyles := textinput.DefaultStyles(true)
	for _, state := range []*textinput.StyleState{&inputStyles.Focused, &inputStyles.Blurred} {
		state.Prompt = t.inputPrompt
		state.Text = t.inputText
		state.Placeholder = t.inputPlaceholder
	}
	input.SetStyles(inputStyles)

	refreshEvery := time.Duration(cfg.TUIRefreshSec) * time.Second
	if refreshEvery < time.Second {
		refreshEvery = 30 * time.Second
	}

	m := model{
		ctx:               ctx,
		cfg:               cfg,
		client:            client,
		logger:            logger,
		keys:              newKeyMap(),
		help:              help.New(),
		spinner:           spin,
		inspectorViewport: viewport.New(viewport.WithWidth(40), viewport.WithHeight(10)),
		chatViewport:      viewport.New(viewport.WithWidth(60), viewport.WithHeight(10)),
		chatInput:         input,
		focus:             focusSidebar,
		activeView:        viewOverview,
		clock:             time.Now(),
		refreshEvery:      refreshEvery,
		pendingLoads:      3,
		statusText:        "loading",
	}
	m.resizeViewports()
	m.refreshInspector()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadHealthCmd(),
		m.loadPipelinesCmd(),
		m.loadEscalationsCmd(),
		tickCmd(m.refreshEvery),
		subscribeCmd(m.ctx, m.client.BaseURL()),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeViewports()
		m.refreshInspector()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd

	case tickMsg:
		m.clock = time.Time(typed)
		return m, tea.Batch(tickCmd(m.refreshEvery), m.refreshCmd())

	case pipelinesLoadedMsg:
		m.finishLoad()
		if typed.err != nil {
			m.fail("load pipelines", typed.err)
			return m, nil
		}
		m.setPipelines(typed.items)
		m.errorText = ""
		m.statusText = "pipelines refreshed"
		return m, nil

	case healthLoadedMsg:
		m.finishLoad()
		if typed.err != nil {
			m.health = apiclient.Health{Status: "unreachable"}
			m.fail("load health", typed.err)
			return m, nil
		}
		m.health = typed.health
		m.snapshot = typed.snapshot
		m.heartbeatNote = ""
		if typed.heartbeatErr != nil {
			m.heartbeatNote = typed.heartbeatErr.Error()
		}
		m.refreshInspector()
		return m, nil

	case escalationsLoadedMsg:
		m.finishLoad()
		if typed.err != nil {
			m.fail("load escalations", typed.err)
			return m, nil
		}
		m.escalations = typed.items
		m.escalationCursor = clampInt(m.escalationCursor, 0, maxInt(0, len(m.escalations)-1))
		m.refreshInspector()
		return m, nil

	case logsLoadedMsg:
		m.finishLoad()
		if typed.err != nil {
			m.fail("load logs", typed.err)
			return m, nil
		}
		m.logs = typed.logs
		m.statusText = "logs loaded for " + typed.logs.PipelineID
		m.refreshInspector()
		return m, nil

	case actionDoneMsg:
		m.pendingMutations = maxInt(0, m.pendingMutations-1)
		if typed.err != nil {
			m.fail(string(typed.action), typed.err)
			return m, nil
		}
		result := typed.result
		m.lastAction = &result
		m.errorText = ""
		m.statusText = result.Message
		cmds := []tea.Cmd{}
		if !m.streamConnected {
			m.pendingLoads++
			cmds = append(cmds, m.loadPipelinesCmd())
		}
		if typed.action == pipeline.ActionEscalate {
			m.pendingLoads++
			cmds = append(cmds, m.loadEscalationsCmd())
		}
		m.refreshInspector()
		return m, tea.Batch(cmds...)

	case chatReplyMsg:
		m.chatPending = false
		if typed.err != nil && !errors.Is(typed.err, apiclient.ErrRateLimited) && !errors.Is(typed.err, apiclient.ErrRejected) {
			m.fail("chat", typed.err)
			m.appendChat(chatLine{Role: "error", Text: typed.err.Error(), At: time.Now()})
			return m, nil
		}
		m.errorText = ""
		m.statusText = "reply via " + fallbackText(typed.output.Route, "unknown") + " route"
		m.appendChat(chatLine{
			Role:   "assistant",
			Text:   typed.output.Reply,
			Route:  typed.output.Route,
			Type:   typed.output.Type,
			Reason: typed.output.Reason,
			At:     time.Now(),
		})
		return m, nil

	case streamConnectedMsg:
		m.streamEvents = typed.events
		m.streamConnected = true
		m.statusText = "live stream connected"
		return m, waitForEvent(m.streamEvents)

	case streamEventMsg:
		m.applyStreamEvent(typed.event)
		return m, waitForEvent(m.streamEvents)

	case streamClosedMsg:
		m.streamEvents = nil
		m.streamConnected = false
		m.statusText = "live stream unavailable, polling every " + m.refreshEvery.String()
		if typed.err != nil {
			m.logger.Debug("pipeline stream closed", "error", typed.err)
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m model) View() tea.View {
	view := tea.NewView(m.renderView())
	view.AltScreen = true
	return view
}

func (m model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	typing := m.chatTyping()
	if key.Matches(msg, m.keys.Quit) && (!typing || msg.String() == "ctrl+c") {
		m.quitting = true
		return m, tea.Quit
	}

	switch {
	case key.Matches(msg, m.keys.FocusNext):
		m.focus = (m.focus + 1) % focusZoneCount
		return m, m.applyFocusCmd()
	case key.Matches(msg, m.keys.FocusPrev):
		m.focus = (m.focus + focusZoneCount - 1) % focusZoneCount
		return m, m.applyFocusCmd()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()
	}

	if typing {
		return m.handleChatKey(msg)
	}

	if key.Matches(msg, m.keys.ToggleHelp) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if view, ok := m.keys.viewFor(msg); ok {
		return m, m.setView(view)
	}

	switch m.focus {
	case focusSidebar:
		return m.handleSidebarKey(msg)
	case focusInspector:
		var cmd tea.Cmd
		m.inspectorViewport, cmd = m.inspectorViewport.Update(msg)
		return m, cmd
	case focusWorkbench:
		switch m.activeView {
		case viewPipelines:
			return m.handlePipelinesKey(msg)
		case viewEscalations:
			return m.handleEscalationsKey(msg)
		}
	}
	if m.activeView == viewPipelines {
		return m.handlePipelineActionKey(msg)
	}
	return m, nil
}

func (m model) handleSidebarKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	views := allViews()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebarIndex = (m.sidebarIndex + len(views) - 1) % len(views)
	case key.Matches(msg, m.keys.Down):
		m.sidebarIndex = (m.sidebarIndex + 1) % len(views)
	case key.Matches(msg, m.keys.Activate):
		cmd := m.setView(views[m.sidebarIndex])
		m.focus = focusWorkbench
		return m, tea.Batch(cmd, m.applyFocusCmd())
	default:
		if m.activeView == viewPipelines {
			return m.handlePipelineActionKey(msg)
		}
	}
	return m, nil
}

func (m model) handlePipelinesKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.movePipelineCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.movePipelineCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Activate):
		return m.requestLogs()
	}
	return m.handlePipelineActionKey(msg)
}

func (m model) handlePipelineActionKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	var action pipeline.Action
	switch {
	case key.Matches(msg, m.keys.Retry):
		action = pipeline.ActionRetry
	case key.Matches(msg, m.keys.Rollback):
		action = pipeline.ActionRollback
	case key.Matches(msg, m.keys.Escalate):
		action = pipeline.ActionEscalate
	case key.Matches(msg, m.keys.Logs):
		return m.requestLogs()
	default:
		return m, nil
	}

	selected, ok := m.selectedPipeline()
	if !ok {
		m.errorText = "select a pipeline first"
		return m, nil
	}
	if action == pipeline.ActionRetry && selected.Status == pipeline.StatusRunning {
		m.errorText = "pipeline is already running"
		return m, nil
	}
	m.pendingMutations++
	m.errorText = ""
	m.statusText = string(action) + " requested for " + selected.ID
	return m, m.actionCmd(selected.ID, action)
}

func (m model) requestLogs() (tea.Model, tea.Cmd) {
	selected, ok := m.selectedPipeline()
	if !ok {
		m.errorText = "select a pipeline first"
		return m, nil
	}
	m.pendingLoads++
	m.statusText = "loading logs for " + selected.ID
	return m, m.loadLogsCmd(selected.ID)
}

func (m model) handleEscalationsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.escalationCursor = maxInt(0, m.escalationCursor-1)
	case key.Matches(msg, m.keys.Down):
		m.escalationCursor = clampInt(m.escalationCursor+1, 0, maxInt(0, len(m.escalations)-1))
	}
	m.refreshInspector()
	return m, nil
}

func (m model) handleChatKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Scroll) {
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd
	}
	if key.Matches(msg, m.keys.Send) {
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" {
			return m, nil
		}
		if m.chatPending {
			m.errorText = "waiting for the previous reply"
			return m, nil
		}
		m.chatInput.Reset()
		m.chatPending = true
		m.statusText = "asking assistant"
		m.appendChat(chatLine{Role: "user", Text: text, At: time.Now()})
		return m, m.chatCmd(text)
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) chatTyping() bool {
	return m.activeView == viewChat && m.focus == focusWorkbench
}

func (m model) busy() bool {
	return m.pendingLoads > 0 || m.pendingMutations > 0 || m.chatPending
}

func (m *model) setView(view viewID) tea.Cmd {
	m.activeView = view
	m.sidebarIndex = sidebarIndexForView(view)
	m.refreshInspector()
	return m.applyFocusCmd()
}

func (m *model) applyFocusCmd() tea.Cmd {
	if m.chatTyping() {
		return m.chatInput.Focus()
	}
	m.chatInput.Blur()
	return nil
}

func (m *model) refreshCmd() tea.Cmd {
	cmds := []tea.Cmd{m.loadHealthCmd(), m.loadEscalationsCmd()}
	if !m.streamConnected {
		cmds = append(cmds, m.loadPipelinesCmd())
	}
	m.pendingLoads += len(cmds)
	m.statusText = "refreshing"
	return tea.Batch(cmds...)
}

func (m *model) finishLoad() {
	m.pendingLoads = maxInt(0, m.pendingLoads-1)
}

func (m *model) fail(operation string, err error) {
	m.errorText = operation + ": " + err.Error()
	m.logger.Debug("tui request failed", "operation", operation, "error", err)
}

func (m *model) setPipelines(items []pipeline.Pipeline) {
	m.pipelines = items
	m.pipelineCursor = clampInt(m.pipelineCursor, 0, maxInt(0, len(items)-1))
	m.lastRefresh = time.Now()
	m.refreshInspector()
}

func (m *model) movePipelineCursor(delta int) {
	if len(m.pipelines) == 0 {
		return
	}
	m.pipelineCursor = clampInt(m.pipelineCursor+delta, 0, len(m.pipelines)-1)
	m.refreshInspector()
}

func (m model) selectedPipeline() (pipeline.Pipeline, bool) {
	if m.pipelineCursor < 0 || m.pipelineCursor >= len(m.pipelines) {
		return pipeline.Pipeline{}, false
	}
	return m.pipelines[m.pipelineCursor], true
}

func (m model) selectedEscalation() (store.Escalation, bool) {
	if m.escalationCursor < 0 || m.escalationCursor >= len(m.escalations) {
		return store.Escalation{}, false
	}
	return m.escalations[m.escalationCursor], true
}

func (m *model) applyStreamEvent(event stream.Event) {
	switch event.Type {
	case stream.EventPipelines:
		m.setPipelines(event.Pipelines)
		m.statusText = "pipelines updated " + event.Timestamp
	case stream.EventHealth:
		m.applyHealthTransition(event)
	}
}

func (m *model) applyHealthTransition(event stream.Event) {
	component := heartbeat.ComponentStatus{
		Name:          event.Component,
		State:         event.State,
		BaseState:     event.State,
		UpdatedAtUnix: time.Now().Unix(),
	}
	if event.State == heartbeat.StateDegraded {
		component.Error = event.Message
	} else {
		component.Message = event.Message
	}
	replaced := false
	for index, existing := range m.snapshot.Components {
		if existing.Name == event.Component {
			m.snapshot.Components[index] = component
			replaced = true
			break
		}
	}
	if !replaced {
		m.snapshot.Components = append(m.snapshot.Components, component)
	}
	m.statusText = event.Component + " is " + event.State
	m.refreshInspector()
}

func (m *model) appendChat(line chatLine) {
	m.chatLines = append(m.chatLines, line)
	m.chatViewport.SetContent(renderChatTranscript(newTheme(), m.chatLines, m.chatViewport.Width()))
	m.chatViewport.GotoBottom()
	if m.activeView == viewChat {
		m.refreshInspector()
	}
}

func (m *model) resizeViewports() {
	layout := computeLayout(m.width, m.height)
	inspector := layout.inspectorViewport()
	transcript := layout.chatViewport()
	m.inspectorViewport.SetWidth(inspector.Width)
	m.inspectorViewport.SetHeight(inspector.Height)
	m.chatViewport.SetWidth(transcript.Width)
	m.chatViewport.SetHeight(transcript.Height)
	m.chatInput.SetWidth(maxInt(10, transcript.Width-4))
	m.chatViewport.SetContent(renderChatTranscript(newTheme(), m.chatLines, transcript.Width))
}

func (m *model) refreshInspector() {
	var content string
	switch m.activeView {
	case viewPipelines:
		content = m.renderPipelinesInspectorText()
	case viewEscalations:
		content = m.renderEscalationsInspectorText()
	case viewChat:
		content = m.renderChatInspectorText()
	default:
		content = m.renderOverviewInspectorText()
	}
	m.inspectorViewport.SetContent(content)
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(at time.Time) tea.Msg {
		return tickMsg(at)
	})
}

func (m model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, requestTimeout)
}

func (m model) loadPipelinesCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		items, err := m.client.ListPipelines(ctx)
		return pipelinesLoadedMsg{items: items, err: err}
	}
}

func (m model) loadHealthCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		health, err := m.client.Health(ctx)
		if err != nil {
			return healthLoadedMsg{err: err}
		}
		snapshot, heartbeatErr := m.client.Heartbeat(ctx)
		return healthLoadedMsg{health: health, snapshot: snapshot, heartbeatErr: heartbeatErr}
	}
}

func (m model) loadEscalationsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		items, err := m.client.ListEscalations(ctx, "", escalationLimit)
		return escalationsLoadedMsg{items: items, err: err}
	}
}

func (m model) loadLogsCmd(pipelineID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		logs, err := m.client.PipelineLogs(ctx, pipelineID)
		return logsLoadedMsg{logs: logs, err: err}
	}
}

func (m model) actionCmd(pipelineID string, action pipeline.Action) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		result, err := m.client.Action(ctx, pipelineID, string(action))
		return actionDoneMsg{action: action, result: result, err: err}
	}
}

func (m model) chatCmd(message string) tea.Cmd {
	return func() tea.Msg {
		output, err := m.client.Chat(m.ctx, apiclient.ChatRequest{Message: message, ClientKey: chatClientKey})
		return chatReplyMsg{output: output, err: err}
	}
}
