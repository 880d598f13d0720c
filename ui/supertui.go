package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/ui/followuser"
	"github.com/deemkeen/stegofed/ui/header"
	"github.com/deemkeen/stegofed/ui/hometimeline"
	"github.com/deemkeen/stegofed/ui/notifications"
	"github.com/deemkeen/stegofed/ui/writenote"
)

const (
	minWidth  = 115
	minHeight = 28
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_ACCENT)).MarginLeft(1)
)

// views in tab order
var views = []common.SessionState{
	common.CreateNoteView,
	common.HomeTimelineView,
	common.FollowUserView,
	common.NotificationsView,
}

type clearStatusMsg struct{}

type MainModel struct {
	width              int
	height             int
	session            *common.Session
	state              common.SessionState
	status             string
	statusIsError      bool
	headerModel        header.Model
	createModel        writenote.Model
	homeTimelineModel  hometimeline.Model
	followModel        followuser.Model
	notificationsModel notifications.Model
}

func NewModel(session *common.Session, domain string, maxLetters int, width int, height int) MainModel {
	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	m := MainModel{state: common.CreateNoteView}
	m.session = session
	m.headerModel = header.Model{Width: width, Acc: &session.Account, Domain: domain}
	m.createModel = writenote.InitialNote(width, session, maxLetters)
	m.homeTimelineModel = hometimeline.InitialModel(session, width, height)
	m.followModel = followuser.InitialModel(session)
	m.notificationsModel = notifications.InitialModel(session, width, height)
	m.width = width
	m.height = height
	return m
}

func (m MainModel) Init() tea.Cmd {
	return tea.Batch(
		m.createModel.Init(),
		m.followModel.Init(),
		m.notificationsModel.Init(),
		// the front page is visible next to the editor from the start
		func() tea.Msg { return common.ActivateViewMsg{} },
	)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		m.homeTimelineModel.Width = msg.Width
		m.homeTimelineModel.Height = msg.Height
		m.notificationsModel.Width = msg.Width
		m.notificationsModel.Height = msg.Height
		return m, nil

	case clearStatusMsg:
		m.status = ""
		m.statusIsError = false
		return m, nil

	case common.ActivateViewMsg, common.DeactivateViewMsg:
		m.homeTimelineModel, cmd = m.homeTimelineModel.Update(msg)
		return m, cmd

	case common.ReplyToNoteMsg, common.EditNoteMsg:
		m.switchTo(common.CreateNoteView, &cmds)
		m.createModel, cmd = m.createModel.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case common.OutcomeMsg:
		m.status, m.statusIsError = describeOutcome(msg)
		cmds = append(cmds,
			func() tea.Msg { return common.UpdateNoteList },
			m.notificationsModel.Init(),
			tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearStatusMsg{} }),
		)
		return m, tea.Batch(cmds...)

	case common.SessionState:
		if msg == common.UpdateNoteList {
			m.homeTimelineModel, cmd = m.homeTimelineModel.Update(msg)
			return m, cmd
		}
		m.switchTo(msg, &cmds)
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.switchTo(m.nextView(1), &cmds)
			return m, tea.Batch(cmds...)
		case "shift+tab":
			m.switchTo(m.nextView(-1), &cmds)
			return m, tea.Batch(cmds...)
		case "n":
			// text input views keep the key
			if m.state == common.HomeTimelineView {
				m.switchTo(common.NotificationsView, &cmds)
				return m, tea.Batch(cmds...)
			}
		}

		switch m.state {
		case common.CreateNoteView:
			m.createModel, cmd = m.createModel.Update(msg)
		case common.HomeTimelineView:
			m.homeTimelineModel, cmd = m.homeTimelineModel.Update(msg)
		case common.FollowUserView:
			m.followModel, cmd = m.followModel.Update(msg)
		case common.NotificationsView:
			m.notificationsModel, cmd = m.notificationsModel.Update(msg)
		}
		return m, cmd
	}

	// data and tick messages go to every sub model; each ignores what it does not own
	m.createModel, cmd = m.createModel.Update(msg)
	cmds = append(cmds, cmd)
	m.homeTimelineModel, cmd = m.homeTimelineModel.Update(msg)
	cmds = append(cmds, cmd)
	m.followModel, cmd = m.followModel.Update(msg)
	cmds = append(cmds, cmd)
	m.notificationsModel, cmd = m.notificationsModel.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m MainModel) nextView(step int) common.SessionState {
	for i, v := range views {
		if v == m.state {
			return views[(i+step+len(views))%len(views)]
		}
	}
	return common.CreateNoteView
}

// switchTo changes the focused view and (de)activates the models whose visibility changes
func (m *MainModel) switchTo(state common.SessionState, cmds *[]tea.Cmd) {
	old := m.state
	if old == state {
		return
	}
	m.state = state

	if old == common.CreateNoteView {
		m.createModel.Blur()
	}
	if state == common.CreateNoteView {
		m.createModel.Focus()
		*cmds = append(*cmds, m.createModel.Init())
	}

	// the front page is visible while writing and while browsing it
	oldTimeline := old == common.CreateNoteView || old == common.HomeTimelineView
	newTimeline := state == common.CreateNoteView || state == common.HomeTimelineView
	var cmd tea.Cmd
	if oldTimeline && !newTimeline {
		m.homeTimelineModel, cmd = m.homeTimelineModel.Update(common.DeactivateViewMsg{})
		*cmds = append(*cmds, cmd)
	} else if !oldTimeline && newTimeline {
		m.homeTimelineModel, cmd = m.homeTimelineModel.Update(common.ActivateViewMsg{})
		*cmds = append(*cmds, cmd)
	}

	if old == common.NotificationsView {
		m.notificationsModel, cmd = m.notificationsModel.Update(common.DeactivateViewMsg{})
		*cmds = append(*cmds, cmd)
	}
	if state == common.NotificationsView {
		m.notificationsModel, cmd = m.notificationsModel.Update(common.ActivateViewMsg{})
		*cmds = append(*cmds, cmd)
	}
	if state == common.FollowUserView {
		*cmds = append(*cmds, m.followModel.Init())
	}
}

func describeOutcome(msg common.OutcomeMsg) (string, bool) {
	switch {
	case msg.Err != nil:
		return fmt.Sprintf("%s failed: %v", msg.Action, msg.Err), true
	case msg.Outcome == activitypub.Duplicate:
		return fmt.Sprintf("%s: already done", msg.Action), false
	case common.Applied(msg.Outcome):
		return fmt.Sprintf("%s: done", msg.Action), false
	default:
		return fmt.Sprintf("%s: %s", msg.Action, msg.Outcome), true
	}
}

func (m MainModel) View() string {
	if m.width < minWidth || m.height < minHeight {
		message := fmt.Sprintf(
			"Terminal too small!\n\nMinimum required: %dx%d\nCurrent size: %dx%d\n\nPlease resize your terminal.",
			minWidth, minHeight, m.width, m.height,
		)
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(lipgloss.Color(common.COLOR_CRITICAL)).
			Bold(true).
			Render(message)
	}

	availableHeight := common.CalculateAvailableHeight(m.height)
	leftPanelWidth := common.TextInputDefaultWidth + 10
	rightPanelWidth := common.CalculateRightPanelWidth(m.width, leftPanelWidth)

	panel := func(width int, content string) string {
		return lipgloss.NewStyle().
			MaxHeight(availableHeight).
			Height(availableHeight).
			Width(width).
			MaxWidth(width).
			Margin(1).
			Render(content)
	}

	left := panel(leftPanelWidth, m.createModel.View())
	var right string
	switch m.state {
	case common.FollowUserView:
		right = panel(rightPanelWidth, m.followModel.View())
	case common.NotificationsView:
		right = panel(rightPanelWidth, m.notificationsModel.View())
	default:
		right = panel(rightPanelWidth, m.homeTimelineModel.View())
	}

	m.headerModel.UnreadCount = m.notificationsModel.UnreadCount
	s := m.headerModel.View() + "\n"

	if m.state == common.CreateNoteView {
		s += lipgloss.JoinHorizontal(lipgloss.Top, focusedModelStyle.Render(left), modelStyle.Render(right))
	} else {
		s += lipgloss.JoinHorizontal(lipgloss.Top, modelStyle.Render(left), focusedModelStyle.Render(right))
	}

	var viewCommands string
	switch m.state {
	case common.CreateNoteView:
		viewCommands = "ctrl+s: post • ctrl+t: title • esc: cancel"
	case common.HomeTimelineView:
		viewCommands = "j/k • r: reply • l: like • b: boost • e: edit • d: delete • n: notifications"
	case common.FollowUserView:
		viewCommands = "enter: follow • ↑/↓ • ctrl+u: unfollow"
	case common.NotificationsView:
		viewCommands = "j/k • a: mark all read"
	}

	helpText := fmt.Sprintf("focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		m.currentFocusedModel(), viewCommands)

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(common.COLOR_HELP)).
		Width(m.width).
		Align(lipgloss.Center)

	remainingHeight := m.height - (availableHeight + common.PanelMarginVertical) - common.FooterHeight
	if m.status != "" {
		remainingHeight--
	}
	if remainingHeight > 0 {
		s += strings.Repeat("\n", remainingHeight)
	}

	if m.status != "" {
		statusStyle := common.ListStatusStyle
		if m.statusIsError {
			statusStyle = common.ListErrorStyle
		}
		s += statusStyle.Width(m.width).Align(lipgloss.Center).Render(m.status) + "\n"
	}

	s += helpStyle.Render(helpText)
	return s
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.CreateNoteView:
		return "write"
	case common.HomeTimelineView:
		return "front page"
	case common.FollowUserView:
		return "follow"
	case common.NotificationsView:
		return "notifications"
	default:
		return ""
	}
}
