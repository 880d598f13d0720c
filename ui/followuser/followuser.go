package followuser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui/common"
)

type Model struct {
	TextInput textinput.Model
	Following []domain.Actor
	Selected  int
	Status    string
	Error     string
	session   *common.Session
}

func InitialModel(session *common.Session) Model {
	ti := textinput.New()
	ti.Placeholder = "user@domain or https://domain/users/user"
	ti.Prompt = common.ListSelectedPrefix
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	return Model{
		TextInput: ti,
		session:   session,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadFollowing(m.session))
}

// clearStatusMsg is sent after a delay to clear status/error messages
type clearStatusMsg struct{}

type followingLoadedMsg struct {
	actors []domain.Actor
}

// followResultMsg is sent when a follow or unfollow completes
type followResultMsg struct {
	action  string
	target  string
	outcome activitypub.Outcome
	err     error
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case followingLoadedMsg:
		m.Following = msg.actors
		if m.Selected >= len(m.Following) {
			m.Selected = max(0, len(m.Following)-1)
		}
		return m, nil

	case followResultMsg:
		switch {
		case msg.err != nil:
			m.Error = fmt.Sprintf("Failed: %v", msg.err)
			m.Status = ""
		case msg.outcome == activitypub.Duplicate:
			m.Status = fmt.Sprintf("ℹ Already done: %s %s", msg.action, msg.target)
		case common.Applied(msg.outcome):
			m.Status = fmt.Sprintf("✓ %s %s", msg.action, msg.target)
			m.TextInput.SetValue("")
		default:
			m.Error = fmt.Sprintf("%s %s: %s", msg.action, msg.target, msg.outcome)
		}
		return m, tea.Batch(loadFollowing(m.session), clearStatusAfter(2*time.Second))

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				m.Error = "Please enter a user@domain or an actor URL"
				return m, clearStatusAfter(2 * time.Second)
			}
			if !strings.HasPrefix(input, "https://") {
				if _, _, err := activitypub.ParseHandle(input); err != nil {
					m.Error = "Invalid format. Use: user@domain.com or @user@domain.com"
					return m, clearStatusAfter(2 * time.Second)
				}
			}
			m.Status = fmt.Sprintf("Following %s...", input)
			m.Error = ""
			return m, followCmd(m.session, input)
		case "esc":
			m.TextInput.SetValue("")
			m.Status = ""
			m.Error = ""
			return m, nil
		case "up":
			if m.Selected > 0 {
				m.Selected--
			}
			return m, nil
		case "down":
			if m.Selected < len(m.Following)-1 {
				m.Selected++
			}
			return m, nil
		case "ctrl+u":
			if m.Selected < len(m.Following) {
				target := m.Following[m.Selected]
				return m, unfollowCmd(m.session, target.URI, target.Handle())
			}
			return m, nil
		}
	}

	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("follow"))
	s.WriteString("\n\n")
	s.WriteString("Enter ActivityPub address:\n")
	s.WriteString("(e.g., user@mastodon.social or a community like go@lemmy.ml)\n\n")
	s.WriteString(m.TextInput.View())
	s.WriteString("\n\n")

	if m.Status != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Status))
		s.WriteString("\n")
	}
	if m.Error != "" {
		s.WriteString(common.ListErrorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("following (%d)", len(m.Following))))
	s.WriteString("\n")
	if len(m.Following) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("Not following anyone yet."))
		return s.String()
	}
	for i, actor := range m.Following {
		line := actor.Handle()
		if actor.IsGroup() {
			line += " " + common.ListBadgeStyle.Render("[group]")
		}
		if i == m.Selected {
			s.WriteString(common.ListSelectedPrefix + common.ListItemSelectedStyle.Render(line))
		} else {
			s.WriteString(common.ListUnselectedPrefix + common.ListItemStyle.Render(line))
		}
		s.WriteString("\n")
	}
	s.WriteString(common.HelpStyle.Render("unfollow selected: ctrl+u"))
	return s.String()
}

// clearStatusAfter returns a command that sends clearStatusMsg after a duration
func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// resolveTarget returns the actor URI for a URL or a user@host handle
func resolveTarget(ctx context.Context, session *common.Session, input string) (string, error) {
	if strings.HasPrefix(input, "https://") {
		return input, nil
	}
	if session.Resolver == nil {
		return "", fmt.Errorf("federation is disabled")
	}
	user, host, err := activitypub.ParseHandle(input)
	if err != nil {
		return "", err
	}
	return session.Resolver.ResolveWebFinger(ctx, user, host)
}

func followCmd(session *common.Session, input string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		uri, err := resolveTarget(ctx, session, input)
		if err != nil {
			return followResultMsg{action: "follow", target: input, err: err}
		}
		outcome := session.Actions.Follow(ctx, session.Account.Username, uri)
		log.Printf("Follow %s from %s: %s", uri, session.Account.Username, outcome)
		return followResultMsg{action: "follow", target: input, outcome: outcome}
	}
}

func unfollowCmd(session *common.Session, uri, handle string) tea.Cmd {
	return func() tea.Msg {
		outcome := session.Actions.Unfollow(context.Background(), session.Account.Username, uri)
		log.Printf("Unfollow %s from %s: %s", uri, session.Account.Username, outcome)
		return followResultMsg{action: "unfollow", target: handle, outcome: outcome}
	}
}

// loadFollowing lists the actors the user follows, pending ones included
func loadFollowing(session *common.Session) tea.Cmd {
	return func() tea.Msg {
		err, actors := session.Store.ReadFollowingActors(session.ActorId)
		if err != nil || actors == nil {
			if err != nil {
				log.Printf("Failed to load following: %v", err)
			}
			return followingLoadedMsg{actors: []domain.Actor{}}
		}
		return followingLoadedMsg{actors: *actors}
	}
}
