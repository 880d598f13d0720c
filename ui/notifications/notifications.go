package notifications

import (
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
)

const (
	notificationsLimit = 50
	refreshInterval    = 30 * time.Second
)

type Model struct {
	session       *common.Session
	Notifications []domain.Notification
	Selected      int
	Offset        int
	Width         int
	Height        int
	isActive      bool
	UnreadCount   int
}

type notificationsLoadedMsg struct {
	notifications []domain.Notification
	unreadCount   int
}

type refreshTickMsg struct{}

func InitialModel(session *common.Session, width, height int) Model {
	return Model{
		session:       session,
		Notifications: []domain.Notification{},
		Width:         width,
		Height:        height,
	}
}

// Init loads the unread count so the header badge is right before the view is opened
func (m Model) Init() tea.Cmd {
	return loadNotifications(m.session)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.ActivateViewMsg:
		m.isActive = true
		return m, tea.Batch(loadNotifications(m.session), tickRefresh())

	case common.DeactivateViewMsg:
		m.isActive = false
		return m, nil

	case notificationsLoadedMsg:
		m.Notifications = msg.notifications
		m.UnreadCount = msg.unreadCount
		if m.Selected >= len(m.Notifications) {
			m.Selected = max(0, len(m.Notifications)-1)
		}
		if m.Offset > m.Selected {
			m.Offset = m.Selected
		}
		return m, nil

	case refreshTickMsg:
		if m.isActive {
			return m, tea.Batch(loadNotifications(m.session), tickRefresh())
		}
		// ticker chain stops while hidden
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
				if m.Selected < m.Offset {
					m.Offset = m.Selected
				}
			}
		case "down", "j":
			if m.Selected < len(m.Notifications)-1 {
				m.Selected++
				if m.Selected >= m.Offset+common.DefaultItemsPerPage {
					m.Offset = m.Selected - common.DefaultItemsPerPage + 1
				}
			}
		case "a":
			if m.UnreadCount > 0 {
				return m, markAllNotificationsRead(m.session)
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("notifications (%d unread)", m.UnreadCount)))
	s.WriteString("\n\n")

	if len(m.Notifications) == 0 {
		s.WriteString(common.ListEmptyStyle.Render("No notifications yet."))
		return s.String()
	}

	start := m.Offset
	end := min(start+common.DefaultItemsPerPage, len(m.Notifications))

	for i := start; i < end; i++ {
		notif := m.Notifications[i]

		line := notif.Summary()
		style := common.ListItemStyle
		if i == m.Selected {
			style = common.ListItemSelectedStyle
		}
		if !notif.Read {
			style = style.Bold(true).Foreground(lipgloss.Color(common.COLOR_USERNAME))
		}

		prefix := common.ListUnselectedPrefix
		if i == m.Selected {
			prefix = common.ListSelectedPrefix
		}
		s.WriteString(prefix + style.Render(line) + "  " + common.ListBadgeStyle.Render(formatTimeAgo(notif.CreatedAt)))
		s.WriteString("\n")

		if notif.PostPreview != "" && notif.NotificationType != domain.NotificationFollow {
			s.WriteString("  " + common.ListBadgeStyle.Render("\""+util.Truncate(notif.PostPreview, 60)+"\""))
			s.WriteString("\n")
		}
	}

	if len(m.Notifications) > common.DefaultItemsPerPage {
		s.WriteString("\n" + common.ListBadgeStyle.Render(fmt.Sprintf("Showing %d-%d of %d", start+1, end, len(m.Notifications))))
	}
	if m.UnreadCount > 0 {
		s.WriteString("\n" + common.HelpStyle.Render("mark all read: a"))
	}

	return s.String()
}

func loadNotifications(session *common.Session) tea.Cmd {
	return func() tea.Msg {
		accountId := session.Account.Id
		err, notifications := session.Store.ReadNotificationsByAccountId(accountId, notificationsLimit)
		if err != nil || notifications == nil {
			if err != nil {
				log.Printf("Failed to load notifications: %v", err)
			}
			return notificationsLoadedMsg{notifications: []domain.Notification{}}
		}

		unreadCount, err := session.Store.ReadUnreadNotificationCount(accountId)
		if err != nil {
			log.Printf("Failed to get unread count: %v", err)
			unreadCount = 0
		}

		return notificationsLoadedMsg{notifications: *notifications, unreadCount: unreadCount}
	}
}

func markAllNotificationsRead(session *common.Session) tea.Cmd {
	return func() tea.Msg {
		if err := session.Store.MarkAllNotificationsRead(session.Account.Id); err != nil {
			log.Printf("Failed to mark all notifications as read: %v", err)
		}
		return loadNotifications(session)()
	}
}

func tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// formatTimeAgo formats a time as a relative string (e.g., "2h ago")
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	case duration < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	case duration < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(duration.Hours()/24/7))
	case duration < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(duration.Hours()/24/30))
	default:
		return fmt.Sprintf("%dy ago", int(duration.Hours()/24/365))
	}
}
