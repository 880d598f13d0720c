package hometimeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
)

var (
	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DIM))

	authorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_USERNAME)).
			Bold(true)

	// Remote author uses secondary color to differentiate from local
	remoteAuthorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(common.COLOR_SECONDARY)).
				Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DIM)).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(common.COLOR_ACCENT)).
			Foreground(lipgloss.Color(common.COLOR_WHITE))
)

var plain = activitypub.NewSanitizer(0)

var lineBreaks = strings.NewReplacer("</p><p>", "\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n")

// plainText renders stored HTML content for the terminal
func plainText(content string) string {
	return plain.PlainText(lineBreaks.Replace(content))
}

// Entry is a ranked post with what the console needs to show and act on it
type Entry struct {
	Post    domain.Post
	Author  string
	IsLocal bool
	IsMine  bool
	Liked   bool
	Boosted bool
}

type Model struct {
	session       *common.Session
	Entries       []Entry
	Offset        int
	Selected      int
	Width         int
	Height        int
	isActive      bool
	confirmDelete bool
	Status        string
}

func InitialModel(session *common.Session, width, height int) Model {
	return Model{
		session: session,
		Entries: []Entry{},
		Width:   width,
		Height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	// Loading starts when the view is activated
	return nil
}

type refreshTickMsg struct{}

type postsLoadedMsg struct {
	entries []Entry
}

func tickRefresh() tea.Cmd {
	return tea.Tick(common.TimelineRefreshSeconds*time.Second, func(t time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case common.DeactivateViewMsg:
		m.isActive = false
		return m, nil

	case common.ActivateViewMsg:
		m.isActive = true
		m.Selected = 0
		m.Offset = 0
		return m, loadPosts(m.session)

	case common.SessionState:
		if msg == common.UpdateNoteList {
			return m, loadPosts(m.session)
		}
		return m, nil

	case refreshTickMsg:
		// ticker chain stops while hidden
		if m.isActive {
			return m, loadPosts(m.session)
		}
		return m, nil

	case postsLoadedMsg:
		m.Entries = msg.entries
		if m.Selected >= len(m.Entries) {
			m.Selected = max(0, len(m.Entries)-1)
		}
		m.Offset = m.Selected
		if m.isActive {
			return m, tickRefresh()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	key := msg.String()
	if m.confirmDelete {
		m.confirmDelete = false
		if key == "y" && m.Selected < len(m.Entries) {
			uri := m.Entries[m.Selected].Post.URI
			m.Status = ""
			return m, actionCmd(m.session, "delete", uri)
		}
		m.Status = "delete cancelled"
		return m, nil
	}

	switch key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
			m.Offset = m.Selected
		}
		return m, nil
	case "down", "j":
		if m.Selected < len(m.Entries)-1 {
			m.Selected++
			m.Offset = m.Selected
		}
		return m, nil
	}

	if len(m.Entries) == 0 || m.Selected >= len(m.Entries) {
		return m, nil
	}
	entry := m.Entries[m.Selected]

	switch key {
	case "l":
		if entry.Liked {
			return m, actionCmd(m.session, "unlike", entry.Post.URI)
		}
		return m, actionCmd(m.session, "like", entry.Post.URI)
	case "b":
		if entry.Boosted {
			return m, actionCmd(m.session, "unboost", entry.Post.URI)
		}
		return m, actionCmd(m.session, "boost", entry.Post.URI)
	case "r":
		preview := plainText(entry.Post.Content)
		if idx := strings.Index(preview, "\n"); idx > 0 {
			preview = preview[:idx]
		}
		return m, func() tea.Msg {
			return common.ReplyToNoteMsg{NoteURI: entry.Post.URI, Author: entry.Author, Preview: preview}
		}
	case "e":
		if entry.IsMine {
			text := plainText(entry.Post.Content)
			return m, func() tea.Msg {
				return common.EditNoteMsg{NoteURI: entry.Post.URI, Text: text}
			}
		}
	case "d":
		if entry.IsMine {
			m.confirmDelete = true
			m.Status = "delete this post? (y/n)"
		}
	}
	return m, nil
}

// actionCmd hands a reaction or deletion to the engine
func actionCmd(session *common.Session, action, uri string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		username := session.Account.Username
		var outcome activitypub.Outcome
		switch action {
		case "like":
			outcome = session.Actions.Like(ctx, username, uri)
		case "unlike":
			outcome = session.Actions.Unlike(ctx, username, uri)
		case "boost":
			outcome = session.Actions.Boost(ctx, username, uri)
		case "unboost":
			outcome = session.Actions.Unboost(ctx, username, uri)
		case "delete":
			outcome = session.Actions.DeletePost(ctx, username, uri)
		}
		log.Printf("Timeline: %s %s: %s", action, uri, outcome)
		return common.OutcomeMsg{Action: action, Outcome: outcome}
	}
}

// loadPosts loads the ranked front page with the user's own reactions
func loadPosts(session *common.Session) tea.Cmd {
	return func() tea.Msg {
		store := session.Store
		err, posts := store.ReadHotPosts(common.HomeTimelinePostLimit)
		if err != nil || posts == nil {
			if err != nil {
				log.Printf("Failed to load timeline: %v", err)
			}
			return postsLoadedMsg{entries: []Entry{}}
		}

		authors := map[string]*domain.Actor{}
		entries := make([]Entry, 0, len(*posts))
		for _, post := range *posts {
			key := post.ActorId.String()
			author, ok := authors[key]
			if !ok {
				if err, a := store.ReadActorById(post.ActorId); err == nil {
					author = a
				}
				authors[key] = author
			}

			entry := Entry{Post: post, Author: "@unknown"}
			if author != nil {
				entry.Author = author.Handle()
				entry.IsLocal = author.IsLocal()
				entry.IsMine = author.Id == session.ActorId
			}
			entry.Liked, _ = store.HasLike(session.ActorId, post.Id)
			entry.Boosted, _ = store.HasBoost(session.ActorId, post.Id)
			entries = append(entries, entry)
		}
		return postsLoadedMsg{entries: entries}
	}
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("front page (%d posts)", len(m.Entries))))
	s.WriteString("\n\n")

	if len(m.Entries) == 0 {
		s.WriteString(emptyStyle.Render("No posts yet.\nFollow some accounts to see their posts here!"))
		return s.String()
	}

	leftPanelWidth := common.CalculateLeftPanelWidth(m.Width)
	contentWidth := max(common.CalculateRightPanelWidth(m.Width, leftPanelWidth)-4, 20)

	end := min(m.Offset+common.DefaultItemsPerPage, len(m.Entries))
	for i := m.Offset; i < end; i++ {
		entry := m.Entries[i]
		post := entry.Post

		meta := formatTime(post.CreatedAt)
		if post.ReplyCount == 1 {
			meta += " · 1 reply"
		} else if post.ReplyCount > 1 {
			meta += fmt.Sprintf(" · %d replies", post.ReplyCount)
		}
		likeMark, boostMark := "☆", "↻"
		if entry.Liked {
			likeMark = "★"
		}
		if entry.Boosted {
			boostMark = "🔁"
		}
		meta += fmt.Sprintf(" · %s %d · %s %d", likeMark, post.LikeCount, boostMark, post.BoostCount)
		if post.EditedAt != nil {
			meta += " · edited"
		}

		content := util.Truncate(plainText(post.Content), common.MaxContentTruncateWidth)
		if post.Preview != nil && post.Preview.Title != "" {
			content += "\n🔗 " + util.Truncate(post.Preview.Title, common.MaxContentTruncateWidth)
		}

		line := lipgloss.NewStyle().Width(contentWidth)
		if i == m.Selected {
			sel := selectedStyle.Width(contentWidth)
			s.WriteString(sel.Render(meta) + "\n")
			s.WriteString(sel.Bold(true).Render(entry.Author) + "\n")
			s.WriteString(sel.Render(content))
		} else {
			author := remoteAuthorStyle.Render(entry.Author)
			if entry.IsLocal {
				author = authorStyle.Render(entry.Author)
			}
			s.WriteString(line.Render(timeStyle.Render(meta)) + "\n")
			s.WriteString(line.Render(author) + "\n")
			s.WriteString(line.Render(content))
		}
		s.WriteString("\n\n")
	}

	if m.Status != "" {
		s.WriteString(common.ListStatusStyle.Render(m.Status))
	}
	return s.String()
}

func formatTime(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	}
}
