package writenote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/util"
)

type Model struct {
	Textarea   textarea.Model
	Title      textinput.Model
	Error      string
	session    *common.Session
	maxLetters int
	width      int
	// Edit mode
	isEditing  bool
	editingURI string
	// Reply mode
	isReplying     bool
	replyToURI     string
	replyToAuthor  string
	replyToPreview string
}

func InitialNote(contentWidth int, session *common.Session, maxLetters int) Model {
	ti := textarea.New()
	ti.Placeholder = "enter your message"
	ti.CharLimit = maxLetters
	ti.ShowLineNumbers = false
	ti.SetWidth(common.TextInputDefaultWidth)
	ti.Cursor.SetMode(cursor.CursorBlink)
	ti.Focus()

	title := textinput.New()
	title.Placeholder = "optional title (link post)"
	title.CharLimit = 200
	title.Width = common.TextInputDefaultWidth

	return Model{
		Textarea:   ti,
		Title:      title,
		session:    session,
		maxLetters: maxLetters,
		width:      common.DefaultCreateNoteWidth(contentWidth),
	}
}

// publishCmd hands a new post to the engine. A titled post whose body is a
// single URL becomes a link post.
func publishCmd(session *common.Session, text, title, replyTo string) tea.Cmd {
	return func() tea.Msg {
		opts := activitypub.PostOptions{InReplyTo: replyTo, Title: title}
		if title != "" && util.IsURL(text) {
			opts.Link = strings.TrimSpace(text)
		}
		action := "post"
		if replyTo != "" {
			action = "reply"
		}
		uri, outcome, err := session.Actions.Publish(context.Background(), session.Account.Username, text, opts)
		if err != nil {
			log.Printf("Post could not be published: %v", err)
		} else {
			log.Printf("Published %s as %s: %s", uri, action, outcome)
		}
		return common.OutcomeMsg{Action: action, Outcome: outcome, Err: err}
	}
}

func editCmd(session *common.Session, uri, text string) tea.Cmd {
	return func() tea.Msg {
		outcome, err := session.Actions.EditPost(context.Background(), session.Account.Username, uri, text)
		if err != nil {
			log.Printf("Post %s could not be edited: %v", uri, err)
		}
		return common.OutcomeMsg{Action: "edit", Outcome: outcome, Err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Focus() {
	m.Textarea.Focus()
}

func (m *Model) Blur() {
	m.Textarea.Blur()
	m.Title.Blur()
}

func (m *Model) reset() {
	m.Textarea.SetValue("")
	m.Title.SetValue("")
	m.Error = ""
	m.isEditing = false
	m.editingURI = ""
	m.isReplying = false
	m.replyToURI = ""
	m.replyToAuthor = ""
	m.replyToPreview = ""
	m.Title.Blur()
	m.Textarea.Focus()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case common.EditNoteMsg:
		m.reset()
		m.isEditing = true
		m.editingURI = msg.NoteURI
		m.Textarea.SetValue(msg.Text)
		return m, nil

	case common.ReplyToNoteMsg:
		m.reset()
		m.isReplying = true
		m.replyToURI = msg.NoteURI
		m.replyToAuthor = msg.Author
		m.replyToPreview = msg.Preview
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeyBackspace {
			m.Error = ""
		}

		switch msg.Type {
		case tea.KeyCtrlT:
			// titles only make sense on new top-level posts
			if m.isEditing || m.isReplying {
				return m, nil
			}
			if m.Title.Focused() {
				m.Title.Blur()
				m.Textarea.Focus()
			} else {
				m.Textarea.Blur()
				m.Title.Focus()
			}
			return m, nil
		case tea.KeyCtrlS:
			value := strings.TrimSpace(m.Textarea.Value())
			title := strings.TrimSpace(m.Title.Value())

			if value == "" && title == "" {
				m.Error = "Cannot save an empty note"
				return m, nil
			}
			if n := utf8.RuneCountInString(value); n > m.maxLetters {
				m.Error = fmt.Sprintf("Note too long (%d characters, max %d)", n, m.maxLetters)
				return m, nil
			}

			switch {
			case m.isEditing:
				uri := m.editingURI
				m.reset()
				return m, editCmd(m.session, uri, value)
			case m.isReplying:
				uri := m.replyToURI
				m.reset()
				return m, publishCmd(m.session, value, "", uri)
			default:
				m.reset()
				return m, publishCmd(m.session, value, title, "")
			}
		case tea.KeyEsc:
			if m.isEditing || m.isReplying {
				m.reset()
				return m, nil
			}
		}
	}

	if m.Title.Focused() {
		m.Title, cmd = m.Title.Update(msg)
		return m, cmd
	}
	m.Textarea, cmd = m.Textarea.Update(msg)
	return m, cmd
}

// CharCount returns how many characters are left
func (m Model) CharCount() int {
	return m.maxLetters - utf8.RuneCountInString(m.Textarea.Value())
}

func (m Model) View() string {
	pad := lipgloss.NewStyle().PaddingLeft(5).PaddingRight(5)

	captionText := "new note"
	helpText := "post: ctrl+s\ntitle: ctrl+t"
	if m.isEditing {
		captionText = "edit note"
		helpText = "save changes: ctrl+s\ncancel: esc"
	} else if m.isReplying {
		captionText = "reply to " + m.replyToAuthor
		helpText = "post reply: ctrl+s\ncancel: esc"
	}
	caption := common.CaptionStyle.PaddingLeft(5).Render(captionText)

	titleSection := ""
	if !m.isEditing && !m.isReplying {
		titleSection = pad.Render(m.Title.View()) + "\n\n"
	}

	replyContext := ""
	if m.isReplying && m.replyToPreview != "" {
		replyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_MUTED)).
			Italic(true).
			PaddingLeft(5)
		replyContext = replyStyle.Render("\""+util.Truncate(m.replyToPreview, 60)+"\"") + "\n\n"
	}

	errorSection := ""
	if m.Error != "" {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_ERROR)).
			Bold(true).
			PaddingLeft(5)
		errorSection = "\n" + errorStyle.Render(m.Error)
	}

	helpLines := fmt.Sprintf("characters left: %d\n\n%s", m.CharCount(), helpText)
	charsLeft := common.HelpStyle.Render(lipgloss.NewStyle().PaddingLeft(5).Render(helpLines))

	return fmt.Sprintf("%s\n\n%s%s%s%s\n\n%s", caption, titleSection, replyContext, pad.Render(m.Textarea.View()), errorSection, charsLeft)
}
