package writenote

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/deemkeen/stegofed/ui/uitest"
)

func newNote(t *testing.T) (Model, *uitest.Backend) {
	t.Helper()
	backend := uitest.New()
	return InitialNote(100, backend.Session("alice"), 50), backend
}

func TestEmptyNoteValidation(t *testing.T) {
	m, _ := newNote(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.Error != "Cannot save an empty note" {
		t.Errorf("Expected error 'Cannot save an empty note', got '%s'", m.Error)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	if m.Error != "" {
		t.Errorf("Expected error to clear when typing, but still has: '%s'", m.Error)
	}
}

func TestWhitespaceNoteValidation(t *testing.T) {
	m, _ := newNote(t)
	m.Textarea.SetValue("   \n\n  \t  ")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.Error != "Cannot save an empty note" {
		t.Errorf("Expected error 'Cannot save an empty note', got '%s'", m.Error)
	}
}

func TestPublishNote(t *testing.T) {
	m, backend := newNote(t)
	m.Textarea.SetValue("hello #fediverse")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.Error != "" {
		t.Errorf("Expected no error for valid note, got: '%s'", m.Error)
	}
	if m.Textarea.Value() != "" {
		t.Errorf("Expected textarea cleared after save, got: '%s'", m.Textarea.Value())
	}
	if cmd == nil {
		t.Fatal("Expected publish command")
	}

	msg, ok := cmd().(common.OutcomeMsg)
	if !ok {
		t.Fatalf("Expected OutcomeMsg, got %T", msg)
	}
	if msg.Action != "post" || msg.Outcome != activitypub.Applied {
		t.Errorf("Unexpected outcome %+v", msg)
	}
	calls := backend.CallsOf("publish")
	if len(calls) != 1 || calls[0].Text != "hello #fediverse" || calls[0].Opts.InReplyTo != "" {
		t.Errorf("Unexpected publish calls %+v", calls)
	}
}

func TestPublishLinkPost(t *testing.T) {
	m, backend := newNote(t)
	m.Title.SetValue("Interesting read")
	m.Textarea.SetValue("https://example.org/article")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	cmd()

	calls := backend.CallsOf("publish")
	if len(calls) != 1 {
		t.Fatalf("Expected 1 publish, got %d", len(calls))
	}
	if calls[0].Opts.Title != "Interesting read" || calls[0].Opts.Link != "https://example.org/article" {
		t.Errorf("Expected a titled link post, got %+v", calls[0].Opts)
	}
}

func TestReplyMode(t *testing.T) {
	m, backend := newNote(t)

	m, _ = m.Update(common.ReplyToNoteMsg{NoteURI: "https://remote.example/notes/1", Author: "@bob@remote.example", Preview: "first line"})
	if !strings.Contains(m.View(), "reply to @bob@remote.example") {
		t.Error("Expected reply caption in view")
	}

	m.Textarea.SetValue("agreed")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.isReplying {
		t.Error("Expected reply mode cleared after posting")
	}
	msg := cmd().(common.OutcomeMsg)
	if msg.Action != "reply" {
		t.Errorf("Expected reply action, got '%s'", msg.Action)
	}
	calls := backend.CallsOf("publish")
	if len(calls) != 1 || calls[0].Opts.InReplyTo != "https://remote.example/notes/1" {
		t.Errorf("Expected reply addressed to the parent, got %+v", calls)
	}
}

func TestReplyModeCancelledWithEsc(t *testing.T) {
	m, _ := newNote(t)
	m, _ = m.Update(common.ReplyToNoteMsg{NoteURI: "https://remote.example/notes/1", Author: "@bob"})
	m.Textarea.SetValue("draft")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.isReplying || m.replyToURI != "" {
		t.Error("Expected reply mode cleared")
	}
	if m.Textarea.Value() != "" {
		t.Errorf("Expected textarea cleared, got '%s'", m.Textarea.Value())
	}
}

func TestEditMode(t *testing.T) {
	m, backend := newNote(t)

	m, _ = m.Update(common.EditNoteMsg{NoteURI: "https://local.example/posts/1", Text: "first draft"})
	if m.Textarea.Value() != "first draft" {
		t.Errorf("Expected textarea prefilled, got '%s'", m.Textarea.Value())
	}

	m.Textarea.SetValue("second draft")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	msg := cmd().(common.OutcomeMsg)
	if msg.Action != "edit" {
		t.Errorf("Expected edit action, got '%s'", msg.Action)
	}
	calls := backend.CallsOf("edit")
	if len(calls) != 1 || calls[0].URI != "https://local.example/posts/1" || calls[0].Text != "second draft" {
		t.Errorf("Unexpected edit calls %+v", calls)
	}
}

func TestPublishErrorReported(t *testing.T) {
	m, backend := newNote(t)
	backend.Outcome = activitypub.Rejected
	backend.Err = errors.New("too long")
	m.Textarea.SetValue("hello")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	msg := cmd().(common.OutcomeMsg)
	if msg.Err == nil || msg.Outcome != activitypub.Rejected {
		t.Errorf("Expected rejection reported, got %+v", msg)
	}
}

func TestCharCount(t *testing.T) {
	m, _ := newNote(t)
	m.Textarea.SetValue("héllo")

	if m.CharCount() != 45 {
		t.Errorf("Expected 45 characters left, got %d", m.CharCount())
	}
}

func TestTitleToggle(t *testing.T) {
	m, _ := newNote(t)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if !m.Title.Focused() || m.Textarea.Focused() {
		t.Error("Expected title focused")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if m.Title.Focused() || !m.Textarea.Focused() {
		t.Error("Expected body focused again")
	}
}
