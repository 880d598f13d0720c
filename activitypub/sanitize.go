package activitypub

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer enforces the content policy on HTML received from peers
type Sanitizer struct {
	maxLength int
	policy    *bluemonday.Policy
	strict    *bluemonday.Policy
}

func NewSanitizer(maxLength int) *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	// microformat classes Mastodon uses for mentions and hashtags
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z -]+$`)).OnElements("a", "span")
	return &Sanitizer{maxLength: maxLength, policy: policy, strict: bluemonday.StrictPolicy()}
}

// Sanitize checks the content length and returns safe HTML. A non-empty title is
// prepended as a bold paragraph before sanitizing.
func (s *Sanitizer) Sanitize(title, content string) (string, error) {
	if n := utf8.RuneCountInString(content); n > s.maxLength {
		return "", fmt.Errorf("%w: content length %d exceeds %d", ErrPolicy, n, s.maxLength)
	}
	if title != "" {
		content = TitleBlock(title) + content
	}
	return s.policy.Sanitize(content), nil
}

// Clean sanitizes without a length check, for profile fields
func (s *Sanitizer) Clean(content string) string {
	return s.policy.Sanitize(content)
}

// PlainText strips every tag
func (s *Sanitizer) PlainText(content string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(content)))
}

// TitleBlock renders a post title as the leading paragraph of its content
func TitleBlock(title string) string {
	return "<p><strong>" + html.EscapeString(title) + "</strong></p>"
}

// LinkBlock renders an external link appended to a link post
func LinkBlock(href string) string {
	escaped := html.EscapeString(href)
	return `<p><a href="` + escaped + `" rel="nofollow noopener noreferrer" target="_blank">` + escaped + `</a></p>`
}
