package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is a note, article or page, local or remote, keyed by its origin URI
type Post struct {
	Id         uuid.UUID
	URI        string
	ActorId    uuid.UUID
	Content    string // sanitized HTML
	URL        string
	ParentId   *uuid.UUID
	Sensitive  bool
	Audience   []string
	LikeCount  int
	BoostCount int
	ReplyCount int
	Score      float64
	Preview    *LinkPreview
	CreatedAt  time.Time
	EditedAt   *time.Time
}

// IsReply reports whether the post has a parent
func (p *Post) IsReply() bool {
	return p.ParentId != nil
}

// LinkPreview holds OpenGraph metadata fetched for a linked page
type LinkPreview struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
}

// Attachment is a Document/Image attached to a post
type Attachment struct {
	Id        uuid.UUID
	PostId    uuid.UUID
	URL       string
	MediaType string
	Name      string // alt text
	CreatedAt time.Time
}

// Hashtag is a normalized (lowercase, no #) tag name
type Hashtag struct {
	Id   int64
	Name string
}
