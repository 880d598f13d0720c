package common

import (
	"context"

	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

type SessionState uint

const (
	CreateNoteView    SessionState = iota
	HomeTimelineView               // Ranked front page
	FollowUserView                 // Follow and unfollow actors
	NotificationsView              // Likes, boosts, replies and follows
	UpdateNoteList
)

// ActivateViewMsg is sent when a view becomes active (visible)
type ActivateViewMsg struct{}

// DeactivateViewMsg is sent when a view becomes inactive (hidden)
type DeactivateViewMsg struct{}

// ReplyToNoteMsg is sent when user presses 'r' to reply to a post
type ReplyToNoteMsg struct {
	NoteURI string // ActivityPub object URI of the note being replied to
	Author  string
	Preview string
}

// EditNoteMsg is sent when user presses 'e' on one of their own posts
type EditNoteMsg struct {
	NoteURI string
	Text    string
}

// OutcomeMsg reports the result of a user action handed to the engine
type OutcomeMsg struct {
	Action  string
	Outcome activitypub.Outcome
	Err     error
}

// Store is the read side the console needs
type Store interface {
	ReadHotPosts(limit int) (error, *[]domain.Post)
	ReadActorById(id uuid.UUID) (error, *domain.Actor)
	HasLike(actorId, postId uuid.UUID) (bool, error)
	HasBoost(actorId, postId uuid.UUID) (bool, error)
	ReadFollowingActors(actorId uuid.UUID) (error, *[]domain.Actor)
	ReadNotificationsByAccountId(accountId uuid.UUID, limit int) (error, *[]domain.Notification)
	ReadUnreadNotificationCount(accountId uuid.UUID) (int, error)
	MarkAllNotificationsRead(accountId uuid.UUID) error
}

// Actions are the outbound operations a local user can trigger
type Actions interface {
	Publish(ctx context.Context, username, text string, opts activitypub.PostOptions) (string, activitypub.Outcome, error)
	EditPost(ctx context.Context, username, postURI, text string) (activitypub.Outcome, error)
	DeletePost(ctx context.Context, username, postURI string) activitypub.Outcome
	Like(ctx context.Context, username, postURI string) activitypub.Outcome
	Unlike(ctx context.Context, username, postURI string) activitypub.Outcome
	Boost(ctx context.Context, username, postURI string) activitypub.Outcome
	Unboost(ctx context.Context, username, postURI string) activitypub.Outcome
	Follow(ctx context.Context, username, targetURI string) activitypub.Outcome
	Unfollow(ctx context.Context, username, targetURI string) activitypub.Outcome
}

// Resolver turns a user@host handle into an actor URI
type Resolver interface {
	ResolveWebFinger(ctx context.Context, user, host string) (string, error)
}

// Session is everything a logged in user's console works with
type Session struct {
	Account domain.Account
	ActorId uuid.UUID
	Store   Store
	Actions Actions
	// Resolver is nil when federation is off
	Resolver Resolver
}

// Applied reports whether an outcome left the user's intent in place
func Applied(o activitypub.Outcome) bool {
	return o == activitypub.Applied || o == activitypub.Duplicate
}
