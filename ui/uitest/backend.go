// Package uitest provides an in-memory backend for console tests.
package uitest

import (
	"context"
	"sync"

	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/ui/common"
	"github.com/google/uuid"
)

// Call records one outbound action
type Call struct {
	Action string
	URI    string
	Text   string
	Opts   activitypub.PostOptions
}

// Backend implements common.Store and common.Actions over plain slices
type Backend struct {
	mu            sync.Mutex
	Posts         []domain.Post
	Actors        map[uuid.UUID]*domain.Actor
	Liked         map[uuid.UUID]bool
	Boosted       map[uuid.UUID]bool
	Following     []domain.Actor
	Notifications []domain.Notification
	Calls         []Call
	// Outcome is returned by every action
	Outcome activitypub.Outcome
	Err     error
}

func New() *Backend {
	return &Backend{
		Actors:  map[uuid.UUID]*domain.Actor{},
		Liked:   map[uuid.UUID]bool{},
		Boosted: map[uuid.UUID]bool{},
		Outcome: activitypub.Applied,
	}
}

// Session returns a console session for a local account backed by b
func (b *Backend) Session(username string) *common.Session {
	return &common.Session{
		Account: domain.Account{Id: uuid.New(), Username: username},
		ActorId: uuid.New(),
		Store:   b,
		Actions: b,
	}
}

// CallsOf returns the recorded calls of one action
func (b *Backend) CallsOf(action string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var calls []Call
	for _, c := range b.Calls {
		if c.Action == action {
			calls = append(calls, c)
		}
	}
	return calls
}

func (b *Backend) record(c Call) activitypub.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, c)
	return b.Outcome
}

func (b *Backend) ReadHotPosts(limit int) (error, *[]domain.Post) {
	posts := b.Posts
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return nil, &posts
}

func (b *Backend) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	if a, ok := b.Actors[id]; ok {
		return nil, a
	}
	return domain.ErrNotFound, nil
}

func (b *Backend) HasLike(actorId, postId uuid.UUID) (bool, error) {
	return b.Liked[postId], nil
}

func (b *Backend) HasBoost(actorId, postId uuid.UUID) (bool, error) {
	return b.Boosted[postId], nil
}

func (b *Backend) ReadFollowingActors(actorId uuid.UUID) (error, *[]domain.Actor) {
	actors := b.Following
	return nil, &actors
}

func (b *Backend) ReadNotificationsByAccountId(accountId uuid.UUID, limit int) (error, *[]domain.Notification) {
	notifications := b.Notifications
	return nil, &notifications
}

func (b *Backend) ReadUnreadNotificationCount(accountId uuid.UUID) (int, error) {
	n := 0
	for _, notif := range b.Notifications {
		if !notif.Read {
			n++
		}
	}
	return n, nil
}

func (b *Backend) MarkAllNotificationsRead(accountId uuid.UUID) error {
	for i := range b.Notifications {
		b.Notifications[i].Read = true
	}
	return nil
}

func (b *Backend) Publish(ctx context.Context, username, text string, opts activitypub.PostOptions) (string, activitypub.Outcome, error) {
	return "https://local.example/posts/new", b.record(Call{Action: "publish", Text: text, Opts: opts}), b.Err
}

func (b *Backend) EditPost(ctx context.Context, username, postURI, text string) (activitypub.Outcome, error) {
	return b.record(Call{Action: "edit", URI: postURI, Text: text}), b.Err
}

func (b *Backend) DeletePost(ctx context.Context, username, postURI string) activitypub.Outcome {
	return b.record(Call{Action: "delete", URI: postURI})
}

func (b *Backend) Like(ctx context.Context, username, postURI string) activitypub.Outcome {
	return b.record(Call{Action: "like", URI: postURI})
}

func (b *Backend) Unlike(ctx context.Context, username, postURI string) activitypub.Outcome {
	return b.record(Call{Action: "unlike", URI: postURI})
}

func (b *Backend) Boost(ctx context.Context, username, postURI string) activitypub.Outcome {
	return b.record(Call{Action: "boost", URI: postURI})
}

func (b *Backend) Unboost(ctx context.Context, username, postURI string) activitypub.Outcome {
	return b.record(Call{Action: "unboost", URI: postURI})
}

func (b *Backend) Follow(ctx context.Context, username, targetURI string) activitypub.Outcome {
	return b.record(Call{Action: "follow", URI: targetURI})
}

func (b *Backend) Unfollow(ctx context.Context, username, targetURI string) activitypub.Outcome {
	return b.record(Call{Action: "unfollow", URI: targetURI})
}
