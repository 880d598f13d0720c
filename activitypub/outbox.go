package activitypub

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
)

// PostOptions shape a post published by a local user
type PostOptions struct {
	// InReplyTo is the origin URI of the parent post
	InReplyTo string
	// Audience lists community URIs the post is addressed to
	Audience  []string
	Sensitive bool
	// Title turns the post into an Article
	Title string
	// Link is attached to titled posts
	Link string
}

// Publish creates a post for a local user and returns its URI
func (e *Engine) Publish(ctx context.Context, username, text string, opts PostOptions) (string, Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" && opts.Title == "" {
		return "", Ignored, fmt.Errorf("%w: empty post", ErrPolicy)
	}
	if n := utf8.RuneCountInString(text); n > e.conf.MaxContentLength {
		return "", Rejected, fmt.Errorf("%w: post length %d exceeds %d", ErrPolicy, n, e.conf.MaxContentLength)
	}

	actorURI := e.conf.ActorURI(username)
	now := e.now().UTC()
	to, cc := e.addressing(username, opts.Audience)

	content := Content{
		ID:           e.conf.PostURI(uuid.New()),
		Type:         "Note",
		AttributedTo: actorURI,
		Content:      util.TextToHTML(text),
		InReplyTo:    LinkValue(opts.InReplyTo),
		Audience:     StringList(opts.Audience),
		Sensitive:    opts.Sensitive,
		To:           to,
		CC:           cc,
		Published:    now.Format(time.RFC3339),
	}
	for _, tag := range util.ParseHashtags(text) {
		content.Tag = append(content.Tag, Tag{Type: "Hashtag", Name: "#" + tag, Href: "https://" + e.conf.Domain + "/tags/" + tag})
	}

	var obj Object = &Note{Content: content}
	if opts.Title != "" {
		content.Type = "Article"
		content.Name = opts.Title
		if opts.Link != "" {
			content.Attachment = OneOrMany[Attachment]{{Type: "Link", Href: opts.Link}}
		}
		obj = &Article{Content: content}
	}

	create := e.newActivity("Create", actorURI, obj)
	create.To, create.CC, create.Audience = to, cc, StringList(opts.Audience)
	create.Published = content.Published
	return content.ID, e.Dispatch(ctx, Outbound, create, username), nil
}

// EditPost replaces the content of a local user's post
func (e *Engine) EditPost(ctx context.Context, username, postURI, text string) (Outcome, error) {
	err, post := e.db.ReadPostByURI(postURI)
	if err != nil {
		return Unresolvable, fmt.Errorf("%w: post %s", ErrNotResolvable, postURI)
	}
	if n := utf8.RuneCountInString(text); n > e.conf.MaxContentLength {
		return Rejected, fmt.Errorf("%w: post length %d exceeds %d", ErrPolicy, n, e.conf.MaxContentLength)
	}
	actorURI := e.conf.ActorURI(username)
	to, cc := e.addressing(username, post.Audience)
	note := &Note{Content: Content{
		ID:           post.URI,
		Type:         "Note",
		AttributedTo: actorURI,
		Content:      util.TextToHTML(text),
		Sensitive:    post.Sensitive,
		To:           to,
		CC:           cc,
		Published:    post.CreatedAt.UTC().Format(time.RFC3339),
		Updated:      e.now().UTC().Format(time.RFC3339),
	}}
	update := e.newActivity("Update", actorURI, note)
	update.To, update.CC = to, cc
	return e.Dispatch(ctx, Outbound, update, username), nil
}

// DeletePost removes a local user's post and tells their followers
func (e *Engine) DeletePost(ctx context.Context, username, postURI string) Outcome {
	actorURI := e.conf.ActorURI(username)
	del := e.newActivity("Delete", actorURI, &Tombstone{ID: postURI, Type: "Tombstone"})
	del.To = StringList{Public}
	return e.Dispatch(ctx, Outbound, del, username)
}

func (e *Engine) Like(ctx context.Context, username, postURI string) Outcome {
	return e.Dispatch(ctx, Outbound, e.newActivity("Like", e.conf.ActorURI(username), Reference(postURI)), username)
}

// Unlike reverts a like, reusing the original Like id when it is known
func (e *Engine) Unlike(ctx context.Context, username, postURI string) Outcome {
	actorURI := e.conf.ActorURI(username)
	like := e.newActivity("Like", actorURI, Reference(postURI))
	if actorId, postId, ok := e.reactionKey(username, postURI); ok {
		if err, stored := e.db.ReadLike(actorId, postId); err == nil && stored.URI != "" {
			like.ID = stored.URI
		}
	}
	return e.Dispatch(ctx, Outbound, e.newActivity("Undo", actorURI, like), username)
}

func (e *Engine) Boost(ctx context.Context, username, postURI string) Outcome {
	actorURI := e.conf.ActorURI(username)
	announce := e.newActivity("Announce", actorURI, Reference(postURI))
	announce.To = StringList{Public}
	announce.CC = StringList{e.conf.FollowersURI(username)}
	return e.Dispatch(ctx, Outbound, announce, username)
}

// Unboost reverts a boost. The inner Announce keeps the original id and addressing
// so peers can match it.
func (e *Engine) Unboost(ctx context.Context, username, postURI string) Outcome {
	actorURI := e.conf.ActorURI(username)
	announce := e.newActivity("Announce", actorURI, Reference(postURI))
	announce.To = StringList{Public}
	announce.CC = StringList{e.conf.FollowersURI(username)}
	if actorId, postId, ok := e.reactionKey(username, postURI); ok {
		if err, stored := e.db.ReadBoost(actorId, postId); err == nil && stored.URI != "" {
			announce.ID = stored.URI
		}
	}
	undo := e.newActivity("Undo", actorURI, announce)
	undo.To, undo.CC = announce.To, announce.CC
	return e.Dispatch(ctx, Outbound, undo, username)
}

// reactionKey finds the rows a local user's reaction to a post is keyed by
func (e *Engine) reactionKey(username, postURI string) (uuid.UUID, uuid.UUID, bool) {
	err, actor := e.db.ReadActorByUsername(username)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	err, post := e.db.ReadPostByURI(postURI)
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return actor.Id, post.Id, true
}

func (e *Engine) Follow(ctx context.Context, username, targetURI string) Outcome {
	return e.Dispatch(ctx, Outbound, e.newActivity("Follow", e.conf.ActorURI(username), Reference(targetURI)), username)
}

// Unfollow reverts a follow, reusing the original Follow id when it is known
func (e *Engine) Unfollow(ctx context.Context, username, targetURI string) Outcome {
	actorURI := e.conf.ActorURI(username)
	follow := e.newActivity("Follow", actorURI, Reference(targetURI))
	if err, follower := e.db.ReadActorByUsername(username); err == nil {
		if err, target := e.db.ReadActorByURI(targetURI); err == nil {
			if err, existing := e.db.ReadFollow(follower.Id, target.Id); err == nil && existing.URI != "" {
				follow.ID = existing.URI
			}
		}
	}
	return e.Dispatch(ctx, Outbound, e.newActivity("Undo", actorURI, follow), username)
}

func (e *Engine) newActivity(kind, actorURI string, obj Object) *Activity {
	return &Activity{
		Context: ContextActivityStreams,
		ID:      e.conf.ActivityURI(uuid.New()),
		Type:    kind,
		Actor:   actorURI,
		Object:  obj,
	}
}

// addressing returns the public to/cc lists of a local user's post
func (e *Engine) addressing(username string, audience []string) (StringList, StringList) {
	cc := StringList{e.conf.FollowersURI(username)}
	cc = append(cc, audience...)
	return StringList{Public}, cc
}
