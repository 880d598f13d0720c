package activitypub

import (
	"context"
	"fmt"

	"github.com/deemkeen/stegofed/domain"
)

func (e *Engine) handleUndo(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	actor, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	var inner *Activity
	switch o := activity.Object.(type) {
	case *Activity:
		inner = o
	case Reference:
		if inner, err = e.storedFollow(o); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: undo of %q", errIgnored, ObjectType(activity.Object))
	}
	if inner.Actor != "" && inner.Actor != actor.URI {
		return fmt.Errorf("%w: %s cannot undo an activity of %s", ErrPolicy, actor.URI, inner.Actor)
	}

	switch inner.Type {
	case "Follow":
		return e.undoFollow(ctx, dir, actor, inner, activity)
	case "Like":
		return e.undoLike(ctx, dir, actor, inner, activity)
	case "Announce":
		return e.undoAnnounce(ctx, dir, actor, inner, activity)
	default:
		return fmt.Errorf("%w: undo of %s", errUnsupported, inner.Type)
	}
}

// storedFollow rebuilds the Follow a bare activity id refers to from the relationship row
func (e *Engine) storedFollow(ref Reference) (*Activity, error) {
	err, follow := e.db.ReadFollowByURI(string(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: undo of unknown activity %s", errIgnored, ref)
	}
	err, follower := e.db.ReadActorById(follow.FollowerId)
	if err != nil {
		return nil, fmt.Errorf("%w: follower of %s: %v", ErrNotResolvable, ref, err)
	}
	err, target := e.db.ReadActorById(follow.FollowingId)
	if err != nil {
		return nil, fmt.Errorf("%w: target of %s: %v", ErrNotResolvable, ref, err)
	}
	return &Activity{ID: follow.URI, Type: "Follow", Actor: follower.URI, Object: Reference(target.URI)}, nil
}

func (e *Engine) undoFollow(ctx context.Context, dir Direction, follower *domain.Actor, follow, undo *Activity) error {
	target, err := e.resolver.ResolveActorByURI(ctx, ObjectID(follow.Object))
	if err != nil {
		return err
	}
	if err := e.db.DeleteFollow(follower.Id, target.Id); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	e.unnotify(ctx, target, follower, domain.NotificationFollow, nil)
	e.cache.Invalidate(target.Id)

	if dir == Outbound && !target.IsLocal() {
		e.deliver(ctx, follower, []Recipient{ActorRecipient(target)}, undo, DeliveryOptions{})
	}
	return nil
}

func (e *Engine) undoLike(ctx context.Context, dir Direction, actor *domain.Actor, like, undo *Activity) error {
	post, err := e.resolvePost(ObjectID(like.Object))
	if err != nil {
		return err
	}
	if err := e.db.DeleteLike(actor.Id, post.Id); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	e.recomputeScore(ctx, post.Id)

	author, err := e.postAuthor(post)
	if err != nil {
		return err
	}
	e.unnotify(ctx, author, actor, domain.NotificationLike, post)

	if dir == Outbound && !author.IsLocal() {
		e.deliver(ctx, actor, []Recipient{ActorRecipient(author)}, undo, DeliveryOptions{})
	}
	return nil
}

func (e *Engine) undoAnnounce(ctx context.Context, dir Direction, actor *domain.Actor, announce, undo *Activity) error {
	post, err := e.resolvePost(ObjectID(announce.Object))
	if err != nil {
		return err
	}
	if err := e.db.DeleteBoost(actor.Id, post.Id); err != nil {
		return fmt.Errorf("delete boost: %w", err)
	}
	e.recomputeScore(ctx, post.Id)

	author, err := e.postAuthor(post)
	if err != nil {
		return err
	}
	e.unnotify(ctx, author, actor, domain.NotificationBoost, post)

	if dir == Outbound {
		e.deliver(ctx, actor, []Recipient{Followers()}, undo, DeliveryOptions{PreferSharedInbox: true})
		if !author.IsLocal() {
			e.deliver(ctx, actor, []Recipient{ActorRecipient(author)}, undo, DeliveryOptions{})
		}
	}
	return nil
}
