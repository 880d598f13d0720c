package activitypub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

func (e *Engine) handleFollow(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	follower, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	target, err := e.resolver.ResolveActorByURI(ctx, ObjectID(activity.Object))
	if err != nil {
		return err
	}
	if follower.Id == target.Id {
		return fmt.Errorf("%w: %s follows itself", errIgnored, follower.URI)
	}
	if dir == Inbound && !target.IsLocal() {
		return fmt.Errorf("%w: follow of remote actor %s delivered here", errIgnored, target.URI)
	}

	follow := &domain.Follow{
		FollowerId:  follower.Id,
		FollowingId: target.Id,
		URI:         activity.ID,
		Status:      domain.FollowAccepted,
		CreatedAt:   e.now(),
	}

	if dir == Outbound && !target.IsLocal() {
		follow.Status = domain.FollowPending
		if err := e.db.UpsertFollow(follow); err != nil {
			return fmt.Errorf("store follow: %w", err)
		}
		e.deliver(ctx, follower, []Recipient{ActorRecipient(target)}, activity, DeliveryOptions{})
		return nil
	}

	if err := e.db.UpsertFollow(follow); err != nil {
		return fmt.Errorf("store follow: %w", err)
	}
	e.notify(ctx, target, follower, domain.NotificationFollow, nil)
	e.cache.Invalidate(target.Id)

	if dir == Inbound {
		e.deliver(ctx, target, []Recipient{e.replyRecipient(follower, activity)}, e.newAccept(target, activity), DeliveryOptions{})
	}
	return nil
}

// replyRecipient addresses the actor of an inbound activity, preferring the inbox
// of the descriptor that came with it over the stored record
func (e *Engine) replyRecipient(actor *domain.Actor, activity *Activity) Recipient {
	if p := activity.ActorObject; p != nil && p.ID == actor.URI && p.Inbox != "" {
		return Recipient{ID: p.ID, InboxURI: p.Inbox}
	}
	return ActorRecipient(actor)
}

func (e *Engine) newAccept(target *domain.Actor, follow *Activity) *Activity {
	return &Activity{
		Context: ContextActivityStreams,
		ID:      e.conf.ActivityURI(uuid.New()),
		Type:    "Accept",
		Actor:   target.URI,
		Object: &Activity{
			ID:     follow.ID,
			Type:   "Follow",
			Actor:  follow.Actor,
			Object: Reference(target.URI),
		},
		To: StringList{follow.Actor},
	}
}

// followOf finds the follower and target of the Follow an Accept or Reject answers
func (e *Engine) followOf(ctx context.Context, responder *domain.Actor, obj Object) (*domain.Actor, *domain.Actor, error) {
	switch o := obj.(type) {
	case *Activity:
		if o.Type != "Follow" {
			return nil, nil, fmt.Errorf("%w: wraps a %s, not a Follow", errIgnored, o.Type)
		}
		if targetURI := ObjectID(o.Object); targetURI != "" && targetURI != responder.URI {
			return nil, nil, fmt.Errorf("%w: %s answered a follow of %s", ErrPolicy, responder.URI, targetURI)
		}
		follower, err := e.resolver.ResolveActorByURI(ctx, o.Actor)
		if err != nil {
			return nil, nil, err
		}
		return follower, responder, nil
	case Reference:
		err, follow := e.db.ReadFollowByURI(string(o))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: follow %s: %v", ErrNotResolvable, o, err)
		}
		if follow.FollowingId != responder.Id {
			return nil, nil, fmt.Errorf("%w: %s answered a follow of someone else", ErrPolicy, responder.URI)
		}
		err, follower := e.db.ReadActorById(follow.FollowerId)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: follower of %s: %v", ErrNotResolvable, o, err)
		}
		return follower, responder, nil
	default:
		return nil, nil, fmt.Errorf("%w: wraps a %q, not a Follow", errIgnored, ObjectType(obj))
	}
}

func (e *Engine) handleAccept(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	accepter, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	follower, target, err := e.followOf(ctx, accepter, activity.Object)
	if err != nil {
		return err
	}
	if err := e.db.AcceptFollow(follower.Id, target.Id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: no follow from %s to %s", errIgnored, follower.URI, target.URI)
		}
		return fmt.Errorf("accept follow: %w", err)
	}
	e.cache.Invalidate(follower.Id)

	if dir == Outbound && !follower.IsLocal() {
		e.deliver(ctx, target, []Recipient{ActorRecipient(follower)}, activity, DeliveryOptions{})
	}
	return nil
}

func (e *Engine) handleReject(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	rejecter, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	follower, target, err := e.followOf(ctx, rejecter, activity.Object)
	if err != nil {
		return err
	}
	if err := e.db.DeleteFollow(follower.Id, target.Id); err != nil {
		return fmt.Errorf("reject follow: %w", err)
	}
	e.unnotify(ctx, target, follower, domain.NotificationFollow, nil)
	e.cache.Invalidate(follower.Id)

	if dir == Outbound && !follower.IsLocal() {
		e.deliver(ctx, target, []Recipient{ActorRecipient(follower)}, activity, DeliveryOptions{})
	}
	return nil
}
