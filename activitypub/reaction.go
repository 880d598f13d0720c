package activitypub

import (
	"context"
	"fmt"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

func (e *Engine) handleLike(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	actor, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	post, err := e.resolvePost(ObjectID(activity.Object))
	if err != nil {
		return err
	}
	like := &domain.Like{Id: uuid.New(), ActorId: actor.Id, PostId: post.Id, URI: activity.ID, CreatedAt: e.now()}
	if err := e.db.CreateLike(like); err != nil {
		return fmt.Errorf("store like: %w", err)
	}
	e.recomputeScore(ctx, post.Id)

	author, err := e.postAuthor(post)
	if err != nil {
		return err
	}
	e.notify(ctx, author, actor, domain.NotificationLike, post)

	if dir == Outbound && !author.IsLocal() {
		e.deliver(ctx, actor, []Recipient{ActorRecipient(author)}, activity, DeliveryOptions{})
	}
	return nil
}

func (e *Engine) handleAnnounce(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	actor, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	post, err := e.resolvePost(ObjectID(activity.Object))
	if err != nil {
		return err
	}
	boost := &domain.Boost{Id: uuid.New(), ActorId: actor.Id, PostId: post.Id, URI: activity.ID, CreatedAt: e.now()}
	if err := e.db.CreateBoost(boost); err != nil {
		return fmt.Errorf("store boost: %w", err)
	}
	e.recomputeScore(ctx, post.Id)

	author, err := e.postAuthor(post)
	if err != nil {
		return err
	}
	e.notify(ctx, author, actor, domain.NotificationBoost, post)

	if dir == Outbound {
		e.deliver(ctx, actor, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true})
		if !author.IsLocal() {
			e.deliver(ctx, actor, []Recipient{ActorRecipient(author)}, activity, DeliveryOptions{})
		}
	}
	return nil
}
