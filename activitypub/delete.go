package activitypub

import (
	"context"
	"fmt"
	"log"
)

func (e *Engine) handleDelete(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	actor, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	objectURI := ObjectID(activity.Object)
	if objectURI == "" {
		return fmt.Errorf("%w: delete without object", errIgnored)
	}

	if objectURI == actor.URI {
		if actor.IsLocal() {
			return fmt.Errorf("%w: refusing to delete local actor %s", errIgnored, actor.URI)
		}
		err, touched := e.db.ReadPostIdsTouchedByActor(actor.Id)
		if err != nil {
			return fmt.Errorf("posts touched by %s: %w", actor.URI, err)
		}
		if err := e.db.DeleteActorCascade(actor.Id); err != nil {
			return fmt.Errorf("delete actor %s: %w", actor.URI, err)
		}
		e.cache.Invalidate(actor.Id)
		for _, postId := range touched {
			e.recomputeScore(ctx, postId)
		}
		log.Printf("Inbox: Deleted actor %s and their posts", actor.URI)
		return nil
	}

	err, post := e.db.ReadPostByURI(objectURI)
	if err != nil {
		return fmt.Errorf("%w: post %s already gone", errIgnored, objectURI)
	}
	if post.ActorId != actor.Id {
		return fmt.Errorf("%w: unauthorized delete of %s by %s", ErrPolicy, objectURI, actor.URI)
	}
	if err := e.db.DeletePost(post.Id); err != nil {
		return fmt.Errorf("delete post %s: %w", objectURI, err)
	}
	e.cache.Invalidate(actor.Id)
	if post.ParentId != nil {
		e.recomputeScore(ctx, *post.ParentId)
	}

	if dir == Outbound {
		e.deliver(ctx, actor, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true})
	}
	return nil
}
