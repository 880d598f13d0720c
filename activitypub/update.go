package activitypub

import (
	"context"
	"fmt"
)

// handleUpdate refreshes a remote actor profile or edits the content of an existing post
func (e *Engine) handleUpdate(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	actor, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}

	if person, ok := activity.Object.(*Person); ok {
		if person.ID != actor.URI {
			return fmt.Errorf("%w: %s cannot update actor %s", ErrPolicy, actor.URI, person.ID)
		}
		if dir == Inbound {
			if _, err := e.resolver.Persist(person); err != nil {
				return fmt.Errorf("update actor %s: %w", person.ID, err)
			}
		}
		e.cache.Invalidate(actor.Id)
		if dir == Outbound {
			e.deliver(ctx, actor, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true})
		}
		return nil
	}

	content, titled, ok := creatable(activity.Object)
	if !ok {
		return fmt.Errorf("%w: update of %q", errUnsupported, ObjectType(activity.Object))
	}
	err, post := e.db.ReadPostByURI(content.ID)
	if err != nil {
		return fmt.Errorf("%w: post %s: %v", ErrNotResolvable, content.ID, err)
	}
	if post.ActorId != actor.Id {
		return fmt.Errorf("%w: unauthorized update of %s by %s", ErrPolicy, content.ID, actor.URI)
	}

	title := ""
	if titled {
		title = content.Name
	}
	body := content.Content
	if dir == Inbound {
		if body, err = e.sanitizer.Sanitize(title, content.Content); err != nil {
			return err
		}
	} else if title != "" {
		body = TitleBlock(title) + body
	}
	if err := e.db.UpdatePostContent(post.Id, body, content.Sensitive, e.now()); err != nil {
		return fmt.Errorf("update post %s: %w", content.ID, err)
	}
	e.cache.Invalidate(actor.Id)

	if dir == Outbound {
		e.deliver(ctx, actor, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true})
	}
	return nil
}
