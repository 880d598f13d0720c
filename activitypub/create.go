package activitypub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
)

func (e *Engine) handleCreate(ctx context.Context, dir Direction, activity *Activity, localUsername string) error {
	content, _, ok := creatable(activity.Object)
	if !ok {
		return fmt.Errorf("%w: cannot create a %q", errIgnored, ObjectType(activity.Object))
	}

	author, err := e.resolver.ResolveActor(ctx, dir, localUsername, activity)
	if err != nil {
		return err
	}
	if dir == Inbound && content.AttributedTo != "" && content.AttributedTo != author.URI {
		return fmt.Errorf("%w: %s created an object attributed to %s", ErrPolicy, author.URI, content.AttributedTo)
	}

	post, parent, err := e.storePost(ctx, dir, author, activity.Object, activity.Audience, 0)
	if err != nil {
		return err
	}

	if dir == Outbound {
		e.fanOutCreate(ctx, author, post, parent, activity)
	}
	e.cache.Invalidate(author.Id)
	return nil
}

// storeFetched persists a post fetched while resolving a reply chain
func (e *Engine) storeFetched(ctx context.Context, author *domain.Actor, obj Object, depth int) (*domain.Post, error) {
	post, _, err := e.storePost(ctx, Inbound, author, obj, nil, depth)
	if err == nil {
		e.cache.Invalidate(author.Id)
	}
	return post, err
}

// storePost runs the create pipeline for a creatable object up to its side effects.
// It returns the stored post, its parent when it is a reply, and domain.ErrDuplicate
// together with the existing post when the origin URI is already known.
func (e *Engine) storePost(ctx context.Context, dir Direction, author *domain.Actor, obj Object, audience StringList, depth int) (*domain.Post, *domain.Post, error) {
	content, titled, ok := creatable(obj)
	if !ok {
		return nil, nil, fmt.Errorf("%w: cannot create a %q", errIgnored, ObjectType(obj))
	}
	if content.ID == "" {
		return nil, nil, fmt.Errorf("%w: %s without id", errIgnored, content.Type)
	}
	if err, existing := e.db.ReadPostByURI(content.ID); err == nil {
		return existing, nil, fmt.Errorf("%w: post %s", domain.ErrDuplicate, content.ID)
	}

	title := ""
	if titled {
		title = content.Name
	}
	body := content.Content
	if dir == Inbound {
		sanitized, err := e.sanitizer.Sanitize(title, content.Content)
		if err != nil {
			return nil, nil, err
		}
		body = sanitized
	} else if title != "" {
		body = TitleBlock(title) + body
	}

	var parent *domain.Post
	if replyTo := string(content.InReplyTo); replyTo != "" {
		p, err := e.fetcher.ResolvePost(ctx, replyTo, depth)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reply parent %s: %v", ErrPolicy, replyTo, err)
		}
		parent = p
	}

	post := &domain.Post{
		Id:        uuid.New(),
		URI:       content.ID,
		ActorId:   author.Id,
		Content:   body,
		URL:       string(content.URL),
		Sensitive: content.Sensitive,
		Audience:  mergeAudience(content.Audience, audience),
		CreatedAt: e.published(content.Published),
	}
	if post.URL == post.URI {
		post.URL = ""
	}
	if parent != nil {
		post.ParentId = &parent.Id
	}

	if err := e.db.CreatePost(post); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			_, existing := e.db.ReadPostByURI(content.ID)
			return existing, nil, err
		}
		return nil, nil, fmt.Errorf("store post %s: %w", content.ID, err)
	}

	e.attachHashtags(ctx, post, content)
	e.attachMedia(ctx, post, content)
	if titled {
		e.attachLinks(ctx, post, content)
	}

	if parent != nil {
		e.recomputeScore(ctx, parent.Id)
		if parentAuthor, err := e.postAuthor(parent); err == nil {
			e.notify(ctx, parentAuthor, author, domain.NotificationReply, post)
		}
	}
	return post, parent, nil
}

func (e *Engine) published(value string) time.Time {
	if value != "" {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
	}
	return e.now()
}

// mergeAudience collects the addressed audience URIs, leaving out the public collection
func mergeAudience(lists ...StringList) []string {
	var out []string
	seen := map[string]bool{}
	for _, list := range lists {
		for _, uri := range list {
			if uri == "" || uri == Public || seen[uri] {
				continue
			}
			seen[uri] = true
			out = append(out, uri)
		}
	}
	return out
}

func (e *Engine) attachHashtags(ctx context.Context, post *domain.Post, content *Content) {
	var names []string
	for _, tag := range content.Tag {
		if tag.Type != "Hashtag" {
			continue
		}
		if name := strings.ToLower(strings.TrimPrefix(tag.Name, "#")); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	e.supervisor.Go(ctx, "hashtags of "+post.URI, func(ctx context.Context) error {
		var ids []int64
		for _, name := range names {
			id, err := e.db.CreateOrUpdateHashtag(name)
			if err != nil {
				log.Printf("Inbox: Failed to store hashtag #%s: %v", name, err)
				continue
			}
			ids = append(ids, id)
		}
		return e.db.LinkPostHashtags(post.Id, ids)
	})
}

var mediaTypes = map[string]bool{"Document": true, "Image": true, "Video": true, "Audio": true}

func (e *Engine) attachMedia(ctx context.Context, post *domain.Post, content *Content) {
	var media []domain.Attachment
	for _, att := range content.Attachment {
		if !mediaTypes[att.Type] || !util.IsURL(att.Link()) {
			continue
		}
		media = append(media, domain.Attachment{
			PostId:    post.Id,
			URL:       att.Link(),
			MediaType: att.MediaType,
			Name:      att.Name,
			CreatedAt: e.now(),
		})
	}
	if len(media) == 0 {
		return
	}
	e.supervisor.Go(ctx, "media of "+post.URI, func(ctx context.Context) error {
		var errs []error
		for i := range media {
			if err := e.db.CreateAttachment(&media[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// attachLinks appends Link attachments of titled posts as anchors and fetches a preview of the first
func (e *Engine) attachLinks(ctx context.Context, post *domain.Post, content *Content) {
	var links []string
	for _, att := range content.Attachment {
		if att.Type == "Link" && util.IsURL(att.Link()) {
			links = append(links, att.Link())
		}
	}
	if len(links) == 0 {
		return
	}
	e.supervisor.Go(ctx, "links of "+post.URI, func(ctx context.Context) error {
		for _, link := range links {
			if err := e.db.AppendPostContent(post.Id, LinkBlock(link)); err != nil {
				return err
			}
		}
		if e.previews == nil {
			return nil
		}
		preview, err := e.previews.Fetch(ctx, links[0])
		if err != nil {
			log.Printf("Inbox: No link preview for %s: %v", links[0], err)
			return nil
		}
		return e.db.UpdatePostPreview(post.Id, preview)
	})
}

// fanOutCreate delivers a local post to followers, the remote parent author and addressed audiences.
// Each delivery is independent of the others.
func (e *Engine) fanOutCreate(ctx context.Context, author *domain.Actor, post, parent *domain.Post, activity *Activity) {
	e.deliver(ctx, author, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true})

	if parent != nil {
		if parentAuthor, err := e.postAuthor(parent); err != nil {
			log.Printf("Outbox: Cannot address reply %s: %v", post.URI, err)
		} else if !parentAuthor.IsLocal() {
			e.deliver(ctx, author, []Recipient{ActorRecipient(parentAuthor)}, activity, DeliveryOptions{})
		}
	}

	for _, uri := range post.Audience {
		if e.conf.IsLocalURI(uri) || strings.HasSuffix(uri, "/followers") {
			continue
		}
		e.supervisor.Go(ctx, "audience "+uri, func(ctx context.Context) error {
			target, err := e.resolver.ResolveActorByURI(ctx, uri)
			if err != nil {
				return err
			}
			e.deliver(ctx, author, []Recipient{ActorRecipient(target)}, activity, DeliveryOptions{})
			return nil
		})
	}
}
