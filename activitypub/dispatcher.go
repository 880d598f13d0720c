package activitypub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
)

var (
	errIgnored     = errors.New("ignored")
	errUnsupported = errors.New("unsupported")
)

// Engine applies federated activities, inbound from peers and outbound from local users,
// to local state and triggers the resulting deliveries and side effects.
type Engine struct {
	db         Database
	protocol   Protocol
	conf       Config
	supervisor *Supervisor
	gateway    *Gateway
	resolver   *Resolver
	sanitizer  *Sanitizer
	fetcher    *Fetcher
	scorer     *Scorer
	cache      *ProfileCache
	previews   *LinkPreviewer
	now        func() time.Time
}

// Option adjusts an engine at construction
type Option func(*Engine)

// WithLinkPreviewer replaces the default link preview client
func WithLinkPreviewer(previews *LinkPreviewer) Option {
	return func(e *Engine) { e.previews = previews }
}

// WithClock replaces time.Now for timestamps and scores
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.scorer.now = now
		e.resolver.now = now
	}
}

func NewEngine(db Database, protocol Protocol, conf Config, opts ...Option) *Engine {
	conf = conf.withDefaults()
	supervisor := NewSupervisor(conf.MaxConcurrentDeliveries)
	sanitizer := NewSanitizer(conf.MaxContentLength)
	resolver := NewResolver(db, protocol, conf, sanitizer)

	e := &Engine{
		db:         db,
		protocol:   protocol,
		conf:       conf,
		supervisor: supervisor,
		gateway:    NewGateway(protocol, supervisor),
		resolver:   resolver,
		sanitizer:  sanitizer,
		scorer:     NewScorer(db),
		cache:      NewProfileCache(conf.ProfileCacheSize),
		now:        time.Now,
	}
	e.fetcher = &Fetcher{db: db, protocol: protocol, conf: conf, resolver: resolver, store: e.storeFetched}
	if conf.LinkPreviews {
		e.previews = NewLinkPreviewer(nil, conf)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.conf
}

func (e *Engine) Cache() *ProfileCache {
	return e.cache
}

// Wait blocks until all deliveries and side effects started so far have finished
func (e *Engine) Wait() {
	e.supervisor.Wait()
}

// Shutdown waits for in-flight deliveries and side effects until ctx expires
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.supervisor.Shutdown(ctx)
}

// Dispatch applies one activity and reports what happened. It never fails: every error is
// classified into an Outcome and logged. localUsername names the acting local user for
// outbound activities and is ignored for inbound ones.
func (e *Engine) Dispatch(ctx context.Context, dir Direction, activity *Activity, localUsername string) (outcome Outcome) {
	prefix := "Inbox"
	if dir == Outbound {
		prefix = "Outbox"
	}
	activityType := "unknown"
	if activity != nil {
		activityType = activity.Type
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s: Panic while handling %s: %v\n%s", prefix, activityType, r, debug.Stack())
			outcome = Failed
		}
		activitiesDispatched.WithLabelValues(dir.String(), activityType, outcome.String()).Inc()
	}()

	if activity == nil {
		log.Printf("%s: Ignoring empty activity", prefix)
		return Ignored
	}

	var err error
	switch activity.Type {
	case "Create":
		err = e.handleCreate(ctx, dir, activity, localUsername)
	case "Update":
		err = e.handleUpdate(ctx, dir, activity, localUsername)
	case "Follow":
		err = e.handleFollow(ctx, dir, activity, localUsername)
	case "Accept":
		err = e.handleAccept(ctx, dir, activity, localUsername)
	case "Reject":
		err = e.handleReject(ctx, dir, activity, localUsername)
	case "Undo":
		err = e.handleUndo(ctx, dir, activity, localUsername)
	case "Like":
		err = e.handleLike(ctx, dir, activity, localUsername)
	case "Announce":
		err = e.handleAnnounce(ctx, dir, activity, localUsername)
	case "Delete":
		err = e.handleDelete(ctx, dir, activity, localUsername)
	default:
		err = fmt.Errorf("%w: activity type %q", errUnsupported, activity.Type)
	}

	outcome = classify(err)
	switch outcome {
	case Applied:
		log.Printf("%s: Applied %s %s", prefix, activity.Type, activity.ID)
	case Failed:
		log.Printf("%s: Failed to handle %s %s: %v", prefix, activity.Type, activity.ID, err)
	default:
		log.Printf("%s: %s %s %s: %v", prefix, outcome, activity.Type, activity.ID, err)
	}
	return outcome
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return Applied
	case errors.Is(err, domain.ErrDuplicate):
		return Duplicate
	case errors.Is(err, ErrPolicy):
		return Rejected
	case errors.Is(err, ErrNotResolvable):
		return Unresolvable
	case errors.Is(err, errIgnored):
		return Ignored
	case errors.Is(err, errUnsupported):
		return Unsupported
	default:
		return Failed
	}
}

// senderAccount returns the account whose key signs deliveries made by a local actor
func (e *Engine) senderAccount(actor *domain.Actor) (*domain.Account, error) {
	if !actor.IsLocal() {
		return nil, fmt.Errorf("actor %s is not local", actor.URI)
	}
	err, acc := e.db.ReadAccById(*actor.UserId)
	if err != nil {
		return nil, fmt.Errorf("account of %s: %w", actor.URI, err)
	}
	return acc, nil
}

// deliver hands the activity to the gateway on behalf of a local actor
func (e *Engine) deliver(ctx context.Context, from *domain.Actor, recipients []Recipient, activity *Activity, opts DeliveryOptions) {
	sender, err := e.senderAccount(from)
	if err != nil {
		log.Printf("Outbox: Cannot deliver %s %s: %v", activity.Type, activity.ID, err)
		return
	}
	e.gateway.Deliver(ctx, sender, recipients, activity, opts)
}

// recomputeScore refreshes the counters and hot score of a post in the background
func (e *Engine) recomputeScore(ctx context.Context, postId uuid.UUID) {
	e.supervisor.Go(ctx, "score "+postId.String(), func(ctx context.Context) error {
		return e.scorer.Recompute(postId)
	})
}

// notify records a notification for a local recipient. Self-interactions are not notified.
func (e *Engine) notify(ctx context.Context, recipient, actor *domain.Actor, kind domain.NotificationType, post *domain.Post) {
	if recipient == nil || !recipient.IsLocal() || recipient.Id == actor.Id {
		return
	}
	n := &domain.Notification{
		AccountId:        *recipient.UserId,
		NotificationType: kind,
		ActorId:          actor.Id,
		ActorUsername:    actor.Username,
		CreatedAt:        e.now(),
	}
	if !actor.IsLocal() {
		n.ActorDomain = actor.Domain
	}
	if post != nil {
		n.PostId = &post.Id
		n.PostURI = post.URI
		n.PostPreview = util.Truncate(e.sanitizer.PlainText(post.Content), 100)
	}
	e.supervisor.Go(ctx, fmt.Sprintf("notify %s of %s", recipient.Username, kind), func(ctx context.Context) error {
		return e.db.CreateNotification(n)
	})
}

// unnotify removes the notification a reverted interaction created
func (e *Engine) unnotify(ctx context.Context, recipient, actor *domain.Actor, kind domain.NotificationType, post *domain.Post) {
	if recipient == nil || !recipient.IsLocal() || recipient.Id == actor.Id {
		return
	}
	var postId *uuid.UUID
	if post != nil {
		postId = &post.Id
	}
	accountId := *recipient.UserId
	e.supervisor.Go(ctx, fmt.Sprintf("unnotify %s of %s", recipient.Username, kind), func(ctx context.Context) error {
		return e.db.DeleteNotification(accountId, actor.Id, kind, postId)
	})
}

// postAuthor returns the author of a stored post
func (e *Engine) postAuthor(post *domain.Post) (*domain.Actor, error) {
	err, author := e.db.ReadActorById(post.ActorId)
	if err != nil {
		return nil, fmt.Errorf("author of %s: %w", post.URI, err)
	}
	return author, nil
}

// resolvePost looks up a stored post by origin URI
func (e *Engine) resolvePost(uri string) (*domain.Post, error) {
	err, post := e.db.ReadPostByURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: post %s: %v", ErrNotResolvable, uri, err)
	}
	return post, nil
}
