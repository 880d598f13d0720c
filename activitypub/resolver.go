package activitypub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/deemkeen/stegofed/domain"
)

// actorRefreshInterval is how long a stored remote actor is trusted before it is fetched again
const actorRefreshInterval = 24 * time.Hour

// strategy is one way of producing a value. It returns ErrNotResolvable (or sql.ErrNoRows)
// to hand over to the next strategy, any other error is recorded and the chain continues.
type strategy[T any] struct {
	name    string
	resolve func(ctx context.Context) (*T, error)
}

// firstResolved runs the strategies in order and returns the first value produced
func firstResolved[T any](ctx context.Context, what string, strategies ...strategy[T]) (*T, error) {
	var failures []error
	for _, s := range strategies {
		v, err := s.resolve(ctx)
		if err == nil && v != nil {
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrNotResolvable) && !errors.Is(err, sql.ErrNoRows) {
			failures = append(failures, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return nil, errors.Join(append([]error{fmt.Errorf("%w: %s", ErrNotResolvable, what)}, failures...)...)
}

// Resolver maps an activity's acting actor and referenced actors to stored actor records
type Resolver struct {
	db        Database
	protocol  Protocol
	conf      Config
	sanitizer *Sanitizer
	now       func() time.Time
}

func NewResolver(db Database, protocol Protocol, conf Config, sanitizer *Sanitizer) *Resolver {
	return &Resolver{db: db, protocol: protocol, conf: conf, sanitizer: sanitizer, now: time.Now}
}

// ResolveActor finds the actor performing the activity. Outbound activities are performed by the
// named local user and nothing else. Inbound ones use the embedded descriptor, storage or a fetch.
func (r *Resolver) ResolveActor(ctx context.Context, dir Direction, localUsername string, activity *Activity) (*domain.Actor, error) {
	if dir == Outbound {
		return firstResolved(ctx, "local user "+localUsername, r.localUser(localUsername))
	}
	if activity.Actor == "" {
		return nil, fmt.Errorf("%w: activity %s has no actor", ErrNotResolvable, activity.ID)
	}
	if r.conf.IsLocalURI(activity.Actor) {
		return firstResolved(ctx, activity.Actor, r.stored(activity.Actor, false))
	}
	return firstResolved(ctx, activity.Actor,
		r.descriptor(activity.ActorObject, activity.Actor),
		r.stored(activity.Actor, true),
		r.fetched(activity.Actor),
		r.stored(activity.Actor, false),
	)
}

// ResolveActorByURI finds any actor referenced by an activity. Local URIs are only looked up.
func (r *Resolver) ResolveActorByURI(ctx context.Context, uri string) (*domain.Actor, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty actor reference", ErrNotResolvable)
	}
	if r.conf.IsLocalURI(uri) {
		return firstResolved(ctx, uri, r.stored(uri, false))
	}
	return firstResolved(ctx, uri,
		r.stored(uri, true),
		r.fetched(uri),
		r.stored(uri, false),
	)
}

// Persist stores a remote actor descriptor and returns the stored record
func (r *Resolver) Persist(person *Person) (*domain.Actor, error) {
	actor := r.actorFromPerson(person)
	id, err := r.db.UpsertActor(actor)
	if err != nil {
		return nil, err
	}
	err, stored := r.db.ReadActorById(id)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *Resolver) localUser(username string) strategy[domain.Actor] {
	return strategy[domain.Actor]{name: "local", resolve: func(ctx context.Context) (*domain.Actor, error) {
		if username == "" {
			return nil, ErrNotResolvable
		}
		err, actor := r.db.ReadActorByUsername(username)
		if err != nil {
			return nil, err
		}
		return actor, nil
	}}
}

func (r *Resolver) descriptor(person *Person, uri string) strategy[domain.Actor] {
	return strategy[domain.Actor]{name: "descriptor", resolve: func(ctx context.Context) (*domain.Actor, error) {
		if person == nil || person.ID != uri {
			return nil, ErrNotResolvable
		}
		return r.Persist(person)
	}}
}

// stored looks the actor up in storage. With fresh set, records older than the refresh interval are skipped.
func (r *Resolver) stored(uri string, fresh bool) strategy[domain.Actor] {
	return strategy[domain.Actor]{name: "stored", resolve: func(ctx context.Context) (*domain.Actor, error) {
		err, actor := r.db.ReadActorByURI(uri)
		if err != nil {
			return nil, err
		}
		if fresh && !actor.IsLocal() && r.now().Sub(actor.LastFetchedAt) > actorRefreshInterval {
			return nil, ErrNotResolvable
		}
		return actor, nil
	}}
}

func (r *Resolver) fetched(uri string) strategy[domain.Actor] {
	return strategy[domain.Actor]{name: "fetch", resolve: func(ctx context.Context) (*domain.Actor, error) {
		person, err := r.protocol.FetchActor(ctx, uri)
		if err != nil {
			return nil, err
		}
		return r.Persist(person)
	}}
}

func (r *Resolver) actorFromPerson(person *Person) *domain.Actor {
	actor := &domain.Actor{
		URI:           person.ID,
		Username:      person.PreferredUsername,
		Domain:        hostOf(person.ID),
		DisplayName:   person.Name,
		Summary:       r.sanitizer.Clean(person.Summary),
		AvatarURL:     string(person.Icon.First().URL),
		InboxURI:      person.Inbox,
		PublicKeyPem:  person.PublicKey.PublicKeyPem,
		Kind:          domain.ActorPerson,
		LastFetchedAt: r.now(),
		CreatedAt:     r.now(),
	}
	if actor.Username == "" {
		actor.Username = path.Base(strings.TrimSuffix(person.ID, "/"))
	}
	if person.Endpoints != nil {
		actor.SharedInboxURI = person.Endpoints.SharedInbox
	}
	if person.Type == "Group" {
		actor.Kind = domain.ActorGroup
	}
	return actor
}

func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Host
}
