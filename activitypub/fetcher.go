package activitypub

import (
	"context"
	"errors"
	"fmt"

	"github.com/deemkeen/stegofed/domain"
)

// Fetcher resolves a post by origin URI: storage first, then a remote fetch that is
// stored through the same pipeline as an inbound Create.
type Fetcher struct {
	db       Database
	protocol Protocol
	conf     Config
	resolver *Resolver
	store    func(ctx context.Context, author *domain.Actor, obj Object, depth int) (*domain.Post, error)
}

// ResolvePost returns the stored post for uri, fetching it when missing. depth counts
// the replies already followed up the thread and stops at MaxReplyDepth.
func (f *Fetcher) ResolvePost(ctx context.Context, uri string, depth int) (*domain.Post, error) {
	return firstResolved(ctx, uri, f.storedPost(uri), f.fetchedPost(uri, depth))
}

func (f *Fetcher) storedPost(uri string) strategy[domain.Post] {
	return strategy[domain.Post]{name: "stored", resolve: func(ctx context.Context) (*domain.Post, error) {
		err, post := f.db.ReadPostByURI(uri)
		if err != nil {
			return nil, err
		}
		return post, nil
	}}
}

func (f *Fetcher) fetchedPost(uri string, depth int) strategy[domain.Post] {
	return strategy[domain.Post]{name: "fetch", resolve: func(ctx context.Context) (*domain.Post, error) {
		if f.conf.IsLocalURI(uri) {
			return nil, ErrNotResolvable
		}
		if depth >= f.conf.MaxReplyDepth {
			return nil, fmt.Errorf("%w: reply depth %d reached", ErrNotResolvable, depth)
		}
		obj, err := f.protocol.FetchObject(ctx, uri)
		if err != nil {
			return nil, err
		}
		content, _, ok := creatable(obj)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a %s", ErrNotResolvable, uri, ObjectType(obj))
		}
		author, err := f.resolver.ResolveActorByURI(ctx, content.AttributedTo)
		if err != nil {
			return nil, err
		}
		post, err := f.store(ctx, author, obj, depth+1)
		if errors.Is(err, domain.ErrDuplicate) {
			return post, nil
		}
		return post, err
	}}
}

// creatable returns the content of a Note, Article or Page and whether it carries a title
func creatable(obj Object) (*Content, bool, bool) {
	switch o := obj.(type) {
	case *Note:
		return &o.Content, false, true
	case *Article:
		return &o.Content, true, true
	case *Page:
		return &o.Content, true, true
	default:
		return nil, false, false
	}
}
