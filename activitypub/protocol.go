package activitypub

import (
	"context"
	"net/http"

	"github.com/deemkeen/stegofed/domain"
)

// Protocol is the federation wire layer the engine calls into:
// fetching remote documents, delivering signed activities and verifying inbound ones.
type Protocol interface {
	FetchActor(ctx context.Context, uri string) (*Person, error)
	FetchObject(ctx context.Context, uri string) (Object, error)
	Deliver(ctx context.Context, sender *domain.Account, recipients []Recipient, activity *Activity, opts DeliveryOptions) error
	ParseInbound(r *http.Request, body []byte) (*Activity, error)
}

// Recipient is either the sender's followers collection or one explicit inbox
type Recipient struct {
	ID       string
	InboxURI string

	followers bool
}

// Followers addresses every accepted follower of the sender
func Followers() Recipient {
	return Recipient{followers: true}
}

// ActorRecipient addresses a single actor's personal inbox
func ActorRecipient(actor *domain.Actor) Recipient {
	return Recipient{ID: actor.URI, InboxURI: actor.InboxURI}
}

func (r Recipient) IsFollowers() bool {
	return r.followers
}

func (r Recipient) String() string {
	if r.followers {
		return "followers"
	}
	return r.InboxURI
}

type DeliveryOptions struct {
	// PreferSharedInbox collapses followers on one server into a single shared-inbox delivery
	PreferSharedInbox bool
}
