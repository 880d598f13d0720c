package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActorKind distinguishes person-like from group-like actors
type ActorKind string

const (
	ActorPerson ActorKind = "Person"
	ActorGroup  ActorKind = "Group"
)

// Actor is a federated identity, local or remote, keyed by its origin URI
type Actor struct {
	Id             uuid.UUID
	URI            string // origin URI, immutable identity key
	Username       string // preferredUsername
	Domain         string
	DisplayName    string
	Summary        string
	AvatarURL      string
	InboxURI       string
	SharedInboxURI string
	PublicKeyPem   string
	UserId         *uuid.UUID // set only for actors owned by this server
	Kind           ActorKind
	LastFetchedAt  time.Time
	CreatedAt      time.Time
}

// IsLocal reports whether the actor belongs to a local account
func (a *Actor) IsLocal() bool {
	return a.UserId != nil
}

// IsGroup reports whether the actor is a community/group
func (a *Actor) IsGroup() bool {
	return a.Kind == ActorGroup
}

// Handle returns @user for local actors and @user@domain for remote ones
func (a *Actor) Handle() string {
	if a.IsLocal() || a.Domain == "" {
		return "@" + a.Username
	}
	return "@" + a.Username + "@" + a.Domain
}

// DeliveryInbox returns the shared inbox when preferred and known, the personal inbox otherwise
func (a *Actor) DeliveryInbox(preferShared bool) string {
	if preferShared && a.SharedInboxURI != "" {
		return a.SharedInboxURI
	}
	return a.InboxURI
}
