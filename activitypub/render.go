package activitypub

import (
	"time"

	"github.com/deemkeen/stegofed/domain"
)

// NewLocalActor builds the actor record of a freshly registered local account
func NewLocalActor(acc *domain.Account, conf Config) *domain.Actor {
	now := time.Now()
	return &domain.Actor{
		URI:            conf.ActorURI(acc.Username),
		Username:       acc.Username,
		Domain:         conf.Domain,
		DisplayName:    acc.DisplayName,
		Summary:        acc.Summary,
		InboxURI:       conf.InboxURI(acc.Username),
		SharedInboxURI: conf.SharedInboxURI(),
		PublicKeyPem:   acc.WebPublicKey,
		UserId:         &acc.Id,
		Kind:           domain.ActorPerson,
		LastFetchedAt:  now,
		CreatedAt:      now,
	}
}

// RenderActor returns the public actor document of a local actor
func RenderActor(actor *domain.Actor, conf Config) *Person {
	name := actor.DisplayName
	if name == "" {
		name = actor.Username
	}
	kind := string(actor.Kind)
	if kind == "" {
		kind = "Person"
	}
	person := &Person{
		Context:           []string{ContextActivityStreams, ContextSecurity},
		ID:                actor.URI,
		Type:              kind,
		PreferredUsername: actor.Username,
		Name:              name,
		Summary:           actor.Summary,
		URL:               LinkValue(actor.URI),
		Inbox:             actor.InboxURI,
		Outbox:            actor.URI + "/outbox",
		Followers:         actor.URI + "/followers",
		Following:         actor.URI + "/following",
		Endpoints:         &Endpoints{SharedInbox: conf.SharedInboxURI()},
		PublicKey: PublicKey{
			ID:           actor.URI + "#main-key",
			Owner:        actor.URI,
			PublicKeyPem: actor.PublicKeyPem,
		},
		Published: actor.CreatedAt.UTC().Format(time.RFC3339),
	}
	if actor.AvatarURL != "" {
		person.Icon = OneOrMany[Image]{{Type: "Image", URL: LinkValue(actor.AvatarURL)}}
	}
	return person
}

// RenderPost returns the Note document of a stored post
func RenderPost(post *domain.Post, author *domain.Actor, parentURI string, hashtags []string, media []domain.Attachment, conf Config) *Note {
	note := &Note{Content: Content{
		Context:      ContextActivityStreams,
		ID:           post.URI,
		Type:         "Note",
		AttributedTo: author.URI,
		Content:      post.Content,
		URL:          LinkValue(post.URL),
		InReplyTo:    LinkValue(parentURI),
		Audience:     StringList(post.Audience),
		Sensitive:    post.Sensitive,
		To:           StringList{Public},
		CC:           append(StringList{author.URI + "/followers"}, post.Audience...),
		Published:    post.CreatedAt.UTC().Format(time.RFC3339),
	}}
	if post.EditedAt != nil {
		note.Updated = post.EditedAt.UTC().Format(time.RFC3339)
	}
	for _, tag := range hashtags {
		note.Tag = append(note.Tag, Tag{Type: "Hashtag", Name: "#" + tag, Href: "https://" + conf.Domain + "/tags/" + tag})
	}
	for _, m := range media {
		note.Attachment = append(note.Attachment, Attachment{Type: "Document", MediaType: m.MediaType, URL: LinkValue(m.URL), Name: m.Name})
	}
	return note
}
