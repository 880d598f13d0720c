package web

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/deemkeen/stegofed/activitypub"
	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const activityJSON = "application/activity+json; charset=utf-8"

// Store is the read side the public HTTP surface needs
type Store interface {
	ReadActorByUsername(username string) (error, *domain.Actor)
	ReadActorById(id uuid.UUID) (error, *domain.Actor)
	ReadPostById(id uuid.UUID) (error, *domain.Post)
	ReadPostsByActorId(actorId uuid.UUID, limit int) (error, *[]domain.Post)
	ReadHashtagsByPostId(postId uuid.UUID) (error, []string)
	ReadAttachmentsByPostId(postId uuid.UUID) (error, []domain.Attachment)
	ReadFollowerActors(actorId uuid.UUID) (error, *[]domain.Actor)
	ReadFollowingActors(actorId uuid.UUID) (error, *[]domain.Actor)
	CountAccounts() (int, error)
	CountLocalPosts() (int, error)
}

// GetActor returns the actor document of a local user, served from the profile cache
func GetActor(store Store, cache *activitypub.ProfileCache, conf activitypub.Config, username string) (error, []byte) {
	err, actor := store.ReadActorByUsername(username)
	if err != nil {
		return err, nil
	}
	doc, err := cache.GetOrRender(actor.Id, activitypub.ViewActor, func() ([]byte, error) {
		return json.Marshal(activitypub.RenderActor(actor, conf))
	})
	return err, doc
}

// GetPostObject returns the Note document of a post authored on this server
func GetPostObject(store Store, conf activitypub.Config, postId uuid.UUID) (error, []byte) {
	err, post := store.ReadPostById(postId)
	if err != nil {
		return err, nil
	}
	err, author := store.ReadActorById(post.ActorId)
	if err != nil {
		return err, nil
	}
	if !author.IsLocal() {
		return fmt.Errorf("post %s is not local", postId), nil
	}

	var parentURI string
	if post.ParentId != nil {
		if err, parent := store.ReadPostById(*post.ParentId); err == nil {
			parentURI = parent.URI
		}
	}
	err, hashtags := store.ReadHashtagsByPostId(post.Id)
	if err != nil {
		log.Printf("Failed to read hashtags of %s: %v", post.Id, err)
	}
	err, media := store.ReadAttachmentsByPostId(post.Id)
	if err != nil {
		log.Printf("Failed to read attachments of %s: %v", post.Id, err)
	}

	doc, err := json.Marshal(activitypub.RenderPost(post, author, parentURI, hashtags, media, conf))
	return err, doc
}

type orderedCollection struct {
	Context      string   `json:"@context"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	TotalItems   int      `json:"totalItems"`
	First        string   `json:"first,omitempty"`
	PartOf       string   `json:"partOf,omitempty"`
	OrderedItems []string `json:"orderedItems,omitempty"`
}

// GetCollection returns the followers or following collection of a local user.
// Without a page only the summary with a link to the first page is returned.
func GetCollection(store Store, conf activitypub.Config, username, kind string, paged bool) (error, []byte) {
	err, actor := store.ReadActorByUsername(username)
	if err != nil {
		return err, nil
	}

	var actors *[]domain.Actor
	switch kind {
	case "followers":
		err, actors = store.ReadFollowerActors(actor.Id)
	case "following":
		err, actors = store.ReadFollowingActors(actor.Id)
	default:
		return fmt.Errorf("unknown collection %q", kind), nil
	}
	if err != nil {
		return err, nil
	}

	uris := []string{}
	if actors != nil {
		for _, a := range *actors {
			uris = append(uris, a.URI)
		}
	}

	collectionURI := actor.URI + "/" + kind
	collection := orderedCollection{
		Context:    activitypub.ContextActivityStreams,
		ID:         collectionURI,
		Type:       "OrderedCollection",
		TotalItems: len(uris),
		First:      collectionURI + "?page=1",
	}
	if paged {
		collection = orderedCollection{
			Context:      activitypub.ContextActivityStreams,
			ID:           collectionURI + "?page=1",
			Type:         "OrderedCollectionPage",
			TotalItems:   len(uris),
			PartOf:       collectionURI,
			OrderedItems: uris,
		}
	}
	doc, err := json.Marshal(collection)
	return err, doc
}

type webFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

type webFinger struct {
	Subject string          `json:"subject"`
	Links   []webFingerLink `json:"links"`
}

// GetWebfinger resolves acct:user@domain to the actor URI
func GetWebfinger(store Store, conf activitypub.Config, username string) (error, []byte) {
	err, actor := store.ReadActorByUsername(username)
	if err != nil {
		return err, nil
	}
	doc, err := json.Marshal(webFinger{
		Subject: fmt.Sprintf("acct:%s@%s", actor.Username, conf.Domain),
		Links:   []webFingerLink{{Rel: "self", Type: "application/activity+json", Href: actor.URI}},
	})
	return err, doc
}
