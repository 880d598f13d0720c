package activitypub

import (
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Rendered views of an actor that go stale when the actor posts, deletes or changes
const (
	ViewActor = "actor"
	ViewFeed  = "feed"
)

var profileViews = []string{ViewActor, ViewFeed}

type profileKey struct {
	ActorId uuid.UUID
	View    string
}

// ProfileCache keeps rendered actor documents and feeds
type ProfileCache struct {
	cache *lru.Cache[profileKey, []byte]
}

func NewProfileCache(size int) *ProfileCache {
	if size <= 0 {
		size = 512
	}
	c, _ := lru.New[profileKey, []byte](size * len(profileViews))
	return &ProfileCache{cache: c}
}

// GetOrRender returns the cached view or renders and stores it
func (c *ProfileCache) GetOrRender(actorId uuid.UUID, view string, render func() ([]byte, error)) ([]byte, error) {
	key := profileKey{ActorId: actorId, View: view}
	if doc, ok := c.cache.Get(key); ok {
		profileCacheLookups.WithLabelValues("hit").Inc()
		return doc, nil
	}
	profileCacheLookups.WithLabelValues("miss").Inc()

	doc, err := render()
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, doc)
	return doc, nil
}

func (c *ProfileCache) Contains(actorId uuid.UUID, view string) bool {
	return c.cache.Contains(profileKey{ActorId: actorId, View: view})
}

// Invalidate drops every cached view of the actor
func (c *ProfileCache) Invalidate(actorId uuid.UUID) {
	for _, view := range profileViews {
		c.cache.Remove(profileKey{ActorId: actorId, View: view})
	}
}
