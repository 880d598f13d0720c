package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	testDomain   = "local.example"
	remoteDomain = "remote.example"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type delivery struct {
	Sender     string
	Recipients []Recipient
	Activity   *Activity
	Opts       DeliveryOptions
}

// mockProtocol serves canned remote documents and records deliveries
type mockProtocol struct {
	mu         sync.Mutex
	actors     map[string]*Person
	objects    map[string]Object
	deliveries []delivery
	failInbox  map[string]bool
	fetches    int

	inbound    *Activity
	inboundErr error
}

func newMockProtocol() *mockProtocol {
	return &mockProtocol{
		actors:    make(map[string]*Person),
		objects:   make(map[string]Object),
		failInbox: make(map[string]bool),
	}
}

func (m *mockProtocol) FetchActor(ctx context.Context, uri string) (*Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	p, ok := m.actors[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, uri)
	}
	return p, nil
}

func (m *mockProtocol) FetchObject(ctx context.Context, uri string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	obj, ok := m.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, uri)
	}
	return obj, nil
}

func (m *mockProtocol) Deliver(ctx context.Context, sender *domain.Account, recipients []Recipient, activity *Activity, opts DeliveryOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, delivery{Sender: sender.Username, Recipients: recipients, Activity: activity, Opts: opts})
	for _, r := range recipients {
		if m.failInbox[r.String()] {
			return errors.New("connection refused")
		}
	}
	return nil
}

func (m *mockProtocol) ParseInbound(r *http.Request, body []byte) (*Activity, error) {
	return m.inbound, m.inboundErr
}

func (m *mockProtocol) Deliveries() []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery(nil), m.deliveries...)
}

// deliveriesTo returns the deliveries addressed to the given inbox, or "followers"
func (m *mockProtocol) deliveriesTo(target string) []delivery {
	var out []delivery
	for _, d := range m.Deliveries() {
		for _, r := range d.Recipients {
			if r.String() == target {
				out = append(out, d)
			}
		}
	}
	return out
}

func testConfig() Config {
	return Config{Domain: testDomain, MaxContentLength: 100, MaxReplyDepth: 3, MaxConcurrentDeliveries: 4}
}

func newTestEngine(t *testing.T) (*Engine, *MockDatabase, *mockProtocol) {
	return newTestEngineWithConfig(t, testConfig())
}

func newTestEngineWithConfig(t *testing.T, conf Config) (*Engine, *MockDatabase, *mockProtocol) {
	t.Helper()
	db := NewMockDatabase()
	proto := newMockProtocol()
	e := NewEngine(db, proto, conf, WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(e.Wait)
	return e, db, proto
}

func addLocalUser(t *testing.T, db *MockDatabase, username string) (*domain.Account, *domain.Actor) {
	t.Helper()
	acc := &domain.Account{Id: uuid.New(), Username: username, CreatedAt: fixedNow}
	actor := NewLocalActor(acc, testConfig())
	db.AddAccount(acc, actor)
	return acc, actor
}

func addRemoteActor(t *testing.T, db *MockDatabase, username string) *domain.Actor {
	t.Helper()
	actor := &domain.Actor{
		URI:            "https://" + remoteDomain + "/users/" + username,
		Username:       username,
		Domain:         remoteDomain,
		InboxURI:       "https://" + remoteDomain + "/users/" + username + "/inbox",
		SharedInboxURI: "https://" + remoteDomain + "/inbox",
		Kind:           domain.ActorPerson,
		LastFetchedAt:  fixedNow,
		CreatedAt:      fixedNow,
	}
	db.AddActor(actor)
	return actor
}

func remotePerson(username string) *Person {
	uri := "https://" + remoteDomain + "/users/" + username
	return &Person{
		ID:                uri,
		Type:              "Person",
		PreferredUsername: username,
		Name:              username + " remote",
		Inbox:             uri + "/inbox",
		Endpoints:         &Endpoints{SharedInbox: "https://" + remoteDomain + "/inbox"},
		PublicKey:         PublicKey{ID: uri + "#main-key", Owner: uri, PublicKeyPem: "PEM"},
	}
}

func addPost(db *MockDatabase, author *domain.Actor, uri string) *domain.Post {
	post := &domain.Post{Id: uuid.New(), URI: uri, ActorId: author.Id, Content: "<p>hello</p>", CreatedAt: fixedNow.Add(-3 * time.Hour)}
	db.AddPost(post)
	return post
}

func remoteNote(author *domain.Actor, id, content string) *Note {
	return &Note{Content: Content{
		ID:           id,
		Type:         "Note",
		AttributedTo: author.URI,
		Content:      content,
		To:           StringList{Public},
	}}
}

func activityOf(kind string, actor *domain.Actor, obj Object) *Activity {
	return &Activity{
		ID:     actor.URI + "/activities/" + uuid.NewString(),
		Type:   kind,
		Actor:  actor.URI,
		Object: obj,
	}
}
