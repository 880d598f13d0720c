package activitypub

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

// peer is a fake remote server that serves documents and records signed inbox posts
type peer struct {
	mu         sync.Mutex
	server     *httptest.Server
	docs       map[string]string
	status     map[string]int
	received   map[string]int
	pubPem     string
	verifyErrs []error
}

func newPeer(t *testing.T, pubPem string) *peer {
	t.Helper()
	p := &peer{docs: map[string]string{}, status: map[string]int{}, received: map[string]int{}, pubPem: pubPem}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)
	return p
}

func (p *peer) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code, ok := p.status[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		if err := verifyDigest(r, body); err != nil {
			p.verifyErrs = append(p.verifyErrs, err)
		}
		if _, err := VerifyRequest(r, p.pubPem); err != nil {
			p.verifyErrs = append(p.verifyErrs, err)
		}
		p.received[r.URL.Path]++
		w.WriteHeader(http.StatusAccepted)
		return
	}
	doc, ok := p.docs[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/activity+json")
	io.WriteString(w, doc)
}

func (p *peer) url(path string) string {
	return p.server.URL + path
}

func (p *peer) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[path]
}

// stubClient answers every request itself
type stubClient func(req *http.Request) (*http.Response, error)

func (f stubClient) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func statusClient(code int) stubClient {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}, Request: req}, nil
	}
}

func testKeys(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	privateKey, publicKey, err := generateTestKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	pubPem, err := publicKeyToPEM(publicKey)
	if err != nil {
		t.Fatalf("Failed to encode public key: %v", err)
	}
	return privateKey, pubPem
}

func TestFetchActor(t *testing.T) {
	_, pubPem := testKeys(t)
	p := newPeer(t, pubPem)
	p.docs["/users/bob"] = fmt.Sprintf(`{
		"id": %q, "type": "Person", "preferredUsername": "bob", "inbox": %q,
		"endpoints": {"sharedInbox": %q},
		"icon": {"type": "Image", "url": "https://cdn.example/bob.png"},
		"publicKey": {"id": %q, "owner": %q, "publicKeyPem": "PEM"}
	}`, p.url("/users/bob"), p.url("/users/bob/inbox"), p.url("/inbox"), p.url("/users/bob#main-key"), p.url("/users/bob"))
	p.docs["/notes/1"] = fmt.Sprintf(`{"id": %q, "type": "Note"}`, p.url("/notes/1"))
	p.docs["/users/spoof"] = `{"id": "https://elsewhere.example/users/spoof", "type": "Person", "inbox": "https://elsewhere.example/inbox"}`

	proto := NewHTTPProtocol(NewMockDatabase(), testConfig(), nil)

	person, err := proto.FetchActor(context.Background(), p.url("/users/bob"))
	if err != nil {
		t.Fatalf("FetchActor failed: %v", err)
	}
	if person.PreferredUsername != "bob" || person.Endpoints.SharedInbox != p.url("/inbox") {
		t.Errorf("Unexpected actor %+v", person)
	}
	if string(person.Icon.First().URL) != "https://cdn.example/bob.png" {
		t.Errorf("Expected icon url, got '%s'", person.Icon.First().URL)
	}

	if _, err := proto.FetchActor(context.Background(), p.url("/notes/1")); err == nil {
		t.Error("Expected error fetching a non-actor")
	}
	if _, err := proto.FetchActor(context.Background(), p.url("/users/spoof")); err == nil {
		t.Error("Expected error for an actor id on another host")
	}
	if _, err := proto.FetchActor(context.Background(), p.url("/users/nobody")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	p.status["/users/gone"] = http.StatusGone
	if _, err := proto.FetchActor(context.Background(), p.url("/users/gone")); !errors.Is(err, ErrGone) {
		t.Errorf("Expected ErrGone, got %v", err)
	}
}

func TestFetchObject(t *testing.T) {
	p := newPeer(t, "")
	p.docs["/notes/1"] = fmt.Sprintf(`{"id": %q, "type": "Note", "content": "<p>hi</p>", "attributedTo": %q}`, p.url("/notes/1"), p.url("/users/bob"))
	p.docs["/pages/1"] = fmt.Sprintf(`{"id": %q, "type": ["Page"], "name": "Title"}`, p.url("/pages/1"))
	p.docs["/events/1"] = fmt.Sprintf(`{"id": %q, "type": "Event"}`, p.url("/events/1"))
	p.docs["/notes/spoof"] = `{"id": "https://elsewhere.example/notes/1", "type": "Note"}`

	proto := NewHTTPProtocol(NewMockDatabase(), testConfig(), nil)

	obj, err := proto.FetchObject(context.Background(), p.url("/notes/1"))
	if err != nil {
		t.Fatalf("FetchObject failed: %v", err)
	}
	note, ok := obj.(*Note)
	if !ok || note.Content.Content != "<p>hi</p>" {
		t.Errorf("Expected a Note, got %#v", obj)
	}

	obj, err = proto.FetchObject(context.Background(), p.url("/pages/1"))
	if err != nil {
		t.Fatalf("FetchObject failed: %v", err)
	}
	if page, ok := obj.(*Page); !ok || page.Name != "Title" {
		t.Errorf("Expected a Page, got %#v", obj)
	}

	obj, err = proto.FetchObject(context.Background(), p.url("/events/1"))
	if err != nil {
		t.Fatalf("FetchObject failed: %v", err)
	}
	if ref, ok := obj.(Reference); !ok || string(ref) != p.url("/events/1") {
		t.Errorf("Expected an unknown type to decode as a Reference, got %#v", obj)
	}

	if _, err := proto.FetchObject(context.Background(), p.url("/notes/spoof")); err == nil {
		t.Error("Expected error for an object id on another host")
	}
}

func senderFixture(t *testing.T, db *MockDatabase, privateKey *rsa.PrivateKey) (*domain.Account, *domain.Actor) {
	t.Helper()
	acc := &domain.Account{Id: uuid.New(), Username: "alice", WebPrivateKey: privateKeyToPEM(privateKey), CreatedAt: fixedNow}
	actor := NewLocalActor(acc, testConfig())
	db.AddAccount(acc, actor)
	return acc, actor
}

func TestDeliverSignsAndContinuesPastFailures(t *testing.T) {
	privateKey, pubPem := testKeys(t)
	p := newPeer(t, pubPem)
	p.status["/users/broken/inbox"] = http.StatusInternalServerError
	db := NewMockDatabase()
	acc, _ := senderFixture(t, db, privateKey)

	proto := NewHTTPProtocol(db, testConfig(), nil)
	recipients := []Recipient{
		{ID: p.url("/users/broken"), InboxURI: p.url("/users/broken/inbox")},
		{ID: p.url("/users/bob"), InboxURI: p.url("/users/bob/inbox")},
		{ID: p.url("/users/bob"), InboxURI: p.url("/users/bob/inbox")},
	}
	activity := &Activity{ID: "https://local.example/activities/1", Type: "Like", Actor: "https://local.example/users/alice", Object: Reference("https://x/1")}

	err := proto.Deliver(context.Background(), acc, recipients, activity, DeliveryOptions{})

	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected the broken inbox failure reported, got %v", err)
	}
	if n := p.count("/users/bob/inbox"); n != 1 {
		t.Errorf("Expected one delivery to bob despite the failure, got %d", n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.verifyErrs) != 0 {
		t.Errorf("Expected valid signatures, got %v", p.verifyErrs)
	}
}

func TestDeliverToFollowersUsesSharedInbox(t *testing.T) {
	privateKey, pubPem := testKeys(t)
	p := newPeer(t, pubPem)
	db := NewMockDatabase()
	acc, alice := senderFixture(t, db, privateKey)
	for _, name := range []string{"bob", "carol"} {
		follower := &domain.Actor{
			URI:            p.url("/users/" + name),
			Username:       name,
			InboxURI:       p.url("/users/" + name + "/inbox"),
			SharedInboxURI: p.url("/inbox"),
		}
		db.AddActor(follower)
		db.UpsertFollow(&domain.Follow{FollowerId: follower.Id, FollowingId: alice.Id, Status: domain.FollowAccepted})
	}
	pending := &domain.Actor{URI: p.url("/users/dave"), Username: "dave", InboxURI: p.url("/users/dave/inbox")}
	db.AddActor(pending)
	db.UpsertFollow(&domain.Follow{FollowerId: pending.Id, FollowingId: alice.Id, Status: domain.FollowPending})
	_, local := addLocalUser(t, db, "erin")
	db.UpsertFollow(&domain.Follow{FollowerId: local.Id, FollowingId: alice.Id, Status: domain.FollowAccepted})

	proto := NewHTTPProtocol(db, testConfig(), nil)
	activity := &Activity{ID: "https://local.example/activities/2", Type: "Create", Actor: alice.URI, Object: Reference("https://local.example/posts/1")}

	if err := proto.Deliver(context.Background(), acc, []Recipient{Followers()}, activity, DeliveryOptions{PreferSharedInbox: true}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if n := p.count("/inbox"); n != 1 {
		t.Errorf("Expected one shared inbox delivery, got %d", n)
	}
	if n := p.count("/users/dave/inbox"); n != 0 {
		t.Errorf("Expected no delivery to a pending follower, got %d", n)
	}
}

func TestDeliverWithoutPublicAddress(t *testing.T) {
	conf := testConfig()
	conf.Domain = "localhost:8080"
	proto := NewHTTPProtocol(NewMockDatabase(), conf, nil)

	err := proto.Deliver(context.Background(), &domain.Account{Username: "alice"}, []Recipient{{InboxURI: "https://remote.example/inbox"}}, &Activity{Type: "Like"}, DeliveryOptions{})

	if !errors.Is(err, ErrNoPublicAddress) {
		t.Errorf("Expected ErrNoPublicAddress, got %v", err)
	}
}

func signedInbound(t *testing.T, privateKey *rsa.PrivateKey, actorURI, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", "https://local.example/users/alice/inbox", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", "local.example")
	if err := SignRequest(req, privateKey, actorURI+"#main-key", []byte(body)); err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}
	return req
}

func TestParseInboundWithStoredKey(t *testing.T) {
	privateKey, pubPem := testKeys(t)
	db := NewMockDatabase()
	bob := addRemoteActor(t, db, "bob")
	bob.PublicKeyPem = pubPem
	body := fmt.Sprintf(`{"id": "%s/activities/1", "type": "Like", "actor": %q, "object": "https://local.example/posts/1"}`, bob.URI, bob.URI)

	proto := NewHTTPProtocol(db, testConfig(), nil)
	activity, err := proto.ParseInbound(signedInbound(t, privateKey, bob.URI, body), []byte(body))

	if err != nil {
		t.Fatalf("ParseInbound failed: %v", err)
	}
	if activity.Type != "Like" || ObjectID(activity.Object) != "https://local.example/posts/1" {
		t.Errorf("Unexpected activity %+v", activity)
	}
}

func TestParseInboundRejects(t *testing.T) {
	privateKey, pubPem := testKeys(t)
	otherKey, _ := testKeys(t)
	db := NewMockDatabase()
	bob := addRemoteActor(t, db, "bob")
	bob.PublicKeyPem = pubPem
	body := fmt.Sprintf(`{"id": "%s/activities/1", "type": "Like", "actor": %q, "object": "https://local.example/posts/1"}`, bob.URI, bob.URI)
	proto := NewHTTPProtocol(db, testConfig(), statusClient(http.StatusInternalServerError))

	t.Run("malformed", func(t *testing.T) {
		_, err := proto.ParseInbound(signedInbound(t, privateKey, bob.URI, "not json"), []byte("not json"))
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Expected ErrMalformed, got %v", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedInbound(t, privateKey, bob.URI, body)
		tampered := strings.Replace(body, "Like", "Announce", 1)
		_, err := proto.ParseInbound(req, []byte(tampered))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("key of another actor", func(t *testing.T) {
		req := signedInbound(t, privateKey, "https://remote.example/users/mallory", body)
		_, err := proto.ParseInbound(req, []byte(body))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		req := signedInbound(t, otherKey, bob.URI, body)
		_, err := proto.ParseInbound(req, []byte(body))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("Expected ErrInvalidSignature, got %v", err)
		}
	})
}

func TestParseInboundRefetchesRotatedKey(t *testing.T) {
	privateKey, pubPem := testKeys(t)
	_, stalePem := testKeys(t)
	p := newPeer(t, pubPem)
	actorURI := p.url("/users/bob")
	p.docs["/users/bob"] = fmt.Sprintf(`{"id": %q, "type": "Person", "preferredUsername": "bob", "inbox": %q,
		"publicKey": {"id": %q, "owner": %q, "publicKeyPem": %q}}`,
		actorURI, actorURI+"/inbox", actorURI+"#main-key", actorURI, pubPem)
	db := NewMockDatabase()
	db.AddActor(&domain.Actor{URI: actorURI, Username: "bob", InboxURI: actorURI + "/inbox", PublicKeyPem: stalePem})
	body := fmt.Sprintf(`{"id": "%s/activities/1", "type": "Follow", "actor": %q, "object": "https://local.example/users/alice"}`, actorURI, actorURI)

	proto := NewHTTPProtocol(db, testConfig(), nil)
	activity, err := proto.ParseInbound(signedInbound(t, privateKey, actorURI, body), []byte(body))

	if err != nil {
		t.Fatalf("ParseInbound failed: %v", err)
	}
	if activity.ActorObject == nil || activity.ActorObject.PublicKey.PublicKeyPem != pubPem {
		t.Error("Expected the fetched descriptor attached to the activity")
	}
}

func TestParseInboundFromGoneActor(t *testing.T) {
	privateKey, _ := testKeys(t)
	p := newPeer(t, "")
	p.status["/users/bob"] = http.StatusGone
	actorURI := p.url("/users/bob")
	body := fmt.Sprintf(`{"id": "%s/activities/1", "type": "Delete", "actor": %q, "object": %q}`, actorURI, actorURI, actorURI)

	proto := NewHTTPProtocol(NewMockDatabase(), testConfig(), nil)
	_, err := proto.ParseInbound(signedInbound(t, privateKey, actorURI, body), []byte(body))

	if !errors.Is(err, ErrGone) {
		t.Errorf("Expected ErrGone, got %v", err)
	}
}
