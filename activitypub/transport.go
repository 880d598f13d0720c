package activitypub

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"golang.org/x/sync/errgroup"
)

const (
	maxDocumentSize = 1 << 20
	acceptHeader    = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// HTTPProtocol implements Protocol over signed HTTP requests
type HTTPProtocol struct {
	db     Database
	conf   Config
	client HTTPClient
}

// NewHTTPProtocol creates the HTTP transport. A nil client uses one with the configured delivery timeout.
func NewHTTPProtocol(db Database, conf Config, client HTTPClient) *HTTPProtocol {
	conf = conf.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: conf.DeliveryTimeout}
	}
	return &HTTPProtocol{db: db, conf: conf, client: client}
}

func (p *HTTPProtocol) get(ctx context.Context, uri string) ([]byte, error) {
	return p.getAccept(ctx, uri, acceptHeader)
}

func (p *HTTPProtocol) getAccept(ctx context.Context, uri, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.conf.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", p.conf.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrGone, uri)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, uri)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s failed with status: %d", uri, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
}

// FetchActor retrieves and validates a remote actor document
func (p *HTTPProtocol) FetchActor(ctx context.Context, uri string) (*Person, error) {
	body, err := p.get(ctx, uri)
	if err != nil {
		return nil, err
	}

	var person Person
	if err := json.Unmarshal(body, &person); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}
	if !actorTypes[person.Type] {
		return nil, fmt.Errorf("%s is a %q, not an actor", uri, person.Type)
	}
	if person.ID == "" || person.Inbox == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}
	if !sameHost(uri, person.ID) {
		return nil, fmt.Errorf("actor id %s does not match origin %s", person.ID, uri)
	}
	return &person, nil
}

// FetchObject retrieves a remote object and decodes it into an Object variant
func (p *HTTPProtocol) FetchObject(ctx context.Context, uri string) (Object, error) {
	body, err := p.get(ctx, uri)
	if err != nil {
		return nil, err
	}

	obj, err := DecodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse object JSON: %w", err)
	}
	if id := ObjectID(obj); id == "" || !sameHost(uri, id) {
		return nil, fmt.Errorf("object id %q does not match origin %s", id, uri)
	}
	return obj, nil
}

// Deliver signs the activity as sender and POSTs it to every recipient inbox concurrently.
// One inbox failing never stops the others; all failures are returned joined.
func (p *HTTPProtocol) Deliver(ctx context.Context, sender *domain.Account, recipients []Recipient, activity *Activity, opts DeliveryOptions) error {
	if !p.conf.PubliclyReachable() {
		return ErrNoPublicAddress
	}

	inboxes, err := p.expand(sender, recipients, opts)
	if err != nil {
		return err
	}
	if len(inboxes) == 0 {
		return nil
	}

	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	privateKey, err := ParsePrivateKey(sender.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	keyId := p.conf.KeyID(sender.Username)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(p.conf.MaxConcurrentDeliveries)
	for _, inbox := range inboxes {
		g.Go(func() error {
			if err := p.post(ctx, inbox, privateKey, keyId, body); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", inbox, err))
				mu.Unlock()
				return nil
			}
			log.Printf("Outbox: Sent %s to %s", activity.Type, inbox)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// expand resolves recipients into a deduplicated list of remote inbox URIs
func (p *HTTPProtocol) expand(sender *domain.Account, recipients []Recipient, opts DeliveryOptions) ([]string, error) {
	var inboxes []string
	seen := make(map[string]bool)
	add := func(inbox string) {
		if inbox == "" || seen[inbox] || p.conf.IsLocalURI(inbox) {
			return
		}
		seen[inbox] = true
		inboxes = append(inboxes, inbox)
	}

	for _, r := range recipients {
		if !r.IsFollowers() {
			add(r.InboxURI)
			continue
		}
		err, actor := p.db.ReadActorByAccountId(sender.Id)
		if err != nil {
			return nil, fmt.Errorf("sender actor for %s: %w", sender.Username, err)
		}
		err, followers := p.db.ReadFollowerActors(actor.Id)
		if err != nil {
			return nil, fmt.Errorf("followers of %s: %w", sender.Username, err)
		}
		for _, follower := range *followers {
			if follower.IsLocal() {
				continue
			}
			add(follower.DeliveryInbox(opts.PreferSharedInbox))
		}
	}
	return inboxes, nil
}

func (p *HTTPProtocol) post(ctx context.Context, inbox string, privateKey *rsa.PrivateKey, keyId string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, p.conf.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", p.conf.UserAgent)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)

	if err := SignRequest(req, privateKey, keyId, body); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

// ParseInbound verifies the HTTP signature of an inbox delivery and parses its activity.
// The signing key must belong to the activity's actor.
func (p *HTTPProtocol) ParseInbound(r *http.Request, body []byte) (*Activity, error) {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if activity.Type == "" || activity.Actor == "" {
		return nil, fmt.Errorf("%w: missing type or actor", ErrMalformed)
	}

	if err := verifyDigest(r, body); err != nil {
		return nil, err
	}

	keyId, err := SignatureKeyID(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	owner := strings.Split(keyId, "#")[0]
	if owner != activity.Actor {
		return nil, fmt.Errorf("%w: key %s does not belong to %s", ErrInvalidSignature, keyId, activity.Actor)
	}

	// Stored key first, a fresh fetch covers key rotation
	if err, stored := p.db.ReadActorByURI(owner); err == nil && stored.PublicKeyPem != "" {
		if _, err := VerifyRequest(r, stored.PublicKeyPem); err == nil {
			return &activity, nil
		}
	}

	person, err := p.FetchActor(r.Context(), owner)
	if err != nil {
		if errors.Is(err, ErrGone) || errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGone, owner)
		}
		return nil, fmt.Errorf("%w: fetching key: %v", ErrInvalidSignature, err)
	}
	if _, err := VerifyRequest(r, person.PublicKey.PublicKeyPem); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if activity.ActorObject == nil {
		activity.ActorObject = person
	}
	return &activity, nil
}

// verifyDigest requires a POST to carry a signed SHA-256 Digest of its body
func verifyDigest(r *http.Request, body []byte) error {
	if r.Method != http.MethodPost {
		return nil
	}
	digest := r.Header.Get("Digest")
	if digest == "" {
		return fmt.Errorf("%w: missing digest", ErrInvalidSignature)
	}
	if !slices.Contains(SignedHeaders(r), "digest") {
		return fmt.Errorf("%w: digest is not covered by the signature", ErrInvalidSignature)
	}
	for _, part := range strings.Split(digest, ",") {
		algo, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(algo, "SHA-256") {
			continue
		}
		sum := sha256.Sum256(body)
		if value != base64.StdEncoding.EncodeToString(sum[:]) {
			return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
		}
		return nil
	}
	return fmt.Errorf("%w: no SHA-256 digest", ErrInvalidSignature)
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
