package activitypub

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/deemkeen/stegofed/domain"
)

// panicDB panics on post lookups
type panicDB struct {
	*MockDatabase
}

func (p panicDB) ReadPostByURI(uri string) (error, *domain.Post) {
	panic("post table exploded")
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	db := NewMockDatabase()
	e := NewEngine(panicDB{db}, newMockProtocol(), testConfig())
	t.Cleanup(e.Wait)
	bob := addRemoteActor(t, db, "bob")

	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Like", bob, Reference("https://local.example/posts/1")), "")

	if outcome != Failed {
		t.Errorf("Expected Failed, got %s", outcome)
	}
}

func TestDispatchUnsupportedType(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")

	for _, kind := range []string{"Move", "Block", "Flag", ""} {
		if outcome := e.Dispatch(context.Background(), Inbound, activityOf(kind, bob, Reference("x")), ""); outcome != Unsupported {
			t.Errorf("Expected Unsupported for %q, got %s", kind, outcome)
		}
	}
}

func TestDispatchNilActivity(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if outcome := e.Dispatch(context.Background(), Inbound, nil, ""); outcome != Ignored {
		t.Errorf("Expected Ignored, got %s", outcome)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, Applied},
		{fmt.Errorf("post: %w", domain.ErrDuplicate), Duplicate},
		{fmt.Errorf("%w: too long", ErrPolicy), Rejected},
		{errors.Join(fmt.Errorf("%w: x", ErrNotResolvable), errors.New("timeout")), Unresolvable},
		{fmt.Errorf("%w: self follow", errIgnored), Ignored},
		{fmt.Errorf("%w: Move", errUnsupported), Unsupported},
		{errors.New("disk full"), Failed},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("Expected %s for %v, got %s", tt.want, tt.err, got)
		}
	}
}

func TestOutcomeStrings(t *testing.T) {
	want := map[Outcome]string{
		Applied:      "applied",
		Duplicate:    "duplicate",
		Ignored:      "ignored",
		Unresolvable: "unresolvable",
		Rejected:     "rejected",
		Unsupported:  "unsupported",
		Failed:       "failed",
		Outcome(99):  "unknown",
	}
	for outcome, s := range want {
		if outcome.String() != s {
			t.Errorf("Expected '%s', got '%s'", s, outcome.String())
		}
	}
	if Inbound.String() != "inbound" || Outbound.String() != "outbound" {
		t.Errorf("Unexpected direction names %s, %s", Inbound, Outbound)
	}
}

func TestUpdateRemoteActorProfile(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")
	e.Cache().GetOrRender(bob.Id, ViewActor, func() ([]byte, error) { return []byte("{}"), nil })

	person := remotePerson("bob")
	person.Name = "Bob Updated"
	person.Summary = `<p>hi</p><script>alert(1)</script>`

	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Update", bob, person), "")

	if outcome != Applied {
		t.Fatalf("Expected Applied, got %s", outcome)
	}
	_, stored := db.ReadActorByURI(bob.URI)
	if stored.DisplayName != "Bob Updated" {
		t.Errorf("Expected display name updated, got '%s'", stored.DisplayName)
	}
	if stored.Summary != "<p>hi</p>" {
		t.Errorf("Expected sanitized summary, got '%s'", stored.Summary)
	}
	if e.Cache().Contains(bob.Id, ViewActor) {
		t.Error("Expected cached actor view invalidated")
	}
}

func TestUpdateOfAnotherActorRejected(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")
	addRemoteActor(t, db, "mallory")

	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Update", bob, remotePerson("mallory")), "")

	if outcome != Rejected {
		t.Errorf("Expected Rejected, got %s", outcome)
	}
}

func TestUpdatePostContent(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")
	post := addPost(db, bob, "https://remote.example/notes/1")

	edit := remoteNote(bob, post.URI, `<p>edited</p><script>alert(1)</script>`)
	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Update", bob, edit), "")

	if outcome != Applied {
		t.Fatalf("Expected Applied, got %s", outcome)
	}
	_, stored := db.ReadPostById(post.Id)
	if stored.Content != "<p>edited</p>" {
		t.Errorf("Expected sanitized edit, got '%s'", stored.Content)
	}
	if stored.EditedAt == nil || !stored.EditedAt.Equal(fixedNow) {
		t.Errorf("Expected edit time %v, got %v", fixedNow, stored.EditedAt)
	}
}

func TestUpdatePostByOtherActorRejected(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")
	mallory := addRemoteActor(t, db, "mallory")
	post := addPost(db, bob, "https://remote.example/notes/1")

	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Update", mallory, remoteNote(mallory, post.URI, "<p>pwned</p>")), "")

	if outcome != Rejected {
		t.Errorf("Expected Rejected, got %s", outcome)
	}
	_, stored := db.ReadPostById(post.Id)
	if stored.Content != post.Content {
		t.Errorf("Expected content unchanged, got '%s'", stored.Content)
	}
}

func TestUpdateOfUnknownPostUnresolvable(t *testing.T) {
	e, db, _ := newTestEngine(t)
	bob := addRemoteActor(t, db, "bob")

	outcome := e.Dispatch(context.Background(), Inbound, activityOf("Update", bob, remoteNote(bob, "https://remote.example/notes/404", "<p>x</p>")), "")

	if outcome != Unresolvable {
		t.Errorf("Expected Unresolvable, got %s", outcome)
	}
}

func TestOutboundEditDeliversToFollowers(t *testing.T) {
	e, db, proto := newTestEngine(t)
	addLocalUser(t, db, "alice")

	uri, outcome, err := e.Publish(context.Background(), "alice", "first draft", PostOptions{})
	if err != nil || outcome != Applied {
		t.Fatalf("Expected Applied, got %s (%v)", outcome, err)
	}
	if outcome, err := e.EditPost(context.Background(), "alice", uri, "second draft"); outcome != Applied {
		t.Fatalf("Expected edit Applied, got %s (%v)", outcome, err)
	}
	e.Wait()

	_, stored := db.ReadPostByURI(uri)
	if stored.Content != "<p>second draft</p>" {
		t.Errorf("Expected edited content, got '%s'", stored.Content)
	}
	types := map[string]int{}
	for _, d := range proto.deliveriesTo("followers") {
		types[d.Activity.Type]++
	}
	if types["Create"] != 1 || types["Update"] != 1 {
		t.Errorf("Expected Create and Update delivered to followers, got %v", types)
	}
}
