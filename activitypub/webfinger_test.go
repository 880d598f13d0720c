package activitypub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestParseHandle(t *testing.T) {
	tests := []struct {
		handle   string
		wantUser string
		wantHost string
		wantErr  bool
	}{
		{"bob@remote.example", "bob", "remote.example", false},
		{"@bob@remote.example", "bob", "remote.example", false},
		{" bob@remote.example ", "bob", "remote.example", false},
		{"bob", "", "", true},
		{"@bob@", "", "", true},
		{"a@b@c", "", "", true},
	}
	for _, tt := range tests {
		user, host, err := ParseHandle(tt.handle)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed for '%s', got %v", tt.handle, err)
			}
			continue
		}
		if err != nil || user != tt.wantUser || host != tt.wantHost {
			t.Errorf("Expected %s@%s for '%s', got %s@%s (%v)", tt.wantUser, tt.wantHost, tt.handle, user, host, err)
		}
	}
}

func TestResolveWebFinger(t *testing.T) {
	var gotURL, gotAccept string
	client := stubClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotAccept = req.Header.Get("Accept")
		body := `{"subject":"acct:bob@remote.example","links":[
			{"rel":"http://webfinger.net/rel/profile-page","type":"text/html","href":"https://remote.example/@bob"},
			{"rel":"self","type":"application/activity+json","href":"https://remote.example/users/bob"}]}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}, Request: req}, nil
	})
	p := NewHTTPProtocol(NewMockDatabase(), Config{Domain: "local.example"}, client)

	uri, err := p.ResolveWebFinger(context.Background(), "bob", "remote.example")
	if err != nil {
		t.Fatalf("ResolveWebFinger failed: %v", err)
	}
	if uri != "https://remote.example/users/bob" {
		t.Errorf("Expected actor uri, got '%s'", uri)
	}
	if gotURL != "https://remote.example/.well-known/webfinger?resource=acct%3Abob%40remote.example" {
		t.Errorf("Unexpected lookup url '%s'", gotURL)
	}
	if gotAccept != "application/jrd+json" {
		t.Errorf("Expected jrd accept header, got '%s'", gotAccept)
	}
}

func TestResolveWebFingerFailures(t *testing.T) {
	noSelf := stubClient(func(req *http.Request) (*http.Response, error) {
		body := `{"subject":"acct:bob@remote.example","links":[]}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}, Request: req}, nil
	})
	p := NewHTTPProtocol(NewMockDatabase(), Config{Domain: "local.example"}, noSelf)
	if _, err := p.ResolveWebFinger(context.Background(), "bob", "remote.example"); !errors.Is(err, ErrNotResolvable) {
		t.Errorf("Expected ErrNotResolvable, got %v", err)
	}

	p = NewHTTPProtocol(NewMockDatabase(), Config{Domain: "local.example"}, statusClient(http.StatusNotFound))
	if _, err := p.ResolveWebFinger(context.Background(), "bob", "remote.example"); err == nil {
		t.Error("Expected error for unknown user")
	}
}
