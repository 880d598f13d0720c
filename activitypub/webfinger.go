package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type webFingerResponse struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// ParseHandle splits user@host or @user@host
func ParseHandle(handle string) (string, string, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(handle), "@"), "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid handle %q", ErrMalformed, handle)
	}
	return parts[0], parts[1], nil
}

// ResolveWebFinger looks up the actor URI of user@host
func (p *HTTPProtocol) ResolveWebFinger(ctx context.Context, user, host string) (string, error) {
	resource := url.QueryEscape("acct:" + user + "@" + host)
	body, err := p.getAccept(ctx, "https://"+host+"/.well-known/webfinger?resource="+resource, "application/jrd+json")
	if err != nil {
		return "", fmt.Errorf("webfinger %s@%s: %w", user, host, err)
	}

	var wf webFingerResponse
	if err := json.Unmarshal(body, &wf); err != nil {
		return "", fmt.Errorf("%w: webfinger response: %v", ErrMalformed, err)
	}
	for _, link := range wf.Links {
		if link.Rel != "self" || link.Href == "" {
			continue
		}
		if strings.HasPrefix(link.Type, "application/activity+json") || strings.HasPrefix(link.Type, "application/ld+json") {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("%w: no actor link for %s@%s", ErrNotResolvable, user, host)
}
