package activitypub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"golang.org/x/net/html"
)

const maxPreviewBytes = 512 * 1024

// ErrPrivateAddress means a link points at a loopback, private or link-local host
var ErrPrivateAddress = errors.New("private address")

// LinkPreviewer reads OpenGraph metadata from linked pages
type LinkPreviewer struct {
	client HTTPClient
	conf   Config
}

// NewLinkPreviewer creates a previewer. A nil client only connects to public addresses.
func NewLinkPreviewer(client HTTPClient, conf Config) *LinkPreviewer {
	if client == nil {
		client = publicOnlyClient(conf.DeliveryTimeout)
	}
	return &LinkPreviewer{client: client, conf: conf}
}

// publicOnlyClient checks every resolved address at dial time, redirects included
func publicOnlyClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
				return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func isPublicIP(ip net.IP) bool {
	return !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsLinkLocalUnicast() && !ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() && !ip.IsMulticast() && !ip.IsUnspecified()
}

func (l *LinkPreviewer) Fetch(ctx context.Context, uri string) (*domain.LinkPreview, error) {
	ctx, cancel := context.WithTimeout(ctx, l.conf.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", l.conf.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview of %s: status %d", uri, resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/html" {
		return nil, fmt.Errorf("preview of %s: not html (%s)", uri, mediaType)
	}
	return parsePreview(uri, io.LimitReader(resp.Body, maxPreviewBytes))
}

func parsePreview(uri string, r io.Reader) (*domain.LinkPreview, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	preview := &domain.LinkPreview{URL: uri}
	var pageTitle, description string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if pageTitle == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					pageTitle = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				key, value := metaPair(n)
				switch key {
				case "og:title":
					preview.Title = value
				case "og:description":
					preview.Description = value
				case "og:image":
					preview.ImageURL = value
				case "og:url":
					if value != "" {
						preview.URL = value
					}
				case "description":
					description = value
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if preview.Title == "" {
		preview.Title = pageTitle
	}
	if preview.Description == "" {
		preview.Description = description
	}
	if preview.Title == "" && preview.Description == "" {
		return nil, fmt.Errorf("preview of %s: no metadata", uri)
	}
	return preview, nil
}

func metaPair(n *html.Node) (string, string) {
	var key, value string
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(attr.Val)
			}
		case "content":
			value = strings.TrimSpace(attr.Val)
		}
	}
	return key, value
}
