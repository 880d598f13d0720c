package activitypub

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
)

// Config is the explicit configuration the engine is built with
type Config struct {
	Domain                  string
	MaxContentLength        int
	DeliveryTimeout         time.Duration
	MaxConcurrentDeliveries int
	ProfileCacheSize        int
	LinkPreviews            bool
	MaxReplyDepth           int
	UserAgent               string
}

// ConfigFromApp derives the engine configuration from the application config
func ConfigFromApp(conf *util.AppConfig) Config {
	c := Config{
		Domain:                  conf.Conf.SslDomain,
		MaxContentLength:        conf.Conf.MaxContentLength,
		DeliveryTimeout:         time.Duration(conf.Conf.DeliveryTimeout) * time.Second,
		MaxConcurrentDeliveries: conf.Conf.MaxConcurrentDeliveries,
		ProfileCacheSize:        conf.Conf.ProfileCacheSize,
		LinkPreviews:            conf.Conf.LinkPreviews,
		MaxReplyDepth:           conf.Conf.MaxReplyDepth,
		UserAgent:               util.Name + "/" + util.GetVersion() + " ActivityPub",
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 10000
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.MaxConcurrentDeliveries <= 0 {
		c.MaxConcurrentDeliveries = 8
	}
	if c.ProfileCacheSize <= 0 {
		c.ProfileCacheSize = 512
	}
	if c.MaxReplyDepth <= 0 {
		c.MaxReplyDepth = 8
	}
	if c.UserAgent == "" {
		c.UserAgent = util.Name + " ActivityPub"
	}
	return c
}

func (c Config) ActorURI(username string) string {
	return "https://" + c.Domain + "/users/" + username
}

func (c Config) InboxURI(username string) string {
	return c.ActorURI(username) + "/inbox"
}

func (c Config) FollowersURI(username string) string {
	return c.ActorURI(username) + "/followers"
}

func (c Config) KeyID(username string) string {
	return c.ActorURI(username) + "#main-key"
}

func (c Config) SharedInboxURI() string {
	return "https://" + c.Domain + "/inbox"
}

func (c Config) PostURI(id uuid.UUID) string {
	return "https://" + c.Domain + "/posts/" + id.String()
}

func (c Config) ActivityURI(id uuid.UUID) string {
	return "https://" + c.Domain + "/activities/" + id.String()
}

// IsLocalURI reports whether uri is hosted on this server
func (c Config) IsLocalURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), hostOnly(c.Domain))
}

// PubliclyReachable reports whether remote servers could reach this domain at all.
// Development setups on localhost cannot receive callbacks, so delivery is skipped.
func (c Config) PubliclyReachable() bool {
	host := strings.ToLower(hostOnly(c.Domain))
	if host == "" || host == "localhost" || host == "example.com" {
		return false
	}
	for _, suffix := range []string{".localhost", ".local", ".test", ".internal"} {
		if strings.HasSuffix(host, suffix) {
			return false
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast())
	}
	return true
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}
