package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationFollow NotificationType = "follow"
	NotificationLike   NotificationType = "like"
	NotificationBoost  NotificationType = "boost"
	NotificationReply  NotificationType = "reply"
)

// Notification is created as a side effect of federated activity for a local account
type Notification struct {
	Id               uuid.UUID
	AccountId        uuid.UUID        // The local user receiving the notification
	NotificationType NotificationType // follow, like, boost, reply
	ActorId          uuid.UUID        // The actor that triggered the notification (local or remote)
	ActorUsername    string           // Denormalized for display (e.g., "alice")
	ActorDomain      string           // Denormalized for display (e.g., "mastodon.social", empty for local)
	PostId           *uuid.UUID       // Reference to the post (for like/boost/reply)
	PostURI          string
	PostPreview      string // First 100 cells of post content
	Read             bool
	CreatedAt        time.Time
}

// ActorHandle returns the formatted @user or @user@domain string
func (n *Notification) ActorHandle() string {
	if n.ActorDomain == "" {
		return "@" + n.ActorUsername
	}
	return "@" + n.ActorUsername + "@" + n.ActorDomain
}

// TypeLabel returns a human-readable label for the notification type
func (n *Notification) TypeLabel() string {
	switch n.NotificationType {
	case NotificationFollow:
		return "followed you"
	case NotificationLike:
		return "liked your post"
	case NotificationBoost:
		return "boosted your post"
	case NotificationReply:
		return "replied to your post"
	default:
		return ""
	}
}

// TypeIcon returns a short icon for the notification type
func (n *Notification) TypeIcon() string {
	switch n.NotificationType {
	case NotificationFollow:
		return "+"
	case NotificationLike:
		return "♥"
	case NotificationBoost:
		return "↻"
	case NotificationReply:
		return "↩"
	default:
		return "•"
	}
}

// Summary returns a one-line summary of the notification
func (n *Notification) Summary() string {
	return fmt.Sprintf("%s %s %s", n.TypeIcon(), n.ActorHandle(), n.TypeLabel())
}
