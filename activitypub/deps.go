package activitypub

import (
	"net/http"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

// Database is the data-access contract the engine consumes.
// Reads return sql.ErrNoRows when nothing matches.
type Database interface {
	// Account operations
	ReadAccByUsername(username string) (error, *domain.Account)
	ReadAccById(id uuid.UUID) (error, *domain.Account)

	// Actor operations
	ReadActorByUsername(username string) (error, *domain.Actor)
	ReadActorByURI(uri string) (error, *domain.Actor)
	ReadActorById(id uuid.UUID) (error, *domain.Actor)
	ReadActorByAccountId(accountId uuid.UUID) (error, *domain.Actor)
	UpsertActor(actor *domain.Actor) (uuid.UUID, error)
	DeleteActorCascade(id uuid.UUID) error
	ReadPostIdsTouchedByActor(actorId uuid.UUID) (error, []uuid.UUID)

	// Post operations
	ReadPostByURI(uri string) (error, *domain.Post)
	ReadPostById(id uuid.UUID) (error, *domain.Post)
	CreatePost(post *domain.Post) error
	UpdatePostContent(id uuid.UUID, content string, sensitive bool, editedAt time.Time) error
	AppendPostContent(id uuid.UUID, fragment string) error
	UpdatePostPreview(id uuid.UUID, preview *domain.LinkPreview) error
	UpdatePostScore(id uuid.UUID, score float64) error
	RecountPost(id uuid.UUID) error
	DeletePost(id uuid.UUID) error

	// Follow operations
	UpsertFollow(follow *domain.Follow) error
	ReadFollow(followerId, followingId uuid.UUID) (error, *domain.Follow)
	ReadFollowByURI(uri string) (error, *domain.Follow)
	AcceptFollow(followerId, followingId uuid.UUID) error
	DeleteFollow(followerId, followingId uuid.UUID) error
	ReadFollowerActors(actorId uuid.UUID) (error, *[]domain.Actor)

	// Like and boost operations
	CreateLike(like *domain.Like) error
	ReadLike(actorId, postId uuid.UUID) (error, *domain.Like)
	DeleteLike(actorId, postId uuid.UUID) error
	CreateBoost(boost *domain.Boost) error
	ReadBoost(actorId, postId uuid.UUID) (error, *domain.Boost)
	DeleteBoost(actorId, postId uuid.UUID) error

	// Hashtag and media operations
	CreateOrUpdateHashtag(name string) (int64, error)
	LinkPostHashtags(postId uuid.UUID, hashtagIds []int64) error
	CreateAttachment(att *domain.Attachment) error

	// Notification operations
	CreateNotification(n *domain.Notification) error
	DeleteNotification(accountId, actorId uuid.UUID, notificationType domain.NotificationType, postId *uuid.UUID) error
}

// HTTPClient defines the HTTP client operations required by the ActivityPub package.
// This interface allows for dependency injection and testing with mock implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
