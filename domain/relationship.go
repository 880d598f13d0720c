package domain

import (
	"time"

	"github.com/google/uuid"
)

// FollowStatus is the lifecycle state of a follow relationship
type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
)

// Follow is the single relationship row for an ordered (follower, following) pair
type Follow struct {
	Id          uuid.UUID
	FollowerId  uuid.UUID
	FollowingId uuid.UUID
	URI         string // Follow activity URI
	Status      FollowStatus
	CreatedAt   time.Time
}

// Accepted reports whether the relationship is confirmed
func (f *Follow) Accepted() bool {
	return f.Status == FollowAccepted
}

// Like marks that an actor liked a post. Presence is the state.
type Like struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	PostId    uuid.UUID
	URI       string // Like activity URI
	CreatedAt time.Time
}

// Boost marks that an actor announced a post
type Boost struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	PostId    uuid.UUID
	URI       string // Announce activity URI
	CreatedAt time.Time
}
