package activitypub

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HotScore ranks posts by engagement decayed over age.
// Replies weigh half of a like or boost.
func HotScore(likes, boosts, replies int, createdAt, now time.Time) float64 {
	engagement := float64(likes) + float64(boosts) + float64(replies)/2
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return 10000 * math.Log10(math.Max(1, 1+engagement)) / math.Pow(hours+2, 1.8)
}

const scoreStripes = 64

// Scorer recomputes a post's counters and score from the reaction rows.
// Recomputes of the same post are serialized so the last one always reads the final state.
type Scorer struct {
	db    Database
	now   func() time.Time
	locks [scoreStripes]sync.Mutex
}

func NewScorer(db Database) *Scorer {
	return &Scorer{db: db, now: time.Now}
}

func (s *Scorer) Recompute(postId uuid.UUID) error {
	mu := &s.locks[int(postId[0])%scoreStripes]
	mu.Lock()
	defer mu.Unlock()

	if err := s.db.RecountPost(postId); err != nil {
		return err
	}
	err, post := s.db.ReadPostById(postId)
	if err != nil {
		return err
	}
	return s.db.UpdatePostScore(postId, HotScore(post.LikeCount, post.BoostCount, post.ReplyCount, post.CreatedAt, s.now()))
}
