package activitypub

import (
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

type pairKey struct {
	A uuid.UUID
	B uuid.UUID
}

// MockDatabase is an in-memory mock implementation of the Database interface for testing.
// It mirrors the uniqueness rules of the SQLite schema.
type MockDatabase struct {
	mu sync.RWMutex

	// Storage maps
	Accounts       map[uuid.UUID]*domain.Account
	AccountsByUser map[string]*domain.Account
	Actors         map[uuid.UUID]*domain.Actor
	ActorsByURI    map[string]*domain.Actor
	Posts          map[uuid.UUID]*domain.Post
	PostsByURI     map[string]*domain.Post
	Follows        map[pairKey]*domain.Follow
	Likes          map[pairKey]*domain.Like
	Boosts         map[pairKey]*domain.Boost
	Hashtags       map[string]int64
	PostHashtags   map[uuid.UUID][]int64
	Attachments    []domain.Attachment
	Notifications  []domain.Notification

	// Error injection for testing error handling
	ForceError error
}

// NewMockDatabase creates a new mock database with initialized maps
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Accounts:       make(map[uuid.UUID]*domain.Account),
		AccountsByUser: make(map[string]*domain.Account),
		Actors:         make(map[uuid.UUID]*domain.Actor),
		ActorsByURI:    make(map[string]*domain.Actor),
		Posts:          make(map[uuid.UUID]*domain.Post),
		PostsByURI:     make(map[string]*domain.Post),
		Follows:        make(map[pairKey]*domain.Follow),
		Likes:          make(map[pairKey]*domain.Like),
		Boosts:         make(map[pairKey]*domain.Boost),
		Hashtags:       make(map[string]int64),
		PostHashtags:   make(map[uuid.UUID][]int64),
	}
}

// SetForceError sets an error to be returned by all operations
func (m *MockDatabase) SetForceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ForceError = err
}

// AddAccount adds an account and its local actor
func (m *MockDatabase) AddAccount(acc *domain.Account, actor *domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[acc.Id] = acc
	m.AccountsByUser[acc.Username] = acc
	if actor.Id == uuid.Nil {
		actor.Id = uuid.New()
	}
	actor.UserId = &acc.Id
	m.Actors[actor.Id] = actor
	m.ActorsByURI[actor.URI] = actor
}

// AddActor adds a remote actor
func (m *MockDatabase) AddActor(actor *domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if actor.Id == uuid.Nil {
		actor.Id = uuid.New()
	}
	m.Actors[actor.Id] = actor
	m.ActorsByURI[actor.URI] = actor
}

// AddPost adds a post without the create pipeline
func (m *MockDatabase) AddPost(post *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.Id == uuid.Nil {
		post.Id = uuid.New()
	}
	m.Posts[post.Id] = post
	m.PostsByURI[post.URI] = post
}

// Counting helpers for assertions

func (m *MockDatabase) PostCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Posts)
}

func (m *MockDatabase) LikeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Likes)
}

func (m *MockDatabase) BoostCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Boosts)
}

func (m *MockDatabase) FollowCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Follows)
}

func (m *MockDatabase) ActorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Actors)
}

func (m *MockDatabase) NotificationsOf(accountId uuid.UUID) []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Notification
	for _, n := range m.Notifications {
		if n.AccountId == accountId {
			out = append(out, n)
		}
	}
	return out
}

func (m *MockDatabase) HashtagsOf(postId uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, id := range m.PostHashtags[postId] {
		for name, hid := range m.Hashtags {
			if hid == id {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (m *MockDatabase) AttachmentsOf(postId uuid.UUID) []domain.Attachment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Attachment
	for _, a := range m.Attachments {
		if a.PostId == postId {
			out = append(out, a)
		}
	}
	return out
}

// Account operations

func (m *MockDatabase) ReadAccByUsername(username string) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.AccountsByUser[username]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

func (m *MockDatabase) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	acc, ok := m.Accounts[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	return nil, acc
}

// Actor operations

func (m *MockDatabase) ReadActorByUsername(username string) (error, *domain.Actor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, a := range m.Actors {
		if a.IsLocal() && a.Username == username {
			c := *a
			return nil, &c
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadActorByURI(uri string) (error, *domain.Actor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	a, ok := m.ActorsByURI[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *a
	return nil, &c
}

func (m *MockDatabase) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	a, ok := m.Actors[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *a
	return nil, &c
}

func (m *MockDatabase) ReadActorByAccountId(accountId uuid.UUID) (error, *domain.Actor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	for _, a := range m.Actors {
		if a.UserId != nil && *a.UserId == accountId {
			c := *a
			return nil, &c
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) UpsertActor(actor *domain.Actor) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return uuid.Nil, m.ForceError
	}
	if existing, ok := m.ActorsByURI[actor.URI]; ok {
		if existing.IsLocal() {
			return existing.Id, nil
		}
		existing.Username = actor.Username
		existing.Domain = actor.Domain
		existing.DisplayName = actor.DisplayName
		existing.Summary = actor.Summary
		existing.AvatarURL = actor.AvatarURL
		existing.InboxURI = actor.InboxURI
		existing.SharedInboxURI = actor.SharedInboxURI
		existing.PublicKeyPem = actor.PublicKeyPem
		existing.Kind = actor.Kind
		existing.LastFetchedAt = actor.LastFetchedAt
		return existing.Id, nil
	}
	c := *actor
	c.Id = uuid.New()
	c.UserId = nil
	m.Actors[c.Id] = &c
	m.ActorsByURI[c.URI] = &c
	return c.Id, nil
}

func (m *MockDatabase) DeleteActorCascade(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	for postId, p := range m.Posts {
		if p.ActorId == id {
			m.deletePostLocked(postId)
		}
	}
	for k := range m.Follows {
		if k.A == id || k.B == id {
			delete(m.Follows, k)
		}
	}
	for k := range m.Likes {
		if k.A == id {
			delete(m.Likes, k)
		}
	}
	for k := range m.Boosts {
		if k.A == id {
			delete(m.Boosts, k)
		}
	}
	if a, ok := m.Actors[id]; ok {
		delete(m.ActorsByURI, a.URI)
		delete(m.Actors, id)
	}
	return nil
}

func (m *MockDatabase) ReadPostIdsTouchedByActor(actorId uuid.UUID) (error, []uuid.UUID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	touched := make(map[uuid.UUID]bool)
	for k := range m.Likes {
		if k.A == actorId {
			touched[k.B] = true
		}
	}
	for k := range m.Boosts {
		if k.A == actorId {
			touched[k.B] = true
		}
	}
	for _, p := range m.Posts {
		if p.ActorId == actorId && p.ParentId != nil {
			touched[*p.ParentId] = true
		}
	}
	var ids []uuid.UUID
	for id := range touched {
		if p, ok := m.Posts[id]; ok && p.ActorId != actorId {
			ids = append(ids, id)
		}
	}
	return nil, ids
}

// Post operations

func (m *MockDatabase) ReadPostByURI(uri string) (error, *domain.Post) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	p, ok := m.PostsByURI[uri]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *p
	return nil, &c
}

func (m *MockDatabase) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ForceError != nil {
		return m.ForceError, nil
	}
	p, ok := m.Posts[id]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *p
	return nil, &c
}

func (m *MockDatabase) CreatePost(post *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	if _, ok := m.PostsByURI[post.URI]; ok {
		return domain.ErrDuplicate
	}
	if post.Id == uuid.Nil {
		post.Id = uuid.New()
	}
	c := *post
	m.Posts[c.Id] = &c
	m.PostsByURI[c.URI] = &c
	return nil
}

func (m *MockDatabase) UpdatePostContent(id uuid.UUID, content string, sensitive bool, editedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Posts[id]; ok {
		p.Content = content
		p.Sensitive = sensitive
		p.EditedAt = &editedAt
	}
	return nil
}

func (m *MockDatabase) AppendPostContent(id uuid.UUID, fragment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Posts[id]; ok {
		p.Content += fragment
	}
	return nil
}

func (m *MockDatabase) UpdatePostPreview(id uuid.UUID, preview *domain.LinkPreview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Posts[id]; ok {
		p.Preview = preview
	}
	return nil
}

func (m *MockDatabase) UpdatePostScore(id uuid.UUID, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Posts[id]; ok {
		p.Score = score
	}
	return nil
}

func (m *MockDatabase) RecountPost(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Posts[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.LikeCount, p.BoostCount, p.ReplyCount = 0, 0, 0
	for k := range m.Likes {
		if k.B == id {
			p.LikeCount++
		}
	}
	for k := range m.Boosts {
		if k.B == id {
			p.BoostCount++
		}
	}
	for _, other := range m.Posts {
		if other.ParentId != nil && *other.ParentId == id {
			p.ReplyCount++
		}
	}
	return nil
}

func (m *MockDatabase) DeletePost(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	m.deletePostLocked(id)
	return nil
}

func (m *MockDatabase) deletePostLocked(id uuid.UUID) {
	p, ok := m.Posts[id]
	if !ok {
		return
	}
	for k := range m.Likes {
		if k.B == id {
			delete(m.Likes, k)
		}
	}
	for k := range m.Boosts {
		if k.B == id {
			delete(m.Boosts, k)
		}
	}
	for _, other := range m.Posts {
		if other.ParentId != nil && *other.ParentId == id {
			other.ParentId = nil
		}
	}
	delete(m.PostHashtags, id)
	delete(m.PostsByURI, p.URI)
	delete(m.Posts, id)
}

// Follow operations

func (m *MockDatabase) UpsertFollow(follow *domain.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey{follow.FollowerId, follow.FollowingId}
	if existing, ok := m.Follows[key]; ok {
		existing.URI = follow.URI
		if !existing.Accepted() {
			existing.Status = follow.Status
		}
		return nil
	}
	c := *follow
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	m.Follows[key] = &c
	return nil
}

func (m *MockDatabase) ReadFollow(followerId, followingId uuid.UUID) (error, *domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.Follows[pairKey{followerId, followingId}]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *f
	return nil, &c
}

func (m *MockDatabase) ReadFollowByURI(uri string) (error, *domain.Follow) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.Follows {
		if f.URI == uri {
			c := *f
			return nil, &c
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) AcceptFollow(followerId, followingId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Follows[pairKey{followerId, followingId}]
	if !ok {
		return sql.ErrNoRows
	}
	f.Status = domain.FollowAccepted
	return nil
}

func (m *MockDatabase) DeleteFollow(followerId, followingId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	delete(m.Follows, pairKey{followerId, followingId})
	return nil
}

func (m *MockDatabase) ReadFollowerActors(actorId uuid.UUID) (error, *[]domain.Actor) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var actors []domain.Actor
	for k, f := range m.Follows {
		if k.B == actorId && f.Accepted() {
			if a, ok := m.Actors[k.A]; ok {
				actors = append(actors, *a)
			}
		}
	}
	return nil, &actors
}

// Like and boost operations

func (m *MockDatabase) CreateLike(like *domain.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey{like.ActorId, like.PostId}
	if _, ok := m.Likes[key]; !ok {
		c := *like
		m.Likes[key] = &c
	}
	return nil
}

func (m *MockDatabase) ReadLike(actorId, postId uuid.UUID) (error, *domain.Like) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.Likes[pairKey{actorId, postId}]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *l
	return nil, &c
}

func (m *MockDatabase) DeleteLike(actorId, postId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Likes, pairKey{actorId, postId})
	return nil
}

func (m *MockDatabase) CreateBoost(boost *domain.Boost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return m.ForceError
	}
	key := pairKey{boost.ActorId, boost.PostId}
	if _, ok := m.Boosts[key]; !ok {
		c := *boost
		m.Boosts[key] = &c
	}
	return nil
}

func (m *MockDatabase) ReadBoost(actorId, postId uuid.UUID) (error, *domain.Boost) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.Boosts[pairKey{actorId, postId}]
	if !ok {
		return sql.ErrNoRows, nil
	}
	c := *b
	return nil, &c
}

func (m *MockDatabase) DeleteBoost(actorId, postId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Boosts, pairKey{actorId, postId})
	return nil
}

// Hashtag and media operations

func (m *MockDatabase) CreateOrUpdateHashtag(name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.Hashtags[name]; ok {
		return id, nil
	}
	id := int64(len(m.Hashtags) + 1)
	m.Hashtags[name] = id
	return id, nil
}

func (m *MockDatabase) LinkPostHashtags(postId uuid.UUID, hashtagIds []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostHashtags[postId] = append(m.PostHashtags[postId], hashtagIds...)
	return nil
}

func (m *MockDatabase) CreateAttachment(att *domain.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if att.Id == uuid.Nil {
		att.Id = uuid.New()
	}
	m.Attachments = append(m.Attachments, *att)
	return nil
}

// Notification operations

func (m *MockDatabase) CreateNotification(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	m.Notifications = append(m.Notifications, *n)
	return nil
}

func (m *MockDatabase) DeleteNotification(accountId, actorId uuid.UUID, notificationType domain.NotificationType, postId *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Notifications[:0]
	for _, n := range m.Notifications {
		samePost := (postId == nil && n.PostId == nil) || (postId != nil && n.PostId != nil && *postId == *n.PostId)
		if n.AccountId == accountId && n.ActorId == actorId && n.NotificationType == notificationType && samePost {
			continue
		}
		kept = append(kept, n)
	}
	m.Notifications = kept
	return nil
}
