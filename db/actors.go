package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlActorColumns = `id, uri, username, domain, display_name, summary, avatar_url, inbox_uri, shared_inbox_uri,
						public_key_pem, user_id, kind, last_fetched_at, created_at`
	sqlInsertActor = `INSERT INTO actors(` + sqlActorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Local actors are never overwritten from a remote descriptor
	sqlUpsertActor = `INSERT INTO actors(` + sqlActorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
						ON CONFLICT(uri) DO UPDATE SET
							username = excluded.username,
							domain = excluded.domain,
							display_name = excluded.display_name,
							summary = excluded.summary,
							avatar_url = excluded.avatar_url,
							inbox_uri = excluded.inbox_uri,
							shared_inbox_uri = excluded.shared_inbox_uri,
							public_key_pem = COALESCE(excluded.public_key_pem, actors.public_key_pem),
							kind = excluded.kind,
							last_fetched_at = excluded.last_fetched_at
						WHERE actors.user_id IS NULL
						RETURNING id`
	sqlSelectActorByURI           = `SELECT ` + sqlActorColumns + ` FROM actors WHERE uri = ?`
	sqlSelectActorById            = `SELECT ` + sqlActorColumns + ` FROM actors WHERE id = ?`
	sqlSelectLocalActorByUsername = `SELECT ` + sqlActorColumns + ` FROM actors WHERE username = ? AND user_id IS NOT NULL`
	sqlSelectActorByUserId        = `SELECT ` + sqlActorColumns + ` FROM actors WHERE user_id = ?`

	// Account deletion cascade
	sqlDeleteLikesOnActorPosts         = `DELETE FROM likes WHERE post_id IN (SELECT id FROM posts WHERE actor_id = ?)`
	sqlDeleteBoostsOnActorPosts        = `DELETE FROM boosts WHERE post_id IN (SELECT id FROM posts WHERE actor_id = ?)`
	sqlDeleteAttachmentsOfActor        = `DELETE FROM attachments WHERE post_id IN (SELECT id FROM posts WHERE actor_id = ?)`
	sqlDeleteHashtagLinksOfActor       = `DELETE FROM post_hashtags WHERE post_id IN (SELECT id FROM posts WHERE actor_id = ?)`
	sqlDeleteNotificationsOnActorPosts = `DELETE FROM notifications WHERE post_id IN (SELECT id FROM posts WHERE actor_id = ?)`
	sqlDetachRepliesToActorPosts       = `UPDATE posts SET parent_id = NULL WHERE parent_id IN (SELECT id FROM posts WHERE actor_id = ?) AND actor_id != ?`
	sqlDeletePostsOfActor              = `DELETE FROM posts WHERE actor_id = ?`
	sqlDeleteFollowsOfActor            = `DELETE FROM follows WHERE follower_id = ? OR following_id = ?`
	sqlDeleteLikesByActor              = `DELETE FROM likes WHERE actor_id = ?`
	sqlDeleteBoostsByActor             = `DELETE FROM boosts WHERE actor_id = ?`
	sqlDeleteNotificationsByActor      = `DELETE FROM notifications WHERE actor_id = ?`
	sqlDeleteActor                     = `DELETE FROM actors WHERE id = ?`

	sqlSelectPostsTouchedByActor = `SELECT id FROM posts WHERE actor_id != ? AND id IN (
										SELECT post_id FROM likes WHERE actor_id = ?
										UNION SELECT post_id FROM boosts WHERE actor_id = ?
										UNION SELECT parent_id FROM posts WHERE actor_id = ? AND parent_id IS NOT NULL)`
)

func insertActor(tx *sql.Tx, actor *domain.Actor) (uuid.UUID, error) {
	if actor.Id == uuid.Nil {
		actor.Id = uuid.New()
	}
	if actor.Kind == "" {
		actor.Kind = domain.ActorPerson
	}
	_, err := tx.Exec(sqlInsertActor,
		actor.Id.String(),
		actor.URI,
		actor.Username,
		actor.Domain,
		nullString(actor.DisplayName),
		nullString(actor.Summary),
		nullString(actor.AvatarURL),
		actor.InboxURI,
		nullString(actor.SharedInboxURI),
		nullString(actor.PublicKeyPem),
		nullUUID(actor.UserId),
		string(actor.Kind),
		formatTime(actor.LastFetchedAt),
		formatTime(actor.CreatedAt))
	return actor.Id, err
}

// UpsertActor inserts a remote actor or refreshes its mutable fields, keyed by origin URI.
// Returns the canonical row id. A URI owned by a local actor is returned unchanged.
func (db *DB) UpsertActor(actor *domain.Actor) (uuid.UUID, error) {
	if actor.URI == "" {
		return uuid.Nil, fmt.Errorf("actor without uri")
	}
	if actor.Kind == "" {
		actor.Kind = domain.ActorPerson
	}
	var id uuid.UUID
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		err := tx.QueryRow(sqlUpsertActor,
			uuid.New().String(),
			actor.URI,
			actor.Username,
			actor.Domain,
			nullString(actor.DisplayName),
			nullString(actor.Summary),
			nullString(actor.AvatarURL),
			actor.InboxURI,
			nullString(actor.SharedInboxURI),
			nullString(actor.PublicKeyPem),
			string(actor.Kind),
			formatTime(time.Now()),
			formatTime(actor.CreatedAt)).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict with a local actor, the update was skipped
			return tx.QueryRow(`SELECT id FROM actors WHERE uri = ?`, actor.URI).Scan(&id)
		}
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	actor.Id = id
	return id, nil
}

func scanActor(row interface{ Scan(...any) error }) (error, *domain.Actor) {
	var a domain.Actor
	var displayName, summary, avatarURL, sharedInbox, publicKey, lastFetched sql.NullString
	var userId uuid.NullUUID
	var kind, createdAt string
	err := row.Scan(&a.Id, &a.URI, &a.Username, &a.Domain, &displayName, &summary, &avatarURL, &a.InboxURI,
		&sharedInbox, &publicKey, &userId, &kind, &lastFetched, &createdAt)
	if err != nil {
		return err, nil
	}
	a.DisplayName = displayName.String
	a.Summary = summary.String
	a.AvatarURL = avatarURL.String
	a.SharedInboxURI = sharedInbox.String
	a.PublicKeyPem = publicKey.String
	if userId.Valid {
		id := userId.UUID
		a.UserId = &id
	}
	a.Kind = domain.ActorKind(kind)
	a.LastFetchedAt = parseTime(lastFetched.String)
	a.CreatedAt = parseTime(createdAt)
	return nil, &a
}

func (db *DB) ReadActorByURI(uri string) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorByURI, uri))
}

func (db *DB) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorById, id.String()))
}

// ReadActorByUsername returns the local actor with this username
func (db *DB) ReadActorByUsername(username string) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectLocalActorByUsername, username))
}

func (db *DB) ReadActorByAccountId(accountId uuid.UUID) (error, *domain.Actor) {
	return scanActor(db.db.QueryRow(sqlSelectActorByUserId, accountId.String()))
}

// ReadPostIdsTouchedByActor lists other actors' posts this actor liked, boosted or replied to
func (db *DB) ReadPostIdsTouchedByActor(actorId uuid.UUID) (error, []uuid.UUID) {
	id := actorId.String()
	rows, err := db.db.Query(sqlSelectPostsTouchedByActor, id, id, id, id)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var postId uuid.UUID
		if err := rows.Scan(&postId); err != nil {
			return err, nil
		}
		ids = append(ids, postId)
	}
	return rows.Err(), ids
}

// DeleteActorCascade removes an actor with all of its posts, relationships, reactions and notifications.
func (db *DB) DeleteActorCascade(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		actorId := id.String()
		steps := []struct {
			query string
			args  []any
		}{
			{sqlDeleteLikesOnActorPosts, []any{actorId}},
			{sqlDeleteBoostsOnActorPosts, []any{actorId}},
			{sqlDeleteAttachmentsOfActor, []any{actorId}},
			{sqlDeleteHashtagLinksOfActor, []any{actorId}},
			{sqlDeleteNotificationsOnActorPosts, []any{actorId}},
			{sqlDetachRepliesToActorPosts, []any{actorId, actorId}},
			{sqlDeletePostsOfActor, []any{actorId}},
			{sqlDeleteFollowsOfActor, []any{actorId, actorId}},
			{sqlDeleteLikesByActor, []any{actorId}},
			{sqlDeleteBoostsByActor, []any{actorId}},
			{sqlDeleteNotificationsByActor, []any{actorId}},
			{sqlDeleteActor, []any{actorId}},
		}
		for _, step := range steps {
			if _, err := tx.Exec(step.query, step.args...); err != nil {
				return err
			}
		}
		return nil
	})
}
