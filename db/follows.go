package db

import (
	"database/sql"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlUpsertFollow = `INSERT INTO follows(id, follower_id, following_id, uri, status, created_at) VALUES (?, ?, ?, ?, ?, ?)
						ON CONFLICT(follower_id, following_id) DO UPDATE SET uri = excluded.uri,
							status = CASE WHEN follows.status = 'accepted' THEN 'accepted' ELSE excluded.status END`
	sqlSelectFollow         = `SELECT id, follower_id, following_id, uri, status, created_at FROM follows WHERE follower_id = ? AND following_id = ?`
	sqlSelectFollowByURI    = `SELECT id, follower_id, following_id, uri, status, created_at FROM follows WHERE uri = ?`
	sqlAcceptFollow         = `UPDATE follows SET status = 'accepted' WHERE follower_id = ? AND following_id = ?`
	sqlDeleteFollow         = `DELETE FROM follows WHERE follower_id = ? AND following_id = ?`
	sqlSelectFollowerActors = `SELECT ` + sqlActorColumnsPrefixed + ` FROM actors a
								INNER JOIN follows f ON f.follower_id = a.id
								WHERE f.following_id = ? AND f.status = 'accepted'
								ORDER BY a.uri`
	sqlSelectFollowingActors = `SELECT ` + sqlActorColumnsPrefixed + ` FROM actors a
								INNER JOIN follows f ON f.following_id = a.id
								WHERE f.follower_id = ?
								ORDER BY a.uri`
	sqlActorColumnsPrefixed = `a.id, a.uri, a.username, a.domain, a.display_name, a.summary, a.avatar_url, a.inbox_uri, a.shared_inbox_uri,
								a.public_key_pem, a.user_id, a.kind, a.last_fetched_at, a.created_at`
)

// UpsertFollow creates the relationship row for the pair or overwrites its activity URI and status.
// An accepted relationship stays accepted.
func (db *DB) UpsertFollow(follow *domain.Follow) error {
	if follow.Id == uuid.Nil {
		follow.Id = uuid.New()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollow,
			follow.Id.String(),
			follow.FollowerId.String(),
			follow.FollowingId.String(),
			follow.URI,
			string(follow.Status),
			formatTime(follow.CreatedAt))
		return err
	})
}

func (db *DB) ReadFollow(followerId, followingId uuid.UUID) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollow, followerId.String(), followingId.String()))
}

// ReadFollowByURI finds a relationship by the URI of the Follow activity that created it
func (db *DB) ReadFollowByURI(uri string) (error, *domain.Follow) {
	return scanFollow(db.db.QueryRow(sqlSelectFollowByURI, uri))
}

func scanFollow(row *sql.Row) (error, *domain.Follow) {
	var f domain.Follow
	var status, createdAt string
	err := row.Scan(&f.Id, &f.FollowerId, &f.FollowingId, &f.URI, &status, &createdAt)
	if err != nil {
		return err, nil
	}
	f.Status = domain.FollowStatus(status)
	f.CreatedAt = parseTime(createdAt)
	return nil, &f
}

// AcceptFollow moves a relationship to accepted. Returns sql.ErrNoRows when no row exists for the pair.
func (db *DB) AcceptFollow(followerId, followingId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlAcceptFollow, followerId.String(), followingId.String())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// DeleteFollow removes the relationship row whatever its status. Missing rows are not an error.
func (db *DB) DeleteFollow(followerId, followingId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollow, followerId.String(), followingId.String())
		return err
	})
}

func (db *DB) readActors(query string, id uuid.UUID) (error, *[]domain.Actor) {
	rows, err := db.db.Query(query, id.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var actors []domain.Actor
	for rows.Next() {
		err, a := scanActor(rows)
		if err != nil {
			return err, &actors
		}
		actors = append(actors, *a)
	}
	return rows.Err(), &actors
}

// ReadFollowerActors returns the actors with an accepted follow on actorId
func (db *DB) ReadFollowerActors(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.readActors(sqlSelectFollowerActors, actorId)
}

// ReadFollowingActors returns the actors actorId follows, pending or accepted
func (db *DB) ReadFollowingActors(actorId uuid.UUID) (error, *[]domain.Actor) {
	return db.readActors(sqlSelectFollowingActors, actorId)
}
