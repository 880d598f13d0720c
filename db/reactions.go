package db

import (
	"database/sql"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlInsertLike = `INSERT INTO likes(id, actor_id, post_id, uri, created_at) VALUES (?, ?, ?, ?, ?)
						ON CONFLICT(actor_id, post_id) DO NOTHING`
	sqlDeleteLike  = `DELETE FROM likes WHERE actor_id = ? AND post_id = ?`
	sqlHasLike     = `SELECT COUNT(*) FROM likes WHERE actor_id = ? AND post_id = ?`
	sqlInsertBoost = `INSERT INTO boosts(id, actor_id, post_id, uri, created_at) VALUES (?, ?, ?, ?, ?)
						ON CONFLICT(actor_id, post_id) DO NOTHING`
	sqlDeleteBoost = `DELETE FROM boosts WHERE actor_id = ? AND post_id = ?`
	sqlHasBoost    = `SELECT COUNT(*) FROM boosts WHERE actor_id = ? AND post_id = ?`
	sqlSelectLike  = `SELECT id, actor_id, post_id, uri, created_at FROM likes WHERE actor_id = ? AND post_id = ?`
	sqlSelectBoost = `SELECT id, actor_id, post_id, uri, created_at FROM boosts WHERE actor_id = ? AND post_id = ?`
)

// CreateLike records a like. Liking twice leaves a single row.
func (db *DB) CreateLike(like *domain.Like) error {
	if like.Id == uuid.Nil {
		like.Id = uuid.New()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertLike,
			like.Id.String(),
			like.ActorId.String(),
			like.PostId.String(),
			like.URI,
			formatTime(like.CreatedAt))
		return err
	})
}

func (db *DB) DeleteLike(actorId, postId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteLike, actorId.String(), postId.String())
		return err
	})
}

// ReadLike returns the like row, carrying the URI of the Like activity that created it
func (db *DB) ReadLike(actorId, postId uuid.UUID) (error, *domain.Like) {
	var l domain.Like
	var createdAt string
	err := db.db.QueryRow(sqlSelectLike, actorId.String(), postId.String()).
		Scan(&l.Id, &l.ActorId, &l.PostId, &l.URI, &createdAt)
	if err != nil {
		return err, nil
	}
	l.CreatedAt = parseTime(createdAt)
	return nil, &l
}

func (db *DB) HasLike(actorId, postId uuid.UUID) (bool, error) {
	var count int
	err := db.db.QueryRow(sqlHasLike, actorId.String(), postId.String()).Scan(&count)
	return count > 0, err
}

// CreateBoost records an announce. Boosting twice leaves a single row.
func (db *DB) CreateBoost(boost *domain.Boost) error {
	if boost.Id == uuid.Nil {
		boost.Id = uuid.New()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBoost,
			boost.Id.String(),
			boost.ActorId.String(),
			boost.PostId.String(),
			boost.URI,
			formatTime(boost.CreatedAt))
		return err
	})
}

func (db *DB) DeleteBoost(actorId, postId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBoost, actorId.String(), postId.String())
		return err
	})
}

func (db *DB) ReadBoost(actorId, postId uuid.UUID) (error, *domain.Boost) {
	var b domain.Boost
	var createdAt string
	err := db.db.QueryRow(sqlSelectBoost, actorId.String(), postId.String()).
		Scan(&b.Id, &b.ActorId, &b.PostId, &b.URI, &createdAt)
	if err != nil {
		return err, nil
	}
	b.CreatedAt = parseTime(createdAt)
	return nil, &b
}

func (db *DB) HasBoost(actorId, postId uuid.UUID) (bool, error) {
	var count int
	err := db.db.QueryRow(sqlHasBoost, actorId.String(), postId.String()).Scan(&count)
	return count > 0, err
}
