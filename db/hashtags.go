package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlUpsertHashtag = `INSERT INTO hashtags(name, usage_count, last_used_at) VALUES (?, 1, ?)
						ON CONFLICT(name) DO UPDATE SET usage_count = usage_count + 1, last_used_at = excluded.last_used_at
						RETURNING id`
	sqlInsertPostHashtag      = `INSERT INTO post_hashtags(post_id, hashtag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`
	sqlSelectHashtagsByPostId = `SELECT h.name FROM hashtags h
								INNER JOIN post_hashtags ph ON ph.hashtag_id = h.id
								WHERE ph.post_id = ? ORDER BY h.name`
	sqlInsertAttachment          = `INSERT INTO attachments(id, post_id, url, media_type, name, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectAttachmentsByPostId = `SELECT id, post_id, url, media_type, name, created_at FROM attachments WHERE post_id = ? ORDER BY created_at`
)

// CreateOrUpdateHashtag returns the id of the tag, creating it or bumping its usage count
func (db *DB) CreateOrUpdateHashtag(name string) (int64, error) {
	var hashtagId int64
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		return tx.QueryRow(sqlUpsertHashtag, strings.ToLower(strings.TrimPrefix(name, "#")), formatTime(time.Now())).Scan(&hashtagId)
	})
	return hashtagId, err
}

// LinkPostHashtags associates a post with tags. Existing links are ignored.
func (db *DB) LinkPostHashtags(postId uuid.UUID, hashtagIds []int64) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		for _, hashtagId := range hashtagIds {
			if _, err := tx.Exec(sqlInsertPostHashtag, postId.String(), hashtagId); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ReadHashtagsByPostId(postId uuid.UUID) (error, []string) {
	rows, err := db.db.Query(sqlSelectHashtagsByPostId, postId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err, tags
		}
		tags = append(tags, tag)
	}
	return rows.Err(), tags
}

func (db *DB) CreateAttachment(att *domain.Attachment) error {
	if att.Id == uuid.Nil {
		att.Id = uuid.New()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAttachment,
			att.Id.String(),
			att.PostId.String(),
			att.URL,
			nullString(att.MediaType),
			nullString(att.Name),
			formatTime(att.CreatedAt))
		return err
	})
}

func (db *DB) ReadAttachmentsByPostId(postId uuid.UUID) (error, []domain.Attachment) {
	rows, err := db.db.Query(sqlSelectAttachmentsByPostId, postId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var attachments []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		var mediaType, name sql.NullString
		var createdAt string
		if err := rows.Scan(&a.Id, &a.PostId, &a.URL, &mediaType, &name, &createdAt); err != nil {
			return err, attachments
		}
		a.MediaType = mediaType.String
		a.Name = name.String
		a.CreatedAt = parseTime(createdAt)
		attachments = append(attachments, a)
	}
	return rows.Err(), attachments
}
