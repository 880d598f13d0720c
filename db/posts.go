package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlPostColumns = `id, uri, actor_id, content, url, parent_id, sensitive, audience, like_count, boost_count, reply_count, score,
						preview_url, preview_title, preview_description, preview_image_url, created_at, edited_at`
	sqlInsertPost = `INSERT INTO posts(id, uri, actor_id, content, url, parent_id, sensitive, audience, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
						ON CONFLICT(uri) DO NOTHING`
	sqlSelectPostByURI      = `SELECT ` + sqlPostColumns + ` FROM posts WHERE uri = ?`
	sqlSelectPostById       = `SELECT ` + sqlPostColumns + ` FROM posts WHERE id = ?`
	sqlSelectPostsByActorId = `SELECT ` + sqlPostColumns + ` FROM posts WHERE actor_id = ? ORDER BY created_at DESC LIMIT ?`
	sqlSelectHotPosts       = `SELECT ` + sqlPostColumns + ` FROM posts WHERE parent_id IS NULL ORDER BY score DESC, created_at DESC LIMIT ?`
	sqlCountLocalPosts      = `SELECT COUNT(*) FROM posts JOIN actors ON actors.id = posts.actor_id WHERE actors.user_id IS NOT NULL`
	sqlUpdatePostContent    = `UPDATE posts SET content = ?, sensitive = ?, edited_at = ? WHERE id = ?`
	sqlUpdatePostPreview    = `UPDATE posts SET preview_url = ?, preview_title = ?, preview_description = ?, preview_image_url = ? WHERE id = ?`
	sqlUpdatePostScore      = `UPDATE posts SET score = ? WHERE id = ?`
	sqlAppendPostContent    = `UPDATE posts SET content = content || ? WHERE id = ?`
	sqlRecountPost          = `UPDATE posts SET
									like_count = (SELECT COUNT(*) FROM likes WHERE post_id = posts.id),
									boost_count = (SELECT COUNT(*) FROM boosts WHERE post_id = posts.id),
									reply_count = (SELECT COUNT(*) FROM posts AS r WHERE r.parent_id = posts.id)
								WHERE id = ?`
	sqlDeletePostLikes         = `DELETE FROM likes WHERE post_id = ?`
	sqlDeletePostBoosts        = `DELETE FROM boosts WHERE post_id = ?`
	sqlDeletePostAttachments   = `DELETE FROM attachments WHERE post_id = ?`
	sqlDeletePostHashtagLinks  = `DELETE FROM post_hashtags WHERE post_id = ?`
	sqlDeletePostNotifications = `DELETE FROM notifications WHERE post_id = ?`
	sqlDetachReplies           = `UPDATE posts SET parent_id = NULL WHERE parent_id = ?`
	sqlDeletePost              = `DELETE FROM posts WHERE id = ?`
)

// CreatePost inserts a post. Returns domain.ErrDuplicate when a post with the same origin URI exists.
func (db *DB) CreatePost(post *domain.Post) error {
	if post.Id == uuid.Nil {
		post.Id = uuid.New()
	}
	var audience sql.NullString
	if len(post.Audience) > 0 {
		buf, err := json.Marshal(post.Audience)
		if err != nil {
			return err
		}
		audience = sql.NullString{String: string(buf), Valid: true}
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertPost,
			post.Id.String(),
			post.URI,
			post.ActorId.String(),
			post.Content,
			nullString(post.URL),
			nullUUID(post.ParentId),
			boolToInt(post.Sensitive),
			audience,
			formatTime(post.CreatedAt))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrDuplicate
		}
		return nil
	})
}

func scanPost(row interface{ Scan(...any) error }) (error, *domain.Post) {
	var p domain.Post
	var url, audience, previewURL, previewTitle, previewDescription, previewImage, editedAt sql.NullString
	var parentId uuid.NullUUID
	var sensitive int
	var createdAt string
	err := row.Scan(&p.Id, &p.URI, &p.ActorId, &p.Content, &url, &parentId, &sensitive, &audience,
		&p.LikeCount, &p.BoostCount, &p.ReplyCount, &p.Score,
		&previewURL, &previewTitle, &previewDescription, &previewImage, &createdAt, &editedAt)
	if err != nil {
		return err, nil
	}
	p.URL = url.String
	if parentId.Valid {
		id := parentId.UUID
		p.ParentId = &id
	}
	p.Sensitive = sensitive == 1
	if audience.Valid {
		json.Unmarshal([]byte(audience.String), &p.Audience)
	}
	if previewURL.Valid {
		p.Preview = &domain.LinkPreview{
			URL:         previewURL.String,
			Title:       previewTitle.String,
			Description: previewDescription.String,
			ImageURL:    previewImage.String,
		}
	}
	p.CreatedAt = parseTime(createdAt)
	if editedAt.Valid {
		t := parseTime(editedAt.String)
		p.EditedAt = &t
	}
	return nil, &p
}

func (db *DB) scanPosts(rows *sql.Rows) (error, *[]domain.Post) {
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		err, p := scanPost(rows)
		if err != nil {
			return err, &posts
		}
		posts = append(posts, *p)
	}
	return rows.Err(), &posts
}

func (db *DB) ReadPostByURI(uri string) (error, *domain.Post) {
	return scanPost(db.db.QueryRow(sqlSelectPostByURI, uri))
}

func (db *DB) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	return scanPost(db.db.QueryRow(sqlSelectPostById, id.String()))
}

func (db *DB) ReadPostsByActorId(actorId uuid.UUID, limit int) (error, *[]domain.Post) {
	rows, err := db.db.Query(sqlSelectPostsByActorId, actorId.String(), limit)
	if err != nil {
		return err, nil
	}
	return db.scanPosts(rows)
}

// CountLocalPosts counts posts authored by local accounts
func (db *DB) CountLocalPosts() (int, error) {
	var n int
	err := db.db.QueryRow(sqlCountLocalPosts).Scan(&n)
	return n, err
}

// ReadHotPosts returns top-level posts ordered by ranking score
func (db *DB) ReadHotPosts(limit int) (error, *[]domain.Post) {
	rows, err := db.db.Query(sqlSelectHotPosts, limit)
	if err != nil {
		return err, nil
	}
	return db.scanPosts(rows)
}

func (db *DB) UpdatePostContent(id uuid.UUID, content string, sensitive bool, editedAt time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostContent, content, boolToInt(sensitive), formatTime(editedAt), id.String())
		return err
	})
}

// AppendPostContent appends an HTML fragment (e.g. a link anchor) to a post's content
func (db *DB) AppendPostContent(id uuid.UUID, fragment string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAppendPostContent, fragment, id.String())
		return err
	})
}

func (db *DB) UpdatePostPreview(id uuid.UUID, preview *domain.LinkPreview) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostPreview,
			preview.URL,
			nullString(preview.Title),
			nullString(preview.Description),
			nullString(preview.ImageURL),
			id.String())
		return err
	})
}

func (db *DB) UpdatePostScore(id uuid.UUID, score float64) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdatePostScore, score, id.String())
		return err
	})
}

// RecountPost recomputes the denormalized like, boost and reply counters from their rows
func (db *DB) RecountPost(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRecountPost, id.String())
		return err
	})
}

// DeletePost removes a post with its reactions, attachments, hashtag links and notifications.
// Replies keep existing but lose their parent edge.
func (db *DB) DeletePost(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		postId := id.String()
		for _, query := range []string{
			sqlDeletePostLikes,
			sqlDeletePostBoosts,
			sqlDeletePostAttachments,
			sqlDeletePostHashtagLinks,
			sqlDeletePostNotifications,
			sqlDetachReplies,
			sqlDeletePost,
		} {
			if _, err := tx.Exec(query, postId); err != nil {
				return err
			}
		}
		return nil
	})
}
