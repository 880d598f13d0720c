package db

import (
	"database/sql"

	"github.com/deemkeen/stegofed/domain"
	"github.com/google/uuid"
)

const (
	sqlInsertNotification = `INSERT INTO notifications(id, account_id, notification_type, actor_id, actor_username, actor_domain,
								post_id, post_uri, post_preview, read, created_at)
							VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectNotificationsByAccountId = `SELECT id, account_id, notification_type, actor_id, actor_username, actor_domain,
											post_id, post_uri, post_preview, read, created_at
										FROM notifications WHERE account_id = ?
										ORDER BY created_at DESC LIMIT ?`
	sqlDeleteNotificationForPost = `DELETE FROM notifications WHERE account_id = ? AND actor_id = ? AND notification_type = ? AND post_id = ?`
	sqlDeleteNotificationNoPost  = `DELETE FROM notifications WHERE account_id = ? AND actor_id = ? AND notification_type = ? AND post_id IS NULL`
	sqlCountUnreadNotifications  = `SELECT COUNT(*) FROM notifications WHERE account_id = ? AND read = 0`
	sqlMarkAllNotificationsRead  = `UPDATE notifications SET read = 1 WHERE account_id = ?`
)

func (db *DB) CreateNotification(n *domain.Notification) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNotification,
			n.Id.String(),
			n.AccountId.String(),
			string(n.NotificationType),
			n.ActorId.String(),
			n.ActorUsername,
			n.ActorDomain,
			nullUUID(n.PostId),
			nullString(n.PostURI),
			nullString(n.PostPreview),
			boolToInt(n.Read),
			formatTime(n.CreatedAt))
		return err
	})
}

// DeleteNotification removes the notification an actor triggered on an account, optionally scoped to a post
func (db *DB) DeleteNotification(accountId, actorId uuid.UUID, notificationType domain.NotificationType, postId *uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var err error
		if postId != nil {
			_, err = tx.Exec(sqlDeleteNotificationForPost, accountId.String(), actorId.String(), string(notificationType), postId.String())
		} else {
			_, err = tx.Exec(sqlDeleteNotificationNoPost, accountId.String(), actorId.String(), string(notificationType))
		}
		return err
	})
}

func (db *DB) ReadNotificationsByAccountId(accountId uuid.UUID, limit int) (error, *[]domain.Notification) {
	rows, err := db.db.Query(sqlSelectNotificationsByAccountId, accountId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var notificationType, createdAt string
		var actorUsername, actorDomain, postURI, postPreview sql.NullString
		var postId uuid.NullUUID
		var read int
		if err := rows.Scan(&n.Id, &n.AccountId, &notificationType, &n.ActorId, &actorUsername, &actorDomain,
			&postId, &postURI, &postPreview, &read, &createdAt); err != nil {
			return err, &notifications
		}
		n.NotificationType = domain.NotificationType(notificationType)
		n.ActorUsername = actorUsername.String
		n.ActorDomain = actorDomain.String
		if postId.Valid {
			id := postId.UUID
			n.PostId = &id
		}
		n.PostURI = postURI.String
		n.PostPreview = postPreview.String
		n.Read = read == 1
		n.CreatedAt = parseTime(createdAt)
		notifications = append(notifications, n)
	}
	return rows.Err(), &notifications
}

func (db *DB) ReadUnreadNotificationCount(accountId uuid.UUID) (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountUnreadNotifications, accountId.String()).Scan(&count)
	return count, err
}

func (db *DB) MarkAllNotificationsRead(accountId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlMarkAllNotificationsRead, accountId.String())
		return err
	})
}
