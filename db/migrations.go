package db

import (
	"database/sql"
	"log"
)

// Schema. Timestamps are RFC3339 text in UTC, ids are uuid text.
const (
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		publickey TEXT UNIQUE,
		display_name TEXT,
		summary TEXT,
		web_public_key TEXT,
		web_private_key TEXT,
		created_at TEXT NOT NULL
	)`

	// Every federated identity, local or remote. Local rows carry user_id.
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS actors (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		display_name TEXT,
		summary TEXT,
		avatar_url TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		public_key_pem TEXT,
		user_id TEXT UNIQUE,
		kind TEXT NOT NULL DEFAULT 'Person',
		last_fetched_at TEXT,
		created_at TEXT NOT NULL
	)`

	sqlCreateActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_actors_username ON actors(username);
		CREATE INDEX IF NOT EXISTS idx_actors_domain ON actors(domain);
	`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		actor_id TEXT NOT NULL,
		content TEXT NOT NULL,
		url TEXT,
		parent_id TEXT,
		sensitive INTEGER DEFAULT 0,
		audience TEXT,
		like_count INTEGER DEFAULT 0,
		boost_count INTEGER DEFAULT 0,
		reply_count INTEGER DEFAULT 0,
		score REAL DEFAULT 0,
		preview_url TEXT,
		preview_title TEXT,
		preview_description TEXT,
		preview_image_url TEXT,
		created_at TEXT NOT NULL,
		edited_at TEXT
	)`

	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_actor_id ON posts(actor_id);
		CREATE INDEX IF NOT EXISTS idx_posts_parent_id ON posts(parent_id);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_posts_score ON posts(score DESC);
	`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		follower_id TEXT NOT NULL,
		following_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		UNIQUE(follower_id, following_id)
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_following_id ON follows(following_id, status);
		CREATE INDEX IF NOT EXISTS idx_follows_uri ON follows(uri);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(actor_id, post_id)
	)`

	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id);
	`

	sqlCreateBoostsTable = `CREATE TABLE IF NOT EXISTS boosts (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		uri TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(actor_id, post_id)
	)`

	sqlCreateBoostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_boosts_post_id ON boosts(post_id);
	`

	sqlCreateHashtagsTable = `CREATE TABLE IF NOT EXISTS hashtags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		usage_count INTEGER DEFAULT 0,
		last_used_at TEXT
	)`

	sqlCreatePostHashtagsTable = `CREATE TABLE IF NOT EXISTS post_hashtags (
		post_id TEXT NOT NULL,
		hashtag_id INTEGER NOT NULL,
		PRIMARY KEY (post_id, hashtag_id)
	)`

	sqlCreatePostHashtagsIndices = `
		CREATE INDEX IF NOT EXISTS idx_post_hashtags_hashtag_id ON post_hashtags(hashtag_id);
	`

	sqlCreateAttachmentsTable = `CREATE TABLE IF NOT EXISTS attachments (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL,
		url TEXT NOT NULL,
		media_type TEXT,
		name TEXT,
		created_at TEXT NOT NULL
	)`

	sqlCreateAttachmentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_attachments_post_id ON attachments(post_id);
	`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_username TEXT,
		actor_domain TEXT,
		post_id TEXT,
		post_uri TEXT,
		post_preview TEXT,
		read INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	)`

	sqlCreateNotificationsIndices = `
		CREATE INDEX IF NOT EXISTS idx_notifications_account_id ON notifications(account_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_notifications_actor_id ON notifications(actor_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_post_id ON notifications(post_id);
	`
)

// RunMigrations creates every table and index. Safe to run on every start.
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name string
			sql  string
		}{
			{"accounts", sqlCreateAccountsTable},
			{"actors", sqlCreateActorsTable},
			{"posts", sqlCreatePostsTable},
			{"follows", sqlCreateFollowsTable},
			{"likes", sqlCreateLikesTable},
			{"boosts", sqlCreateBoostsTable},
			{"hashtags", sqlCreateHashtagsTable},
			{"post_hashtags", sqlCreatePostHashtagsTable},
			{"attachments", sqlCreateAttachmentsTable},
			{"notifications", sqlCreateNotificationsTable},
		}
		for _, table := range tables {
			if err := db.createTableIfNotExists(tx, table.sql, table.name); err != nil {
				return err
			}
		}

		indices := []struct {
			name string
			sql  string
		}{
			{"actors", sqlCreateActorsIndices},
			{"posts", sqlCreatePostsIndices},
			{"follows", sqlCreateFollowsIndices},
			{"likes", sqlCreateLikesIndices},
			{"boosts", sqlCreateBoostsIndices},
			{"post_hashtags", sqlCreatePostHashtagsIndices},
			{"attachments", sqlCreateAttachmentsIndices},
			{"notifications", sqlCreateNotificationsIndices},
		}
		for _, index := range indices {
			if _, err := tx.Exec(index.sql); err != nil {
				log.Printf("Warning: Failed to create %s indices: %v", index.name, err)
			}
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
