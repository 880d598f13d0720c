package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/deemkeen/stegofed/domain"
	"github.com/deemkeen/stegofed/util"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const maxBusyRetries = 5

// Fixed-width UTC layout so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Accounts
const (
	sqlInsertAccount = `INSERT INTO accounts(id, username, publickey, display_name, summary, web_public_key, web_private_key, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountColumns = `SELECT id, username, publickey, display_name, summary, web_public_key, web_private_key, created_at FROM accounts`
	sqlSelectAccByPkHash    = sqlSelectAccountColumns + ` WHERE publickey = ?`
	sqlSelectAccById        = sqlSelectAccountColumns + ` WHERE id = ?`
	sqlSelectAccByUsername  = sqlSelectAccountColumns + ` WHERE username = ?`
	sqlCountAccounts        = `SELECT COUNT(*) FROM accounts`
)

// GetDB opens the shared database, configures it for concurrent federation traffic and runs migrations.
func GetDB() *DB {
	dbOnce.Do(func() {
		dbPath := util.ResolveFilePath("database.db")
		log.Printf("Using database at: %s", dbPath)

		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			panic(err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		var journalMode string
		if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		db.Exec("PRAGMA synchronous = NORMAL")
		db.Exec("PRAGMA cache_size = -64000")
		db.Exec("PRAGMA temp_store = MEMORY")
		db.Exec("PRAGMA busy_timeout = 5000")

		dbInstance = &DB{db: db}

		if err := dbInstance.RunMigrations(); err != nil {
			panic(err)
		}
	})

	return dbInstance
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	return db.db.Close()
}

// wrapTransaction runs f within a transaction, retrying from scratch while SQLite reports SQLITE_BUSY.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		err = db.runTransaction(f)
		if !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	log.Printf("error in transaction: giving up after %d busy retries: %s", maxBusyRetries, err)
	return err
}

func (db *DB) runTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		if !isBusy(err) && !errors.Is(err, domain.ErrDuplicate) && !errors.Is(err, sql.ErrNoRows) {
			log.Printf("error in transaction: %s", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		log.Printf("error committing transaction: %s", err)
		return err
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlitelib.SQLITE_BUSY
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateAccount inserts a local account together with its federated actor
func (db *DB) CreateAccount(acc *domain.Account, actor *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlInsertAccount,
			acc.Id.String(),
			acc.Username,
			acc.Publickey,
			nullString(acc.DisplayName),
			nullString(acc.Summary),
			acc.WebPublicKey,
			acc.WebPrivateKey,
			formatTime(acc.CreatedAt)); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		actor.UserId = &acc.Id
		if _, err := insertActor(tx, actor); err != nil {
			return fmt.Errorf("insert local actor: %w", err)
		}
		return nil
	})
}

func scanAccount(row interface{ Scan(...any) error }) (error, *domain.Account) {
	var acc domain.Account
	var publickey, displayName, summary, webPublicKey, webPrivateKey sql.NullString
	var createdAt string
	err := row.Scan(&acc.Id, &acc.Username, &publickey, &displayName, &summary, &webPublicKey, &webPrivateKey, &createdAt)
	if err != nil {
		return err, nil
	}
	acc.Publickey = publickey.String
	acc.DisplayName = displayName.String
	acc.Summary = summary.String
	acc.WebPublicKey = webPublicKey.String
	acc.WebPrivateKey = webPrivateKey.String
	acc.CreatedAt = parseTime(createdAt)
	return nil, &acc
}

func (db *DB) ReadAccByPkHash(pkHash string) (error, *domain.Account) {
	return scanAccount(db.db.QueryRow(sqlSelectAccByPkHash, pkHash))
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	return scanAccount(db.db.QueryRow(sqlSelectAccById, id.String()))
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	return scanAccount(db.db.QueryRow(sqlSelectAccByUsername, username))
}

func (db *DB) CountAccounts() (int, error) {
	var n int
	err := db.db.QueryRow(sqlCountAccounts).Scan(&n)
	return n, err
}
