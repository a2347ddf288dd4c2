package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"

	"purescan-service/config"
	"purescan-service/models"
)

var (
	// ErrUserNotFound is returned when no durable record exists for the
	// user; callers treat it as "logged out".
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an already known email.
	ErrEmailTaken = errors.New("email already registered")
)

// storageKeyPrefix namespaces the serialized profile records. The suffix is
// the user id; the full key is the single durable key per account.
const storageKeyPrefix = "purescan_user:"

// Database wraps the MySQL connection holding user profiles. The profile is
// stored as one serialized JSON document per user under a fixed key -- the
// only durable state the service keeps. Scan history is session-scoped and
// lives in the history package.
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	var waitInterval time.Duration = 1 * time.Second
	for {
		if err := db.Ping(); err == nil {
			break // Connection successful
		} else {
			log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, err)
		}
		time.Sleep(waitInterval)
		waitInterval *= 2 // Exponential backoff: 1s, 2s, 4s, 8s, ...
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewFromDB wraps an existing connection; used by tests.
func NewFromDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateUsersTable creates the users table if it doesn't exist
func (d *Database) CreateUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		storage_key VARCHAR(128) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		profile TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (storage_key),
		UNIQUE INDEX idx_users_email (email),
		INDEX idx_users_user_id (user_id)
	)`

	_, err := d.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// CreateUser inserts a new account with its initial profile.
func (d *Database) CreateUser(ctx context.Context, user models.User, passwordHash string) error {
	profile, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	query := `
	INSERT INTO users (storage_key, user_id, email, password_hash, profile)
	VALUES (?, ?, ?, ?, ?)`

	_, err = d.db.ExecContext(ctx, query, storageKeyPrefix+user.ID, user.ID, user.Email, passwordHash, profile)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the stored profile and password hash for a login
// attempt.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (models.User, string, error) {
	query := `SELECT profile, password_hash FROM users WHERE email = ?`

	var profile []byte
	var passwordHash string
	err := d.db.QueryRowContext(ctx, query, email).Scan(&profile, &passwordHash)
	if err == sql.ErrNoRows {
		return models.User{}, "", ErrUserNotFound
	}
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to query user: %w", err)
	}

	user, err := decodeProfile(profile)
	if err != nil {
		return models.User{}, "", err
	}
	return user, passwordHash, nil
}

// GetProfile loads the serialized profile for the user id. ErrUserNotFound
// means the durable key is absent, i.e. logged out.
func (d *Database) GetProfile(ctx context.Context, userID string) (models.User, error) {
	query := `SELECT profile FROM users WHERE storage_key = ?`

	var profile []byte
	err := d.db.QueryRowContext(ctx, query, storageKeyPrefix+userID).Scan(&profile)
	if err == sql.ErrNoRows {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query profile: %w", err)
	}

	return decodeProfile(profile)
}

// SaveProfile replaces the serialized profile whole-value; profile updates
// never mutate individual fields in place.
func (d *Database) SaveProfile(ctx context.Context, user models.User) error {
	profile, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	query := `UPDATE users SET profile = ? WHERE storage_key = ?`

	result, err := d.db.ExecContext(ctx, query, profile, storageKeyPrefix+user.ID)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func decodeProfile(raw []byte) (models.User, error) {
	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return models.User{}, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	if user.Allergies == nil {
		user.Allergies = []string{}
	}
	return user, nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	// MySQL error 1062: duplicate entry for a unique key.
	return strings.Contains(err.Error(), "Error 1062") || strings.Contains(err.Error(), "Duplicate entry")
}
