package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"econglobe.io/explorer/internal/catalog"
)

var ErrDuplicateEmail = errors.New("email already registered")

// SQLStore keeps users and dashboard items in SQLite or Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open picks the driver from the URL: postgres:// and postgresql:// use pgx,
// anything else is treated as a SQLite data source name.
func Open(ctx context.Context, databaseURL string) (*SQLStore, error) {
	driver := "sqlite3"
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		driver = "pgx"
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		// One connection keeps :memory: databases coherent and serialises writes.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err = s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        email TEXT UNIQUE NOT NULL,
        display_name TEXT NOT NULL,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS dashboards (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        type TEXT NOT NULL CHECK (type IN ('country', 'chart')),
        country_id TEXT NOT NULL,
        country_iso2 TEXT NOT NULL,
        country_name TEXT NOT NULL,
        indicator_id TEXT,
        indicator_name TEXT,
        created_at TIMESTAMP NOT NULL,
        CHECK ((type = 'chart') = (indicator_id IS NOT NULL))
    )`,
	`CREATE INDEX IF NOT EXISTS dashboards_user_id ON dashboards (user_id)`,
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// User methods

const userColumns = "id, email, display_name, password_hash, created_at"

func (s *SQLStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)"),
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail returns nil, nil when no user has that email.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByID returns nil, nil when the user does not exist.
func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *SQLStore) getUser(ctx context.Context, column, value string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+userColumns+" FROM users WHERE "+column+" = ?"), value).
		Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLStore) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE users SET display_name = ? WHERE id = ?"), displayName, userID)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user %s not found, display name not updated", userID)
	}
	return nil
}

// Dashboard item methods

const itemColumns = "id, user_id, type, country_id, country_iso2, country_name, indicator_id, indicator_name, created_at"

// CreateSavedItem assigns the item's ID and CreatedAt and stores it.
func (s *SQLStore) CreateSavedItem(ctx context.Context, item *SavedItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now().UTC()

	var indicatorID, indicatorName sql.NullString
	if item.Indicator != nil {
		indicatorID = sql.NullString{String: item.Indicator.ID, Valid: true}
		indicatorName = sql.NullString{String: item.Indicator.Name, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO dashboards ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		item.ID, item.UserID, string(item.Type),
		item.Country.ID, item.Country.ISO2Code, item.Country.Name,
		indicatorID, indicatorName, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert saved item: %w", err)
	}
	return nil
}

func (s *SQLStore) ListSavedItemsByUser(ctx context.Context, userID string) ([]SavedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+itemColumns+" FROM dashboards WHERE user_id = ? ORDER BY created_at ASC, id ASC"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved items: %w", err)
	}
	defer rows.Close()

	items := []SavedItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved items: %w", err)
	}
	return items, nil
}

// GetSavedItem returns nil, nil when the item does not exist.
func (s *SQLStore) GetSavedItem(ctx context.Context, id string) (*SavedItem, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+itemColumns+" FROM dashboards WHERE id = ?"), id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// DeleteSavedItem removes the user's item. Deleting a missing item is not an
// error; the boolean reports whether a row went away.
func (s *SQLStore) DeleteSavedItem(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind("DELETE FROM dashboards WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete saved item: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (SavedItem, error) {
	var item SavedItem
	var itemType string
	var indicatorID, indicatorName sql.NullString
	err := row.Scan(&item.ID, &item.UserID, &itemType,
		&item.Country.ID, &item.Country.ISO2Code, &item.Country.Name,
		&indicatorID, &indicatorName, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SavedItem{}, err
		}
		return SavedItem{}, fmt.Errorf("failed to scan saved item row: %w", err)
	}
	item.Type = ItemType(itemType)
	if indicatorID.Valid {
		item.Indicator = &catalog.Indicator{ID: indicatorID.String, Name: indicatorName.String}
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
