/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package library persists games in SQLite, one JSON document per game ID.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/quizbox/category"
	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound    = errors.New("game not found")
	ErrEmptyTitle  = errors.New("game title must not be empty")
	ErrClosed      = errors.New("library is closed")
	ErrInvalidSort = errors.New("invalid sort order")
	ErrInvalidGame = errors.New("invalid game")

	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Game is a titled list of categories.
type Game struct {
	ID         string              `json:"id" yaml:"id"`
	Title      string              `json:"title" yaml:"title"`
	Categories []category.Category `json:"categories" yaml:"categories"`
	Created    time.Time           `json:"created" yaml:"created"`
	Updated    time.Time           `json:"updated" yaml:"updated"`
}

// Validate checks the title and the category invariants.
func (g *Game) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidGame, ErrEmptyTitle)
	}
	if err := category.Validate(g.Categories); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGame, err)
	}
	return nil
}

// AnswerCount is the number of answers across all categories.
func (g *Game) AnswerCount() int {
	n := 0
	for _, c := range g.Categories {
		n += len(c.Answers)
	}
	return n
}

// NewID returns a fresh game identifier.
func NewID() string {
	return uuid.NewString()
}

// Config holds the options for opening a Library.
type Config struct {
	// Path is the SQLite database file, or ":memory:".
	Path string

	// EnableWAL turns on write-ahead logging. Ignored for in-memory databases.
	EnableWAL bool

	MaxOpenConns int
}

func (c *Config) setDefaults() {
	if c.Path == "" {
		c.Path = ":memory:"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 4
	}
	if c.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		c.MaxOpenConns = 1
		c.EnableWAL = false
	}
}

func (c *Config) dsn() string {
	dsn := c.Path
	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	if c.EnableWAL {
		params = append(params, "_journal_mode=WAL")
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + strings.Join(params, "&")
	}
	return dsn + "?" + strings.Join(params, "&")
}

// Library is a SQLite-backed key-value store of games.
type Library struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool

	now func() time.Time
}

// Open opens (creating if needed) the library described by cfg.
func Open(cfg Config) (*Library, error) {
	cfg.setDefaults()

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	l := &Library{db: db, now: time.Now}
	if err := l.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	return l, nil
}

func (l *Library) setupSchema() error {
	_, err := l.db.Exec(`
    CREATE TABLE IF NOT EXISTS games (
        id       TEXT PRIMARY KEY,
        title    TEXT NOT NULL,
        data     TEXT NOT NULL,
        created  INTEGER NOT NULL,
        updated  INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_games_title ON games (title);
    CREATE INDEX IF NOT EXISTS idx_games_created ON games (created);
    `)
	return err
}

// Close releases the database.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func (l *Library) check() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrClosed
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q querier, id string) (*Game, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM games WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	var g Game
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", id, err)
	}
	return &g, nil
}

func put(ctx context.Context, q querier, g *Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode game %s: %w", g.ID, err)
	}

	_, err = q.ExecContext(ctx, `
    INSERT INTO games (id, title, data, created, updated) VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET title = excluded.title, data = excluded.data, updated = excluded.updated`,
		g.ID, g.Title, string(data), g.Created.UnixNano(), g.Updated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store game %s: %w", g.ID, err)
	}
	return nil
}

// Get loads the game stored under id.
func (l *Library) Get(ctx context.Context, id string) (*Game, error) {
	if err := l.check(); err != nil {
		return nil, err
	}
	return get(ctx, l.db, id)
}

// Put validates and stores g, assigning an ID when it has none. Created is
// kept from any existing record; Updated is always refreshed.
func (l *Library) Put(ctx context.Context, g *Game) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	if g.Categories == nil {
		g.Categories = []category.Category{}
	}

	return l.update(ctx, func(tx *sql.Tx) error {
		now := l.now().UTC()
		existing, err := get(ctx, tx, g.ID)
		switch {
		case err == nil:
			g.Created = existing.Created
		case errors.Is(err, ErrNotFound):
			if g.Created.IsZero() {
				g.Created = now
			}
		default:
			return err
		}
		g.Updated = now
		return put(ctx, tx, g)
	})
}

// Delete removes the game stored under id.
func (l *Library) Delete(ctx context.Context, id string) error {
	if err := l.check(); err != nil {
		return err
	}

	res, err := l.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Duplicate stores a copy of game id under a new ID with " (Copy)" appended
// to its title.
func (l *Library) Duplicate(ctx context.Context, id string) (*Game, error) {
	g, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := &Game{
		Title:      g.Title + " (Copy)",
		Categories: make([]category.Category, len(g.Categories)),
	}
	for i, c := range g.Categories {
		dup.Categories[i] = c.Clone()
	}

	if err := l.Put(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// Sort orders the results of List.
type Sort string

const (
	SortNameAsc  Sort = "name-asc"
	SortNameDesc Sort = "name-desc"
	SortDateNew  Sort = "date-new"
	SortDateOld  Sort = "date-old"
)

func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortNameAsc, nil
	case SortNameAsc, SortNameDesc, SortDateNew, SortDateOld:
		return Sort(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

// ListOptions filters and orders List.
type ListOptions struct {
	// Search keeps only games whose title contains it, ignoring case.
	Search string
	Sort   Sort
}

// List returns the stored games matching opts.
func (l *Library) List(ctx context.Context, opts ListOptions) ([]*Game, error) {
	if err := l.check(); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `SELECT data FROM games`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	var games []*Game
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}

		var g Game
		if err := json.Unmarshal([]byte(data), &g); err != nil {
			return nil, fmt.Errorf("failed to decode game: %w", err)
		}
		if search != "" && !strings.Contains(strings.ToLower(g.Title), search) {
			continue
		}
		games = append(games, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	sortGames(games, opts.Sort)

	return games, nil
}

func sortGames(games []*Game, order Sort) {
	sort.SliceStable(games, func(i, j int) bool {
		a, b := games[i], games[j]
		switch order {
		case SortNameDesc:
			return strings.ToLower(a.Title) > strings.ToLower(b.Title)
		case SortDateNew:
			return a.Created.After(b.Created)
		case SortDateOld:
			return a.Created.Before(b.Created)
		default:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	})
}

func (l *Library) update(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
