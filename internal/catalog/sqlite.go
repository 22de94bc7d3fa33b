package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dbconfig "github.com/Kaushik-110000/eduapp/pkg/database"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

// VideoSession is a catalog row. Only its existence matters to chat; the other
// fields are kept so the catalog can be seeded and inspected.
type VideoSession struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	TutorID   string     `json:"tutor_id"`
	URL       string     `json:"url"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// SQLiteCatalog implements interfaces.Catalog over the local video_sessions table.
type SQLiteCatalog struct {
	db           *sql.DB
	logger       *zap.Logger
	writeChannel chan writeOperation // TECHNICAL: single writer for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewSQLiteCatalog opens the database, migrates and checks the schema, then starts the writer.
func NewSQLiteCatalog(config *dbconfig.Config, logger *zap.Logger) (*SQLiteCatalog, error) {
	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply catalog migrations: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog schema check failed: %w", err)
	}

	c := &SQLiteCatalog{
		db:           db,
		logger:       logger.Named("catalog.sqlite"),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.writeLoop()

	c.logger.Info("sqlite catalog ready", zap.String("path", config.DatabasePath))
	return c, nil
}

func (c *SQLiteCatalog) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case op := <-c.writeChannel:
			op.result <- op.operation(c.db)
		case <-c.shutdown:
			return
		}
	}
}

func (c *SQLiteCatalog) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrCatalogClosed
	}
	c.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case c.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-c.shutdown:
		return ErrCatalogClosed
	}

	select {
	case err := <-result:
		return err
	case <-c.shutdown:
		return ErrCatalogClosed
	}
}

// SessionExists reports whether a video session with this id is in the catalog.
func (c *SQLiteCatalog) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM video_sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query video session: %w", err)
	}
	return true, nil
}

// GetSession returns one catalog row.
func (c *SQLiteCatalog) GetSession(ctx context.Context, sessionID string) (*VideoSession, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, course_id, tutor_id, url, start_time, end_time
		FROM video_sessions
		WHERE id = ?
	`, sessionID)

	var session VideoSession
	var endTime sql.NullTime
	err := row.Scan(&session.ID, &session.CourseID, &session.TutorID, &session.URL, &session.StartTime, &endTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to query video session: %w", err)
	}
	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	return &session, nil
}

// RegisterSession inserts or replaces a catalog row. A session without an id
// is given a fresh uuid.
func (c *SQLiteCatalog) RegisterSession(ctx context.Context, session *VideoSession) error {
	if session == nil || session.CourseID == "" || session.URL == "" {
		return ErrInvalidSession
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}

	return c.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT OR REPLACE INTO video_sessions (id, course_id, tutor_id, url, start_time, end_time)
			VALUES (?, ?, ?, ?, ?, ?)
		`, session.ID, session.CourseID, session.TutorID, session.URL, session.StartTime, session.EndTime)
		if err != nil {
			return fmt.Errorf("failed to insert video session: %w", err)
		}
		return nil
	})
}

// HealthCheck pings the database and reads from the catalog table.
func (c *SQLiteCatalog) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_sessions").Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// DB exposes the handle for schema checks.
func (c *SQLiteCatalog) DB() *sql.DB {
	return c.db
}

// Close stops the writer and closes the database. Safe to call twice.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.shutdown)
	c.wg.Wait()

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
