package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLStore is a Store backed by an embedded SQLite file or a Postgres
// database. Node fields are stored as a JSON text column; the codec
// layer deals with whatever shape comes back out.
type SQLStore struct {
	db       *sql.DB
	driver   string
	postgres bool
	logger   *zap.Logger
}

var _ Store = (*SQLStore)(nil)

// SQLConfig holds SQL store configuration.
type SQLConfig struct {
	Driver         string // "sqlite" or "postgres"
	DBPath         string // for SQLite
	DSN            string // for Postgres
	MigrationsPath string
}

// NewSQLStore opens the database, applies pragmas/pool settings per
// driver, and runs any pending migrations.
func NewSQLStore(cfg SQLConfig, logger *zap.Logger) (*SQLStore, error) {
	var sqlDB *sql.DB
	var err error

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		sqlDB, err = sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}

		// SQLite supports only one writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)

		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, pragma := range pragmas {
			if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
			}
		}

	case "postgres", "pgx":
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres database: %w", err)
		}

		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Minute)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s (expected 'sqlite' or 'postgres')", driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{
		db:       sqlDB,
		driver:   driver,
		postgres: driver == "postgres" || driver == "pgx",
		logger:   logger,
	}

	if cfg.MigrationsPath != "" {
		if err := store.runMigrations(ctx, cfg.MigrationsPath); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	logger.Info("Graph store initialized",
		zap.String("driver", driver),
		zap.String("path", cfg.DBPath),
		zap.String("dsn_host", maskDSN(cfg.DSN)))
	return store, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database is reachable.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind converts ? placeholders to $N for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// GetNode fetches a node by id.
func (s *SQLStore) GetNode(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, type, fields, created_at, updated_at FROM nodes WHERE id = ?`), id)

	var n Node
	var fieldsText string
	if err := row.Scan(&n.ID, &n.Type, &fieldsText, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsText), &n.Fields); err != nil {
		s.logger.Warn("Node has malformed fields payload, substituting empty",
			zap.String("node_id", id), zap.Error(err))
		n.Fields = make(Fields)
	}
	return &n, nil
}

// CreateNode inserts a node, assigning an id if empty.
func (s *SQLStore) CreateNode(ctx context.Context, node *Node) error {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if node.Fields == nil {
		node.Fields = make(Fields)
	}
	fieldsText, err := json.Marshal(node.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO nodes (id, type, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		node.ID, node.Type, string(fieldsText), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

// UpdateNode merges fields into the stored payload.
func (s *SQLStore) UpdateNode(ctx context.Context, id string, fields Fields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, s.rebind(`SELECT fields FROM nodes WHERE id = ?`), id)
	var fieldsText string
	if err := row.Scan(&fieldsText); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read node fields: %w", err)
	}

	existing := make(Fields)
	if err := json.Unmarshal([]byte(fieldsText), &existing); err != nil {
		s.logger.Warn("Node has malformed fields payload, replacing",
			zap.String("node_id", id), zap.Error(err))
		existing = make(Fields)
	}
	for k, v := range fields {
		existing[k] = v
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		s.rebind(`UPDATE nodes SET fields = ?, updated_at = ? WHERE id = ?`),
		string(merged), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	return tx.Commit()
}

// DeleteNode removes a node and its edges.
func (s *SQLStore) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM nodes WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, s.rebind(`DELETE FROM edges WHERE from_id = ? OR to_id = ?`), id, id)
	if err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	return tx.Commit()
}

// ListNodes returns all nodes of a type ordered by creation time.
func (s *SQLStore) ListNodes(ctx context.Context, nodeType string) ([]*Node, error) {
	query := `SELECT id, type, fields, created_at, updated_at FROM nodes ORDER BY created_at, id`
	args := []any{}
	if nodeType != "" {
		query = `SELECT id, type, fields, created_at, updated_at FROM nodes WHERE type = ? ORDER BY created_at, id`
		args = append(args, nodeType)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		var n Node
		var fieldsText string
		if err := rows.Scan(&n.ID, &n.Type, &fieldsText, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsText), &n.Fields); err != nil {
			s.logger.Warn("Node has malformed fields payload, substituting empty",
				zap.String("node_id", n.ID), zap.Error(err))
			n.Fields = make(Fields)
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// GetEdges returns edges touching nodeID.
func (s *SQLStore) GetEdges(ctx context.Context, nodeID, edgeType string) ([]*Edge, error) {
	query := `SELECT id, type, from_id, to_id, created_at FROM edges WHERE (from_id = ? OR to_id = ?)`
	args := []any{nodeID, nodeID}
	if edgeType != "" {
		query += ` AND type = ?`
		args = append(args, edgeType)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.Type, &e.From, &e.To, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

// CreateEdge inserts an edge, assigning an id if empty.
func (s *SQLStore) CreateEdge(ctx context.Context, edge *Edge) error {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO edges (id, type, from_id, to_id, created_at) VALUES (?, ?, ?, ?, ?)`),
		edge.ID, edge.Type, edge.From, edge.To, edge.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// DeleteEdge removes an edge by id.
func (s *SQLStore) DeleteEdge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM edges WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// maskDSN returns a masked version of the DSN for logging (hides password)
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if strings.Contains(dsn, "@") {
		parts := strings.Split(dsn, "@")
		if len(parts) > 1 {
			return "***@" + parts[1]
		}
	}
	return "***"
}

// runMigrations executes all pending SQL migration files
func (s *SQLStore) runMigrations(ctx context.Context, migrationsPath string) error {
	// Use postgres subdirectory for Postgres migrations
	if s.postgres {
		migrationsPath = filepath.Join(migrationsPath, "postgres")
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	appliedMigrations := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedMigrations[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating migrations: %w", err)
	}

	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		s.logger.Warn("Migrations directory does not exist, skipping migrations",
			zap.String("path", migrationsPath))
		return nil
	}

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		version := strings.TrimSuffix(filename, ".sql")

		if appliedMigrations[version] {
			continue
		}

		s.logger.Info("Applying migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsPath, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx,
			s.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", filename, err)
		}
	}
	return nil
}
