package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsShorts/internal/domain"
	"NewsShorts/internal/ports"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	sqliteTimeLayout  = "2006-01-02T15:04:05.000000000Z"
	dayLayout         = "2006-01-02"
	pqUniqueViolation = "23505"
)

// SQLHistory persists history records and the keyword ledger in SQLite or Postgres.
// Writes are inserts only; the partial unique index on published rows enforces
// at most one published record per item.
type SQLHistory struct {
	db     *sql.DB
	driver string
	qb     sq.StatementBuilderType
	now    func() time.Time
}

var (
	_ ports.HistoryStore  = (*SQLHistory)(nil)
	_ ports.KeywordLedger = (*SQLHistory)(nil)
)

// Open connects to driver/dsn and runs pending migrations. For sqlite the dsn
// is a file path (parent directories are created) or ":memory:".
func Open(driver, dsn string) (*SQLHistory, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "", DriverSQLite, "sqlite3":
		return openSQLite(dsn)
	case DriverPostgres, "postgresql":
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(dsn string) (*SQLHistory, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection avoids "database is locked" inside a process and keeps
	// ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	// Concurrent runs wait on each other's appends instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	return newSQLHistory(db, DriverSQLite)
}

func openPostgres(dsn string) (*SQLHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return newSQLHistory(db, DriverPostgres)
}

// placeholderFor returns the bind parameter style of driver.
func placeholderFor(driver string) sq.PlaceholderFormat {
	if driver == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

func newSQLHistory(db *sql.DB, driver string) (*SQLHistory, error) {
	h := &SQLHistory{
		db:     db,
		driver: driver,
		qb:     sq.StatementBuilder.PlaceholderFormat(placeholderFor(driver)),
		now:    time.Now,
	}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return h, nil
}

// Close closes the underlying database connection.
func (h *SQLHistory) Close() error {
	return h.db.Close()
}

// IsProcessed reports whether itemID has a published record.
func (h *SQLHistory) IsProcessed(ctx context.Context, itemID string) (bool, error) {
	query, args, err := h.qb.Select("1").
		From("history").
		Where(sq.Eq{"item_id": itemID, "outcome": string(domain.OutcomePublished)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build processed query: %w", err)
	}

	var one int
	err = h.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed: %w", err)
	}
	return true, nil
}

// Commit appends record. A second published record for an item fails with
// domain.ErrAlreadyPublished.
func (h *SQLHistory) Commit(ctx context.Context, record domain.HistoryRecord) error {
	if record.ItemID == "" {
		return fmt.Errorf("commit: empty item id")
	}
	processedAt := record.ProcessedAt
	if processedAt.IsZero() {
		processedAt = h.now()
	}

	var remote any
	if record.RemoteVideoID != "" {
		remote = record.RemoteVideoID
	}

	query, args, err := h.qb.Insert("history").
		Columns("run_id", "item_id", "outcome", "remote_video_id", "title", "source_url", "reason", "processed_at").
		Values(record.RunID, record.ItemID, string(record.Outcome), remote, record.Title, record.SourceURL, record.Reason, h.timeValue(processedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("commit %s: %w", record.ItemID, domain.ErrAlreadyPublished)
		}
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *SQLHistory) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := h.qb.Select("run_id", "item_id", "outcome", "remote_video_id", "title", "source_url", "reason", "processed_at").
		From("history").
		OrderBy("processed_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec         domain.HistoryRecord
			outcome     string
			remote      sql.NullString
			processedAt any
		)
		if err := rows.Scan(&rec.RunID, &rec.ItemID, &outcome, &remote, &rec.Title, &rec.SourceURL, &rec.Reason, &processedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Outcome = domain.Outcome(outcome)
		rec.RemoteVideoID = remote.String
		if rec.ProcessedAt, err = parseTime(processedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// Prune deletes history and keyword rows older than the retention cutoff.
func (h *SQLHistory) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := h.qb.Delete("history").
		Where(sq.Lt{"processed_at": h.timeValue(olderThan)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune: %w", err)
	}
	res, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, _ := res.RowsAffected()

	query, args, err = h.qb.Delete("keyword_history").
		Where(sq.Lt{"day": olderThan.UTC().Format(dayLayout)}).
		ToSql()
	if err != nil {
		return removed, fmt.Errorf("build keyword prune: %w", err)
	}
	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return removed, fmt.Errorf("prune keywords: %w", err)
	}
	return removed, nil
}

// SeenToday reports whether key was marked on day.
func (h *SQLHistory) SeenToday(ctx context.Context, key string, day time.Time) (bool, error) {
	query, args, err := h.qb.Select("1").
		From("keyword_history").
		Where(sq.Eq{"keyword": key, "day": day.Format(dayLayout)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build keyword query: %w", err)
	}

	var one int
	err = h.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query keyword: %w", err)
	}
	return true, nil
}

// Mark records key for day; marking twice is a no-op.
func (h *SQLHistory) Mark(ctx context.Context, key string, day time.Time) error {
	query, args, err := h.qb.Insert("keyword_history").
		Columns("keyword", "day", "marked_at").
		Values(key, day.Format(dayLayout), h.timeValue(h.now())).
		Suffix("ON CONFLICT (keyword, day) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build keyword insert: %w", err)
	}
	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert keyword: %w", err)
	}
	return nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (h *SQLHistory) AppliedMigrations() ([]int, error) {
	rows, err := h.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (h *SQLHistory) migrate() error {
	bootstrap := `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := h.db.Exec(bootstrap); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	dir := "migrations/" + h.driver
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		query, args, err := h.qb.Select("COUNT(*)").From("schema_version").Where(sq.Eq{"version": version}).ToSql()
		if err != nil {
			return fmt.Errorf("build migration check: %w", err)
		}
		var exists int
		if err := h.db.QueryRow(query, args...).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(dir + "/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := h.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		insert, args, err := h.qb.Insert("schema_version").Columns("version").Values(version).ToSql()
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("build migration record: %w", err)
		}
		if _, err := tx.Exec(insert, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

func (h *SQLHistory) timeValue(t time.Time) any {
	if h.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func parseTimeString(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse processed_at %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
