package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the catalog and analysis history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "problems.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
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

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
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

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
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

// --- Catalogs ---

// SaveCatalog inserts rec, replacing any catalog already stored under its ID.
func (s *Store) SaveCatalog(rec CatalogRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("saving catalog: empty id")
	}
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	problems, err := json.Marshal(nonNil(rec.Problems))
	if err != nil {
		return fmt.Errorf("encoding problems: %w", err)
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	_, err = s.db.Exec(`
		INSERT INTO catalogs (id, skill, tags, problems, problem_count, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			skill = excluded.skill,
			tags = excluded.tags,
			problems = excluded.problems,
			problem_count = excluded.problem_count,
			fetched_at = excluded.fetched_at`,
		rec.ID, rec.Skill, string(tags), string(problems), len(rec.Problems),
		rec.FetchedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// RecordCatalog stores a freshly fetched catalog. Results without an ID are
// ignored since nothing can refer back to them.
func (s *Store) RecordCatalog(q catalog.Query, r catalog.Result) error {
	if r.ID == "" {
		return nil
	}
	return s.SaveCatalog(CatalogRecord{
		ID:        r.ID,
		Skill:     string(q.Skill),
		Tags:      q.Tags.Slice(),
		Problems:  r.Problems,
		FetchedAt: time.Now(),
	})
}

const catalogColumns = `c.id, c.skill, c.tags, c.problem_count, c.fetched_at,
	(SELECT COUNT(*) FROM analyses a WHERE a.catalog_id = c.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanCatalog(row scanner, extra ...any) (CatalogRecord, error) {
	var rec CatalogRecord
	var tags, fetchedAt string
	dest := append([]any{&rec.ID, &rec.Skill, &tags, &rec.ProblemCount, &fetchedAt, &rec.Analyses}, extra...)
	if err := row.Scan(dest...); err != nil {
		return CatalogRecord{}, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return CatalogRecord{}, fmt.Errorf("decoding tags: %w", err)
	}
	t, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return CatalogRecord{}, fmt.Errorf("parsing fetched_at: %w", err)
	}
	rec.FetchedAt = t
	return rec, nil
}

// GetCatalog loads the catalog with the given ID, problems included.
func (s *Store) GetCatalog(id string) (CatalogRecord, error) {
	var problems string
	row := s.db.QueryRow(`SELECT `+catalogColumns+`, c.problems FROM catalogs c WHERE c.id = ?`, id)
	rec, err := scanCatalog(row, &problems)
	if err == sql.ErrNoRows {
		return CatalogRecord{}, ErrNotFound
	}
	if err != nil {
		return CatalogRecord{}, err
	}
	if err := json.Unmarshal([]byte(problems), &rec.Problems); err != nil {
		return CatalogRecord{}, fmt.Errorf("decoding problems: %w", err)
	}
	return rec, nil
}

// LatestCatalog loads the most recently fetched catalog.
func (s *Store) LatestCatalog() (CatalogRecord, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM catalogs ORDER BY fetched_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return CatalogRecord{}, ErrNotFound
	}
	if err != nil {
		return CatalogRecord{}, err
	}
	return s.GetCatalog(id)
}

// ListCatalogs returns up to limit catalogs, newest first. Problems are not
// loaded; ProblemCount is.
func (s *Store) ListCatalogs(limit int) ([]CatalogRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+catalogColumns+` FROM catalogs c
		ORDER BY c.fetched_at DESC, c.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CatalogRecord
	for rows.Next() {
		rec, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// DeleteCatalog removes a catalog and its analysis records.
func (s *Store) DeleteCatalog(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM catalogs WHERE id = ?`, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if _, err := tx.Exec(`DELETE FROM analyses WHERE catalog_id = ?`, id); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- Analyses ---

// RecordAnalysis notes that the analysis of catalogID was fetched and held
// images images. The bundle itself is never stored.
func (s *Store) RecordAnalysis(catalogID string, images int) error {
	_, err := s.db.Exec(`INSERT INTO analyses (catalog_id, image_count, requested_at) VALUES (?, ?, ?)`,
		catalogID, images, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListAnalyses returns the analyses recorded for catalogID, newest first.
func (s *Store) ListAnalyses(catalogID string) ([]AnalysisRecord, error) {
	rows, err := s.db.Query(`SELECT id, catalog_id, image_count, requested_at FROM analyses
		WHERE catalog_id = ? ORDER BY requested_at DESC, id DESC`, catalogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AnalysisRecord
	for rows.Next() {
		var a AnalysisRecord
		var requestedAt string
		if err := rows.Scan(&a.ID, &a.CatalogID, &a.Images, &requestedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, requestedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing requested_at: %w", err)
		}
		a.RequestedAt = t
		results = append(results, a)
	}
	return results, rows.Err()
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
