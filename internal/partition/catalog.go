package partition

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
)

// Entry is the catalog record for one cached partition.
type Entry struct {
	Key       arxiv.PartitionKey `json:"key"`
	Path      string             `json:"path"`
	Rows      int64              `json:"rows"`
	Size      int64              `json:"size"`
	Revision  string             `json:"revision,omitempty"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Catalog records which partitions are cached, with their row counts and
// provenance. It is the authority for "is this partition cached".
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS partitions (
			category TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			path TEXT NOT NULL,
			rows INTEGER NOT NULL,
			size INTEGER NOT NULL,
			revision TEXT,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (category, year, month)
		);

		CREATE INDEX IF NOT EXISTS idx_partitions_period ON partitions(year, month);
	`
	_, err := db.Exec(schema)
	return err
}

const selectEntryFields = `category, year, month, path, rows, size, revision, fetched_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (Entry, error) {
	var (
		e        Entry
		revision sql.NullString
		fetched  int64
	)
	err := s.Scan(&e.Key.Category, &e.Key.Period.Year, &e.Key.Period.Month,
		&e.Path, &e.Rows, &e.Size, &revision, &fetched)
	if err != nil {
		return Entry{}, err
	}
	e.Revision = revision.String
	e.FetchedAt = time.Unix(fetched, 0).UTC()
	return e, nil
}

// Get returns the entry for key. The boolean is false when the partition is
// not cached.
func (c *Catalog) Get(key arxiv.PartitionKey) (Entry, bool, error) {
	row := c.db.QueryRow(`SELECT `+selectEntryFields+` FROM partitions
		WHERE category = ? AND year = ? AND month = ?`,
		key.Category, key.Period.Year, key.Period.Month)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("querying catalog for %s: %w", key, err)
	}
	return e, true, nil
}

// Put records a freshly cached partition, replacing any previous record.
func (c *Catalog) Put(e Entry) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO partitions (`+selectEntryFields+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Key.Category, e.Key.Period.Year, e.Key.Period.Month,
		e.Path, e.Rows, e.Size, nullableString(e.Revision), e.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording %s in catalog: %w", e.Key, err)
	}
	return nil
}

// Delete forgets a partition. Deleting an unknown partition is not an error.
func (c *Catalog) Delete(key arxiv.PartitionKey) error {
	_, err := c.db.Exec(`DELETE FROM partitions WHERE category = ? AND year = ? AND month = ?`,
		key.Category, key.Period.Year, key.Period.Month)
	if err != nil {
		return fmt.Errorf("removing %s from catalog: %w", key, err)
	}
	return nil
}

// List returns every entry ordered by category, then period.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT ` + selectEntryFields + ` FROM partitions
		ORDER BY category, year, month`)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MonthSummary counts the cached partitions of one month.
type MonthSummary struct {
	Subjects int   `json:"subjects"`
	Papers   int64 `json:"papers"`
}

// YearSummary groups month summaries under a year.
type YearSummary struct {
	Months map[string]MonthSummary `json:"months"`
	Total  int64                   `json:"total"`
}

// Summary describes everything in the cache by year and month.
type Summary struct {
	Years       map[string]*YearSummary `json:"years"`
	TotalPapers int64                   `json:"total_papers"`
	TotalFiles  int                     `json:"total_files"`
}

// Summary aggregates the catalog by year and month.
func (c *Catalog) Summary() (*Summary, error) {
	rows, err := c.db.Query(`SELECT year, month, COUNT(*), COALESCE(SUM(rows), 0)
		FROM partitions GROUP BY year, month ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("summarizing catalog: %w", err)
	}
	defer rows.Close()

	s := &Summary{Years: map[string]*YearSummary{}}
	for rows.Next() {
		var (
			year, month, files int
			papers             int64
		)
		if err := rows.Scan(&year, &month, &files, &papers); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		y := fmt.Sprintf("%04d", year)
		ys, ok := s.Years[y]
		if !ok {
			ys = &YearSummary{Months: map[string]MonthSummary{}}
			s.Years[y] = ys
		}
		ys.Months[fmt.Sprintf("%02d", month)] = MonthSummary{Subjects: files, Papers: papers}
		ys.Total += papers
		s.TotalPapers += papers
		s.TotalFiles += files
	}
	return s, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
