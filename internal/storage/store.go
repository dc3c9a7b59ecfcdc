package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store persists ledger entries. The hash primary key is the only guard against
// duplicate writes; there is no in-process locking.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and applies the schema.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps per-connection pragmas in effect and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := configure(db, d); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db, d); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB, d dialect) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, p := range d.pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB, d dialect) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const entryColumns = `hash, from_addr, to_addr, amount, asset_symbol, block_number, status, observed_at`

// Upsert inserts e unless an entry with the same hash exists. Either way the
// stored entry is returned; inserted reports whether this call wrote it.
func (s *Store) Upsert(ctx context.Context, e ledger.Entry) (ledger.Entry, bool, error) {
	if err := validateEntry(e); err != nil {
		return ledger.Entry{}, false, err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(s.dialect.insertEntry),
		e.Hash, e.From, e.To, e.Amount, e.AssetSymbol, e.BlockNumber, string(e.Status), e.ObservedAt.Unix())
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("upsert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("upsert entry rows: %w", err)
	}

	stored, ok, err := s.GetEntry(ctx, e.Hash)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if !ok {
		return ledger.Entry{}, false, fmt.Errorf("upsert entry: %s missing after write", e.Hash)
	}
	return stored, n > 0, nil
}

// GetEntry returns the entry stored under hash.
func (s *Store) GetEntry(ctx context.Context, hash string) (ledger.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`
SELECT `+entryColumns+` FROM ledger_entries WHERE hash = ?;
`), hash)
	e, err := scanEntry(row)
	switch {
	case err == nil:
		return e, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return ledger.Entry{}, false, nil
	default:
		return ledger.Entry{}, false, fmt.Errorf("get entry: %w", err)
	}
}

// FindByAddress returns entries sent or received by address, newest first.
func (s *Store) FindByAddress(ctx context.Context, address string) ([]ledger.Entry, error) {
	addr := strings.ToLower(address)
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
SELECT `+entryColumns+` FROM ledger_entries
WHERE from_addr = ? OR to_addr = ?
ORDER BY observed_at DESC, block_number DESC, hash ASC;
`), addr, addr)
	if err != nil {
		return nil, fmt.Errorf("find by address: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find by address: %w", err)
	}
	return entries, nil
}

// Stats summarizes the ledger contents.
type Stats struct {
	Entries     uint64
	LatestBlock uint64
}

// Stats returns the entry count and the highest recorded block number.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(MAX(block_number), 0) FROM ledger_entries;
`).Scan(&st.Entries, &st.LatestBlock)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e          ledger.Entry
		status     string
		observedAt int64
	)
	if err := row.Scan(&e.Hash, &e.From, &e.To, &e.Amount, &e.AssetSymbol, &e.BlockNumber, &status, &observedAt); err != nil {
		return ledger.Entry{}, err
	}
	e.Status = ledger.Status(status)
	e.ObservedAt = time.Unix(observedAt, 0).UTC()
	return e, nil
}

func validateEntry(e ledger.Entry) error {
	switch {
	case e.Hash == "":
		return errors.New("entry hash required")
	case e.From == "":
		return errors.New("entry from required")
	case e.AssetSymbol == "":
		return errors.New("entry asset symbol required")
	case e.Status != ledger.StatusSuccess && e.Status != ledger.StatusFailed:
		return fmt.Errorf("entry status invalid: %q", e.Status)
	case strings.HasPrefix(e.Amount, "-"):
		return fmt.Errorf("entry amount negative: %s", e.Amount)
	case e.Amount == "":
		return errors.New("entry amount required")
	}
	return nil
}

type dialect struct {
	pragmas     []string
	schema      []string
	insertEntry string
	numbered    bool
}

// rebind rewrites ? placeholders as $1..$n for drivers that need it.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var dialects = map[string]dialect{
	DriverSQLite: {
		pragmas: []string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA busy_timeout = 5000;",
		},
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ledger_entries (
  hash          TEXT PRIMARY KEY,
  from_addr     TEXT NOT NULL,
  to_addr       TEXT NOT NULL,
  amount        TEXT NOT NULL,
  asset_symbol  TEXT NOT NULL,
  block_number  INTEGER NOT NULL,
  status        TEXT NOT NULL,
  observed_at   INTEGER NOT NULL
);`,
			`CREATE INDEX IF NOT EXISTS ledger_entries_from_idx ON ledger_entries (from_addr, observed_at);`,
			`CREATE INDEX IF NOT EXISTS ledger_entries_to_idx ON ledger_entries (to_addr, observed_at);`,
		},
		insertEntry: `
INSERT INTO ledger_entries (` + entryColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING;
`,
	},
	DriverPostgres: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ledger_entries (
  hash          VARCHAR(66) PRIMARY KEY,
  from_addr     VARCHAR(42) NOT NULL,
  to_addr       VARCHAR(42) NOT NULL,
  amount        TEXT NOT NULL,
  asset_symbol  VARCHAR(32) NOT NULL,
  block_number  BIGINT NOT NULL,
  status        VARCHAR(16) NOT NULL,
  observed_at   BIGINT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS ledger_entries_from_idx ON ledger_entries (from_addr, observed_at)`,
			`CREATE INDEX IF NOT EXISTS ledger_entries_to_idx ON ledger_entries (to_addr, observed_at)`,
		},
		insertEntry: `
INSERT INTO ledger_entries (` + entryColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hash) DO NOTHING
`,
		numbered: true,
	},
	DriverMySQL: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS ledger_entries (
  hash          VARCHAR(66) NOT NULL,
  from_addr     VARCHAR(42) NOT NULL,
  to_addr       VARCHAR(42) NOT NULL,
  amount        VARCHAR(100) NOT NULL,
  asset_symbol  VARCHAR(32) NOT NULL,
  block_number  BIGINT UNSIGNED NOT NULL,
  status        VARCHAR(16) NOT NULL,
  observed_at   BIGINT NOT NULL,
  PRIMARY KEY (hash),
  KEY ledger_entries_from_idx (from_addr, observed_at),
  KEY ledger_entries_to_idx (to_addr, observed_at)
)`,
		},
		// hash = hash keeps the existing row untouched and reports zero affected rows.
		insertEntry: `
INSERT INTO ledger_entries (` + entryColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE hash = hash
`,
	},
}
