// Package store implements the compiled-module cache described in
// SPEC_FULL.md's domain stack: a source-hash-keyed row holding a
// compile's build-id/function-count/IR-size summary, signed so a tampered
// cache entry is detected before reuse.
//
// Grounded on the teacher's internal/database.DBManager (connection
// registry keyed by id, dispatching on a type string to whichever
// driver is registered) and internal/database's multi-backend driver
// imports, repurposed here from a security-scanning connection pool
// into the compiler's own cache backend.
package store

import (
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Summary is the cached shape of one compile, echoed back to the
// driver on a cache hit instead of re-running the pipeline.
type Summary struct {
	BuildID       string
	FunctionCount int
	IRBytes       int
	CompiledAt    time.Time
}

// String renders a human-readable one-line summary, the way
// cmd/kumirc prints a freshly-compiled module's stats.
func (s Summary) String() string {
	return fmt.Sprintf("build %s: %s functions, %s of IR, compiled %s",
		s.BuildID,
		humanize.Comma(int64(s.FunctionCount)),
		humanize.Bytes(uint64(s.IRBytes)),
		humanize.Time(s.CompiledAt))
}

// Store is a signed, source-hash-keyed cache of compile summaries,
// backed by whichever SQL driver the DSN names (sqlite/postgres/mysql/
// sqlserver), mirroring the teacher's DBManager's type-dispatching
// Connect method.
type Store struct {
	db   *sql.DB
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Open dispatches dsn's URL scheme to the matching driver (sqlite,
// postgres, mysql, sqlserver) and prepares the cache table, the same
// multi-backend-by-DSN-scheme pattern as the teacher's DBManager.Connect.
func Open(dsn string) (*Store, error) {
	driverName, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "store: opening connection")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: pinging backend")
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: preparing cache table")
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: generating signing key")
	}
	return &Store{db: db, priv: priv, pub: pub}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const createTableSQL = `
CREATE TABLE IF NOT EXISTS kumirc_cache (
	source_hash TEXT PRIMARY KEY,
	build_id    TEXT NOT NULL,
	func_count  INTEGER NOT NULL,
	ir_bytes    INTEGER NOT NULL,
	compiled_at TEXT NOT NULL,
	signature   TEXT NOT NULL
)`

// SourceHash derives the cache key for a compile unit, blake2b-256
// over the exact source bytes.
func SourceHash(source []byte) string {
	sum := blake2b.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Put records a fresh compile's summary, signing build_id+source_hash
// so Get can detect a tampered row before trusting it.
func (s *Store) Put(sourceHash string, summary Summary) error {
	sig := s.sign(summary.BuildID, sourceHash)
	_, err := s.db.Exec(
		`INSERT INTO kumirc_cache(source_hash, build_id, func_count, ir_bytes, compiled_at, signature)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_hash) DO UPDATE SET
		   build_id=excluded.build_id, func_count=excluded.func_count,
		   ir_bytes=excluded.ir_bytes, compiled_at=excluded.compiled_at, signature=excluded.signature`,
		sourceHash, summary.BuildID, summary.FunctionCount, summary.IRBytes,
		summary.CompiledAt.Format(time.RFC3339), hex.EncodeToString(sig))
	if err != nil {
		return errors.Wrapf(err, "store: caching entry for %s", sourceHash)
	}
	return nil
}

// Get looks up sourceHash's cached summary. ok is false on a cache
// miss; err is non-nil only when a row was found but its signature
// does not verify (a tampered or corrupted cache entry, never reused).
func (s *Store) Get(sourceHash string) (summary Summary, ok bool, err error) {
	row := s.db.QueryRow(
		`SELECT build_id, func_count, ir_bytes, compiled_at, signature
		 FROM kumirc_cache WHERE source_hash = ?`, sourceHash)

	var buildID, compiledAt, sigHex string
	if scanErr := row.Scan(&buildID, &summary.FunctionCount, &summary.IRBytes, &compiledAt, &sigHex); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return Summary{}, false, nil
		}
		return Summary{}, false, errors.Wrap(scanErr, "store: reading cache entry")
	}

	sig, decErr := hex.DecodeString(sigHex)
	if decErr != nil || !ed25519.Verify(s.pub, []byte(buildID+sourceHash), sig) {
		return Summary{}, false, errors.Errorf("store: cache entry for %s failed signature verification", sourceHash)
	}

	summary.BuildID = buildID
	summary.CompiledAt, _ = time.Parse(time.RFC3339, compiledAt)
	return summary, true, nil
}

func (s *Store) sign(buildID, sourceHash string) []byte {
	return ed25519.Sign(s.priv, []byte(buildID+sourceHash))
}

// NewBuildID stamps a fresh discriminator for one compile (§domain
// stack: "each compiled ir.Module gets a BuildID").
func NewBuildID() string { return uuid.NewString() }

func driverFor(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", errors.Wrapf(err, "store: parsing dsn")
	}
	switch u.Scheme {
	case "sqlite", "sqlite3", "file", "":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", errors.Errorf("store: unsupported cache DSN scheme %q", u.Scheme)
	}
}
