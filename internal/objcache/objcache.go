// Package objcache is the content-hash cache backing the driver's object
// emission (spec §4.9: "emit object file (cached by content hash of the
// IR plus the target triple)") and the cimport subsystem's generated
// wrapper modules (spec §4.8 step ii). Grounded on the teacher's ext
// subsystem, which caches generated Go bindings under a content hash so
// re-running the compiler doesn't regenerate unchanged bindings;
// generalized here to a small sqlite-backed index (modernc.org/sqlite,
// a pure-Go driver already present in the retrieved dependency pack) so
// the cache survives process restarts without a cgo toolchain
// dependency.
package objcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"golang.org/x/mod/semver"
)

// FormatVersion is compared against the version stamped in an existing
// cache database; a mismatch invalidates the whole cache rather than risk
// reading entries shaped for a different schema.
const FormatVersion = "v1.0.0"

// Cache is a sqlite-backed content-hash index of cached build artifacts.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the cache database under dir/.pythoc-cache.db.
func Open(dir string) (*Cache, error) {
	path := filepath.Join(dir, ".pythoc-cache.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("objcache: opening %s: %w", path, err)
	}
	c := &Cache{db: db, path: path}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return err
	}
	if _, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		path TEXT NOT NULL
	)`); err != nil {
		return err
	}
	var stored string
	row := c.db.QueryRow(`SELECT value FROM meta WHERE key = 'format_version'`)
	if err := row.Scan(&stored); err == sql.ErrNoRows {
		_, err := c.db.Exec(`INSERT INTO meta (key, value) VALUES ('format_version', ?)`, FormatVersion)
		return err
	} else if err != nil {
		return err
	}
	if semver.Compare(normalizeSemver(stored), normalizeSemver(FormatVersion)) != 0 {
		if _, err := c.db.Exec(`DELETE FROM artifacts`); err != nil {
			return err
		}
		_, err := c.db.Exec(`UPDATE meta SET value = ? WHERE key = 'format_version'`, FormatVersion)
		return err
	}
	return nil
}

func normalizeSemver(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}

func (c *Cache) Close() error { return c.db.Close() }

// Lookup returns the cached artifact path for hash, if present and the
// file still exists at that path.
func (c *Cache) Lookup(hash string) (path string, ok bool) {
	row := c.db.QueryRow(`SELECT path FROM artifacts WHERE hash = ?`, hash)
	if err := row.Scan(&path); err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Store records hash -> path for kind ("object" | "cimport-wrapper").
func (c *Cache) Store(hash, kind, path string) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO artifacts (hash, kind, path) VALUES (?, ?, ?)`, hash, kind, path)
	return err
}

// Key combines a set of content fragments (IR bytes, target triple, source
// mtimes, lib names) into one hash string (spec §4.8/§4.9).
func Key(fragments ...string) string {
	h := sha256.New()
	for _, f := range fragments {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
