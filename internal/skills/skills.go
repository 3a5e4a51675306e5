// Package skills tracks versioned skills, A/B tests between versions and the
// active (promoted) version of each skill.
//
// Versions are semantic versions. Omitting the version on registration
// takes the next patch after the highest registered version, starting at
// 1.0.0. Version comparisons are semantic, so "v1.2" and "1.2.0" name the
// same version.
package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/HendryAvila/agi-mcp/internal/store"
)

// Migration creates the skill tables.
const Migration = `
	CREATE TABLE IF NOT EXISTS skill_versions (
		skill_name  TEXT    NOT NULL,
		version     TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		code        TEXT    NOT NULL,
		active      INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT    NOT NULL,
		promoted_at TEXT,
		PRIMARY KEY (skill_name, version)
	);
	CREATE TABLE IF NOT EXISTS ab_tests (
		id          TEXT PRIMARY KEY,
		skill_name  TEXT NOT NULL,
		version_a   TEXT NOT NULL,
		version_b   TEXT NOT NULL,
		split_ratio REAL NOT NULL,
		status      TEXT NOT NULL,
		started_at  TEXT NOT NULL
	);
`

// FirstVersion is assigned to the first auto-versioned registration.
const FirstVersion = "1.0.0"

var (
	ErrSkillNotFound    = errors.New("skill not found")
	ErrVersionNotFound  = errors.New("skill version not found")
	ErrDuplicateVersion = errors.New("skill version already registered")
	ErrInvalidVersion   = errors.New("invalid skill version")
	ErrInvalidSplit     = errors.New("split_ratio must be between 0.0 and 1.0")
)

// SkillVersion is one registered implementation of a skill.
type SkillVersion struct {
	SkillName   string    `json:"skill_name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Code        string    `json:"-"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ABTest is a running comparison between two versions.
type ABTest struct {
	ID         string    `json:"id"`
	SkillName  string    `json:"skill_name"`
	VersionA   string    `json:"version_a"`
	VersionB   string    `json:"version_b"`
	SplitRatio float64   `json:"split_ratio"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
}

// Evolver is the skill evolution subsystem.
type Evolver struct {
	db *store.DB
}

// New creates an evolver over a store opened with Migration.
func New(db *store.DB) *Evolver {
	return &Evolver{db: db}
}

// RegisterSkill stores a new version of a skill. The first version of a
// skill becomes its active version.
func (e *Evolver) RegisterSkill(ctx context.Context, name, code, description, version string) (*SkillVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("skill_name is empty")
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("code is empty")
	}

	existing, err := e.versions(ctx, name)
	if err != nil {
		return nil, err
	}

	version = strings.TrimSpace(version)
	if version == "" {
		version = nextVersion(existing)
	} else {
		if _, err := semver.NewVersion(version); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidVersion, version, err)
		}
		if v := find(existing, version); v != nil {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateVersion, name, v.Version)
		}
	}

	sv := &SkillVersion{
		SkillName:   name,
		Version:     version,
		Description: description,
		Code:        code,
		Active:      len(existing) == 0,
		CreatedAt:   timeNow().UTC(),
	}
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO skill_versions (skill_name, version, description, code, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sv.SkillName, sv.Version, sv.Description, sv.Code, boolToInt(sv.Active), store.Format(sv.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("skills: insert version: %w", err)
	}
	return sv, nil
}

// StartABTest starts a test between two registered versions of a skill and
// returns its id.
func (e *Evolver) StartABTest(ctx context.Context, name, versionA, versionB string, splitRatio float64) (string, error) {
	if splitRatio < 0 || splitRatio > 1 {
		return "", fmt.Errorf("%w, got %v", ErrInvalidSplit, splitRatio)
	}
	existing, err := e.versions(ctx, name)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		return "", fmt.Errorf("%w: %q", ErrSkillNotFound, name)
	}
	a, b := find(existing, versionA), find(existing, versionB)
	if a == nil {
		return "", fmt.Errorf("%w: %s %s", ErrVersionNotFound, name, versionA)
	}
	if b == nil {
		return "", fmt.Errorf("%w: %s %s", ErrVersionNotFound, name, versionB)
	}
	if a.Version == b.Version {
		return "", fmt.Errorf("cannot A/B test version %s against itself", a.Version)
	}

	id := uuid.New().String()
	_, err = e.db.ExecContext(ctx,
		`INSERT INTO ab_tests (id, skill_name, version_a, version_b, split_ratio, status, started_at) VALUES (?, ?, ?, ?, ?, 'running', ?)`,
		id, name, a.Version, b.Version, splitRatio, store.Now())
	if err != nil {
		return "", fmt.Errorf("skills: insert ab test: %w", err)
	}
	return id, nil
}

// PromoteVersion makes version the active version of the skill. It returns
// false when the skill exists but the version does not, and an error when the
// skill itself is unknown. Running A/B tests of the skill are concluded.
func (e *Evolver) PromoteVersion(ctx context.Context, name, version string) (bool, error) {
	existing, err := e.versions(ctx, name)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return false, fmt.Errorf("%w: %q", ErrSkillNotFound, name)
	}
	target := find(existing, version)
	if target == nil {
		return false, nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("skills: begin promote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE skill_versions SET active = 0 WHERE skill_name = ?`, name); err != nil {
		return false, fmt.Errorf("skills: clear active: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE skill_versions SET active = 1, promoted_at = ? WHERE skill_name = ? AND version = ?`,
		store.Now(), name, target.Version); err != nil {
		return false, fmt.Errorf("skills: set active: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ab_tests SET status = 'concluded' WHERE skill_name = ? AND status = 'running'`, name); err != nil {
		return false, fmt.Errorf("skills: conclude tests: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("skills: commit promote: %w", err)
	}
	return true, nil
}

// ActiveVersion returns the promoted version of a skill.
func (e *Evolver) ActiveVersion(ctx context.Context, name string) (*SkillVersion, error) {
	existing, err := e.versions(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Active {
			return &existing[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSkillNotFound, name)
}

// Tests returns the A/B tests of a skill, oldest first.
func (e *Evolver) Tests(ctx context.Context, name string) ([]ABTest, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, skill_name, version_a, version_b, split_ratio, status, started_at
		 FROM ab_tests WHERE skill_name = ? ORDER BY started_at, id`, name)
	if err != nil {
		return nil, fmt.Errorf("skills: list tests: %w", err)
	}
	defer rows.Close()

	var out []ABTest
	for rows.Next() {
		var (
			t       ABTest
			started string
		)
		if err := rows.Scan(&t.ID, &t.SkillName, &t.VersionA, &t.VersionB, &t.SplitRatio, &t.Status, &started); err != nil {
			return nil, fmt.Errorf("skills: scan test: %w", err)
		}
		t.StartedAt, _ = store.ParseTime(started)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Skills returns the names of every registered skill, sorted.
func (e *Evolver) Skills(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT DISTINCT skill_name FROM skill_versions ORDER BY skill_name`)
	if err != nil {
		return nil, fmt.Errorf("skills: list skills: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("skills: scan skill: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (e *Evolver) versions(ctx context.Context, name string) ([]SkillVersion, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT skill_name, version, description, code, active, created_at
		 FROM skill_versions WHERE skill_name = ? ORDER BY created_at, rowid`, name)
	if err != nil {
		return nil, fmt.Errorf("skills: list versions: %w", err)
	}
	defer rows.Close()

	var out []SkillVersion
	for rows.Next() {
		var (
			v       SkillVersion
			active  int
			created string
		)
		if err := rows.Scan(&v.SkillName, &v.Version, &v.Description, &v.Code, &active, &created); err != nil {
			return nil, fmt.Errorf("skills: scan version: %w", err)
		}
		v.Active = active != 0
		v.CreatedAt, _ = store.ParseTime(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

// find returns the registered version semantically equal to version.
func find(versions []SkillVersion, version string) *SkillVersion {
	want, err := semver.NewVersion(strings.TrimSpace(version))
	for i := range versions {
		if versions[i].Version == version {
			return &versions[i]
		}
		if err != nil {
			continue
		}
		if got, perr := semver.NewVersion(versions[i].Version); perr == nil && got.Equal(want) {
			return &versions[i]
		}
	}
	return nil
}

// nextVersion is the patch after the highest registered version.
func nextVersion(versions []SkillVersion) string {
	var highest *semver.Version
	for _, v := range versions {
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if highest == nil || sv.GreaterThan(highest) {
			highest = sv
		}
	}
	if highest == nil {
		return FirstVersion
	}
	return highest.IncPatch().String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now
