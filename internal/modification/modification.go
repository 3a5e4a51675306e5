// Package modification tracks proposed self-modifications, the structural
// proof attached to each one and a history of baselines.
package modification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/agi-mcp/internal/store"
)

// Migration creates the modification and baseline tables.
const Migration = `
	CREATE TABLE IF NOT EXISTS modifications (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,
		description  TEXT NOT NULL,
		code_before  TEXT NOT NULL,
		code_after   TEXT NOT NULL,
		proof_status TEXT NOT NULL,
		proof_notes  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL,
		applied      INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_modifications_created ON modifications(created_at);

	CREATE TABLE IF NOT EXISTS baselines (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		modifications INTEGER NOT NULL,
		recorded_at   TEXT    NOT NULL
	);
`

var (
	// ErrUnknownType is returned for modification types outside the enum.
	ErrUnknownType = errors.New("unknown modification type")
	// ErrInvalidLimit is returned by History for a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Type classifies a modification.
type Type string

const (
	TypeAlgorithmImprove Type = "algorithm_improve"
	TypeDataStructure    Type = "data_structure"
	TypeInterface        Type = "interface"
	TypeOptimization     Type = "optimization"
)

var validTypes = map[Type]bool{
	TypeAlgorithmImprove: true,
	TypeDataStructure:    true,
	TypeInterface:        true,
	TypeOptimization:     true,
}

// ParseType parses a modification type case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !validTypes[t] {
		return "", fmt.Errorf("%w %q", ErrUnknownType, s)
	}
	return t, nil
}

// Status values of a modification.
const (
	StatusProposed = "proposed"
	StatusRejected = "rejected"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Modification is a proposed change with its proof.
type Modification struct {
	ID          string      `json:"modification_id"`
	Type        Type        `json:"type"`
	Description string      `json:"description"`
	CodeBefore  string      `json:"-"`
	CodeAfter   string      `json:"-"`
	ProofStatus ProofStatus `json:"proof_status"`
	ProofNotes  []string    `json:"proof_notes,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Record is one history entry.
type Record struct {
	ModificationID string      `json:"modification_id"`
	Type           Type        `json:"type"`
	Description    string      `json:"description"`
	ProofStatus    ProofStatus `json:"proof_status"`
	ProofNotes     []string    `json:"proof_notes,omitempty"`
	Status         string      `json:"status"`
	Applied        bool        `json:"applied"`
	CreatedAt      string      `json:"created_at"`
}

// Baseline marks the state of the history when the server started.
type Baseline struct {
	Modifications int       `json:"modifications"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Machine is the self-modification subsystem.
type Machine struct {
	db *store.DB
}

// New creates a machine over an open store. The store must have been opened
// with Migration.
func New(db *store.DB) *Machine {
	return &Machine{db: db}
}

// ProposeModification proves and records a proposed change. A failed or
// rejected proof is still recorded, with status "rejected".
func (m *Machine) ProposeModification(ctx context.Context, before, after string, modType Type, description string) (*Modification, error) {
	if !validTypes[modType] {
		return nil, fmt.Errorf("%w %q", ErrUnknownType, modType)
	}
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("description is empty")
	}

	proof := Prove(before, after, modType)
	mod := &Modification{
		ID:          uuid.NewString(),
		Type:        modType,
		Description: description,
		CodeBefore:  before,
		CodeAfter:   after,
		ProofStatus: proof.Status,
		ProofNotes:  proof.Notes,
		Status:      StatusProposed,
		CreatedAt:   timeNow().UTC(),
	}
	if proof.Status == ProofFailed || proof.Status == ProofRejected {
		mod.Status = StatusRejected
	}

	_, err := m.db.ExecContext(ctx,
		`INSERT INTO modifications (id, type, description, code_before, code_after, proof_status, proof_notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mod.ID, string(mod.Type), mod.Description, mod.CodeBefore, mod.CodeAfter,
		string(mod.ProofStatus), strings.Join(mod.ProofNotes, "\n"), mod.Status, store.Format(mod.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("modification: insert: %w", err)
	}
	return mod, nil
}

const recordColumns = `id, type, description, proof_status, proof_notes, status, applied, created_at`

// History returns up to limit records, newest first.
func (m *Machine) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidLimit, limit)
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM modifications ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("modification: history: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Find returns the record with the given id, or nil when none exists.
func (m *Machine) Find(ctx context.Context, id string) (*Record, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM modifications WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r       Record
		notes   string
		applied int
		created string
	)
	if err := sc.Scan(&r.ModificationID, &r.Type, &r.Description, &r.ProofStatus, &notes, &r.Status, &applied, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("modification: scan: %w", err)
	}
	if notes != "" {
		r.ProofNotes = strings.Split(notes, "\n")
	}
	r.Applied = applied != 0
	if t, err := store.ParseTime(created); err == nil {
		r.CreatedAt = t.Format(time.RFC3339)
	}
	return &r, nil
}

// SetBaseline records how many modifications exist right now.
func (m *Machine) SetBaseline(ctx context.Context) (*Baseline, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM modifications`).Scan(&n); err != nil {
		return nil, fmt.Errorf("modification: count: %w", err)
	}
	b := &Baseline{Modifications: n, RecordedAt: timeNow().UTC()}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO baselines (modifications, recorded_at) VALUES (?, ?)`,
		b.Modifications, store.Format(b.RecordedAt)); err != nil {
		return nil, fmt.Errorf("modification: insert baseline: %w", err)
	}
	return b, nil
}

// LatestBaseline returns the most recent baseline, or nil when none exists.
func (m *Machine) LatestBaseline(ctx context.Context) (*Baseline, error) {
	var (
		b        Baseline
		recorded string
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT modifications, recorded_at FROM baselines ORDER BY id DESC LIMIT 1`).Scan(&b.Modifications, &recorded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("modification: latest baseline: %w", err)
	}
	b.RecordedAt, _ = store.ParseTime(recorded)
	return &b, nil
}
