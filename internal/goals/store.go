package goals

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	// GoalsDir is the subdirectory of the data dir where goals live.
	GoalsDir = "goals"
	// GoalFile is the filename for goal records.
	GoalFile = "goal.json"
)

// Store defines the persistence interface for goals.
type Store interface {
	Create(goal *Goal) error
	Load(goalID string) (*Goal, error)
	Save(goal *Goal) error
	List() ([]Goal, error)
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	root string
	// mu serializes id allocation in Create.
	mu sync.Mutex
}

// NewFileStore creates a store rooted at dataDir.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{root: filepath.Join(dataDir, GoalsDir)}
}

// GoalPath returns the directory of a goal.
func (fs *FileStore) GoalPath(goalID string) string {
	return filepath.Join(fs.root, goalID)
}

func (fs *FileStore) goalFile(goalID string) string {
	return filepath.Join(fs.GoalPath(goalID), GoalFile)
}

// Create persists a new goal. If its id is taken, a numeric suffix
// (-2, -3, ...) is appended and goal.ID updated.
func (fs *FileStore) Create(goal *Goal) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.root, 0o755); err != nil {
		return fmt.Errorf("creating goals directory: %w", err)
	}

	originalID := goal.ID
	dir := fs.GoalPath(goal.ID)
	suffix := 2
	for {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		goal.ID = fmt.Sprintf("%s-%d", originalID, suffix)
		dir = fs.GoalPath(goal.ID)
		suffix++
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating goal directory: %w", err)
	}
	return fs.write(goal)
}

// Load reads a goal by id.
func (fs *FileStore) Load(goalID string) (*Goal, error) {
	if goalID == "" || filepath.Base(goalID) != goalID {
		return nil, fmt.Errorf("%w: %q", ErrGoalNotFound, goalID)
	}
	data, err := os.ReadFile(fs.goalFile(goalID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrGoalNotFound, goalID)
		}
		return nil, fmt.Errorf("reading goal: %w", err)
	}

	var goal Goal
	if err := json.Unmarshal(data, &goal); err != nil {
		return nil, fmt.Errorf("parsing goal.json for %q: %w", goalID, err)
	}
	return &goal, nil
}

// Save overwrites an existing goal.
func (fs *FileStore) Save(goal *Goal) error {
	if _, err := os.Stat(fs.GoalPath(goal.ID)); os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrGoalNotFound, goal.ID)
	}
	return fs.write(goal)
}

// List returns every goal, oldest first.
func (fs *FileStore) List() ([]Goal, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading goals directory: %w", err)
	}

	var out []Goal
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		g, err := fs.Load(e.Name())
		if err != nil {
			continue // skip malformed entries
		}
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (fs *FileStore) write(goal *Goal) error {
	data, err := json.MarshalIndent(goal, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling goal: %w", err)
	}
	// Write through a temp file so readers never see a partial goal.json.
	tmp := fs.goalFile(goal.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing goal: %w", err)
	}
	if err := os.Rename(tmp, fs.goalFile(goal.ID)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing goal: %w", err)
	}
	return nil
}
