package synthesis

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/agi-mcp/internal/learning"
)

const (
	maxFileBytes   = 256 << 10
	maxFiles       = 500
	chunkTokens    = 200
	memoryOutcomes = 100
)

var docExtensions = map[string]bool{
	".md": true, ".txt": true, ".rst": true, ".yaml": true, ".yml": true, ".toml": true, ".json": true,
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".rs": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".rb": true, ".sh": true, ".sql": true, ".proto": true,
}

// WorkspaceSource reads files under a directory. One instance serves
// documents ("file") and another source code ("code").
type WorkspaceSource struct {
	kind SourceType
	root string
	exts map[string]bool
}

// NewFileSource gathers from documentation and config files under root.
func NewFileSource(root string) *WorkspaceSource {
	return &WorkspaceSource{kind: SourceFile, root: root, exts: docExtensions}
}

// NewCodeSource gathers from source files under root.
func NewCodeSource(root string) *WorkspaceSource {
	return &WorkspaceSource{kind: SourceCode, root: root, exts: codeExtensions}
}

// Type implements Source.
func (w *WorkspaceSource) Type() SourceType { return w.kind }

// Gather walks the workspace, skipping hidden, underscore-prefixed and
// dependency directories, and splits each matching file into chunks.
func (w *WorkspaceSource) Gather(ctx context.Context, _ string) ([]Chunk, error) {
	if w.root == "" {
		return nil, nil
	}
	var (
		chunks []Chunk
		files  int
	)
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != w.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.exts[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if files >= maxFiles {
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFileBytes {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		files++
		rel, _ := filepath.Rel(w.root, path)
		for i, text := range ChunkText(string(data), chunkTokens) {
			chunks = append(chunks, Chunk{
				Source:  w.kind,
				Origin:  fmt.Sprintf("%s#%d", filepath.ToSlash(rel), i+1),
				Content: text,
				Tokens:  EstimateTokens(text),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunkText splits text on blank lines and merges consecutive paragraphs
// until a chunk reaches maxTokens. A single oversized paragraph stays whole.
func ChunkText(text string, maxTokens int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		out  []string
		cur  strings.Builder
		size int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
		size = 0
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		t := EstimateTokens(para)
		if size > 0 && size+t > maxTokens {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
		size += t
	}
	flush()
	return out
}

// OutcomeLister lists recently recorded task outcomes.
type OutcomeLister interface {
	RecentOutcomes(ctx context.Context, limit int) ([]learning.TaskOutcome, error)
}

// MemorySource turns recorded task outcomes into context.
type MemorySource struct {
	outcomes OutcomeLister
}

// NewMemorySource creates a memory source over the learning history.
func NewMemorySource(outcomes OutcomeLister) *MemorySource {
	return &MemorySource{outcomes: outcomes}
}

// Type implements Source.
func (m *MemorySource) Type() SourceType { return SourceMemory }

// Gather implements Source.
func (m *MemorySource) Gather(ctx context.Context, _ string) ([]Chunk, error) {
	list, err := m.outcomes.RecentOutcomes(ctx, memoryOutcomes)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, len(list))
	for _, o := range list {
		result := "succeeded"
		if !o.Success {
			result = "failed"
		}
		text := fmt.Sprintf("Task %s (%s) handled by %s %s in %dms.", o.TaskID, o.TaskType, o.AgentUsed, result, o.ExecutionTimeMs)
		if o.ErrorMessage != "" {
			text += " Error: " + o.ErrorMessage
		}
		chunks = append(chunks, Chunk{
			Source:  SourceMemory,
			Origin:  "outcome:" + o.TaskID,
			Content: text,
			Tokens:  EstimateTokens(text),
		})
	}
	return chunks, nil
}
