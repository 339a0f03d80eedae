package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ashevtsov/bitrix-backup/internal/exclude"
)

// Classifier applies an ordered exclusion pattern list to a tree walk.
type Classifier struct {
	patterns []string
}

func NewClassifier(patterns []string) *Classifier {
	return &Classifier{patterns: patterns}
}

// VisitFunc is called for every included entry, in traversal order. The
// archive assembler hooks in here; a nil visit classifies without side
// effects. An error from visit aborts the walk.
type VisitFunc func(absPath string, e Entry, info fs.FileInfo) error

// Classify walks root once and partitions every entry into included or
// excluded. The root itself is not classified.
func (c *Classifier) Classify(root string) (*Catalog, error) {
	return c.Walk(root, nil)
}

// Walk is Classify with a visit callback driving the same pass.
func (c *Classifier) Walk(root string, visit VisitFunc) (*Catalog, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}

	cat := &Catalog{Root: root, Patterns: c.patterns}
	if err := c.walkDir(root, root, cat, visit); err != nil {
		return nil, err
	}
	return cat, nil
}

// walkDir classifies the entries of dir and recurses. Unreadable
// directories are annotated and skipped; the walk continues elsewhere.
func (c *Classifier) walkDir(root, dir string, cat *Catalog, visit VisitFunc) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		cat.Errors = append(cat.Errors, WalkError{Path: relativeTo(root, dir), Err: err.Error()})
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, de := range entries {
		full := filepath.Join(dir, de.Name())
		rel := relativeTo(root, full)

		info, err := de.Info()
		if err != nil {
			cat.Errors = append(cat.Errors, WalkError{Path: rel, Err: err.Error()})
			continue
		}

		entry := newEntry(rel, de.IsDir(), info)
		pattern, excluded := exclude.First(rel, c.patterns)

		if excluded {
			entry.MatchedPattern = pattern
			cat.addExcluded(entry)

			// A directory-prefix match covers the whole subtree, so
			// descent stops here. Any other pattern shape excludes only
			// the directory entry itself; children are still visited and
			// classified independently.
			if de.IsDir() && isPrefixPattern(pattern) {
				continue
			}
			if de.IsDir() {
				if err := c.walkDir(root, full, cat, visit); err != nil {
					return err
				}
			}
			continue
		}

		cat.addIncluded(entry)
		if visit != nil {
			if err := visit(full, entry, info); err != nil {
				return fmt.Errorf("visiting %s: %w", rel, err)
			}
		}

		if de.IsDir() {
			if err := c.walkDir(root, full, cat, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func newEntry(rel string, isDir bool, info fs.FileInfo) Entry {
	e := Entry{Path: rel, ModTime: "unknown"}
	if isDir {
		e.Type = TypeDirectory
	} else {
		e.Type = TypeFile
		e.Size = info.Size()
	}
	if mt := info.ModTime(); !mt.IsZero() {
		e.ModTime = mt.Format("2006-01-02 15:04:05")
	}
	return e
}

// relativeTo strips the tree root prefix. An entry that unexpectedly falls
// outside the root keeps its own path verbatim as the matching fallback.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// isPrefixPattern reports whether p is the directory-prefix shape: a
// separator and no wildcard.
func isPrefixPattern(p string) bool {
	return !strings.ContainsAny(p, "*?") &&
		strings.Contains(strings.ReplaceAll(p, `\`, "/"), "/")
}
