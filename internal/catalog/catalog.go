// Package catalog classifies a file tree against exclusion patterns and
// builds the backup manifests from the result.
package catalog

// EntryType distinguishes files from directories in the catalog.
type EntryType string

const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "directory"
)

// Entry is one classified filesystem entry. Immutable once added.
type Entry struct {
	Path           string
	Size           int64 // 0 for directories
	Type           EntryType
	ModTime        string // "2006-01-02 15:04:05" or "unknown"
	MatchedPattern string // set only on excluded entries
}

// Stats are the running totals updated as entries are added, so a summary
// is available without a second pass.
type Stats struct {
	IncludedFiles int
	IncludedDirs  int
	IncludedBytes int64
	ExcludedFiles int
	ExcludedDirs  int
	ExcludedBytes int64
}

// WalkError annotates a subtree that could not be read. Its sizes are not
// part of any aggregate.
type WalkError struct {
	Path string
	Err  string
}

// Catalog is the full classified inventory of one tree walk. Every entry
// under the root lands in exactly one of Included or Excluded.
type Catalog struct {
	Root     string
	Patterns []string
	Included []Entry
	Excluded []Entry
	Errors   []WalkError
	Stats    Stats
}

func (c *Catalog) addIncluded(e Entry) {
	c.Included = append(c.Included, e)
	if e.Type == TypeFile {
		c.Stats.IncludedFiles++
		c.Stats.IncludedBytes += e.Size
	} else {
		c.Stats.IncludedDirs++
	}
}

func (c *Catalog) addExcluded(e Entry) {
	c.Excluded = append(c.Excluded, e)
	if e.Type == TypeFile {
		c.Stats.ExcludedFiles++
		c.Stats.ExcludedBytes += e.Size
	} else {
		c.Stats.ExcludedDirs++
	}
}

// TotalEntries is the number of classified entries on both sides.
func (c *Catalog) TotalEntries() int {
	return len(c.Included) + len(c.Excluded)
}
