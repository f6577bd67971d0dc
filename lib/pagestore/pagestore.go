// Package pagestore is the on-disk index of downloaded job pages.
// a page "exists" iff a structurally valid HTML file sits at its
// canonical sharded path. there is no separate database, the
// filesystem is the system of record.
package pagestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the key-value seam over page storage. implementations must
// treat any read failure as absence so that interrupted writes are
// re-fetched rather than trusted.
type Store interface {
	Path(id int) string
	Exists(id int) bool
	Get(id int) ([]byte, error)
	Put(id int, body []byte) error
}

const (
	// length the numeric id is zero-padded to before sharding
	padWidth = 6
	// bytes inspected by the structural validity check
	sniffLen = 1024
)

type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at the job-pages directory,
// e.g. data/job-pages.
func NewFilesystem(root string) Filesystem {
	return Filesystem{root: root}
}

func (s Filesystem) Root() string {
	return s.root
}

// Path computes the canonical location of a page: the id zero-padded
// to at least 6 digits, split into two 3-digit shard directories, with
// the raw id embedded in the filename. Path(123456) is
// <root>/123/456/job_123456.html. the sharding keeps any single
// directory under ~1000 entries.
func (s Filesystem) Path(id int) string {
	padded := fmt.Sprintf("%0*d", padWidth, id)
	return filepath.Join(
		s.root,
		padded[:3],
		padded[3:6],
		fmt.Sprintf("job_%d.html", id),
	)
}

// MetadataPath is the derived metadata JSON stored beside the page.
func (s Filesystem) MetadataPath(id int) string {
	padded := fmt.Sprintf("%0*d", padWidth, id)
	return filepath.Join(
		s.root,
		padded[:3],
		padded[3:6],
		fmt.Sprintf("job_%d.json", id),
	)
}

// Exists reports whether the page was fully downloaded. the file must
// be non-empty and its first 1KB must carry both a charset declaration
// and a top-level document marker. a truncated file left by an
// interrupted run fails this gate and is re-fetched on the next run.
func (s Filesystem) Exists(id int) bool {
	f, err := os.Open(s.Path(id))
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false
	}
	if n == 0 {
		return false
	}
	return looksLikeDocument(string(head[:n]))
}

func looksLikeDocument(head string) bool {
	head = strings.ToLower(head)
	if !strings.Contains(head, "charset") {
		return false
	}
	return strings.Contains(head, "<!doctype html") || strings.Contains(head, "<html")
}

func (s Filesystem) Get(id int) ([]byte, error) {
	return os.ReadFile(s.Path(id))
}

// Put writes the page at its canonical path, creating shard
// directories as needed. racing creations of the same prefix are fine,
// MkdirAll is idempotent.
func (s Filesystem) Put(id int, body []byte) error {
	path := s.Path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
