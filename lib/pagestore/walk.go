package pagestore

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// List enumerates the ids of every stored page file, valid or not.
// callers that care about completeness should still gate on Exists.
func (s Filesystem) List() ([]int, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	var ids []int
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		id, ok := idFromFilename(d.Name())
		if !ok {
			return nil
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func idFromFilename(name string) (int, bool) {
	if !strings.HasPrefix(name, "job_") || !strings.HasSuffix(name, ".html") {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, "job_"), ".html")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
