package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"lobbytrack-backend/lib/telemetry"
)

type SetupParams struct {
	Name string
	// relative paths (from the scratch root) of directories to
	// pre-create, e.g. "data/2025/12/10"
	Dirs []string
}

type SetupResult struct {
	// scratch root, removed when the test finishes
	Root string
}

func Setup(t testing.TB, params SetupParams) (SetupResult, func()) {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))

	root := t.TempDir()
	for _, d := range params.Dirs {
		err := os.MkdirAll(filepath.Join(root, d), 0o755)
		if err != nil {
			t.Fatal(err)
		}
	}

	return SetupResult{Root: root}, cleanup
}

// WriteFile writes a file under the scratch root, creating parents.
func (r SetupResult) WriteFile(t testing.TB, rel string, contents string) string {
	path := filepath.Join(r.Root, rel)
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(path, []byte(contents), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}
