package history

import (
	"fmt"
	"os"
	"path/filepath"
)

// OverviewFile is the repository-relative path of the overview.
const OverviewFile = "README.md"

// Metadata describes the collection a history belongs to.
type Metadata struct {
	// Owner becomes the author and committer name of every commit.
	Owner string

	Title       string
	Description string
	ImageURI    string
	ImageName   string
}

// Overview renders the static overview document.
func Overview(meta Metadata) string {
	return fmt.Sprintf("# %s\n\n![%s](%s)\n%s\n", meta.Title, meta.ImageName, meta.ImageURI, meta.Description)
}

func writeOverview(root string, meta Metadata) error {
	path := filepath.Join(root, OverviewFile)
	if err := os.WriteFile(path, []byte(Overview(meta)), 0o644); err != nil {
		return fmt.Errorf("write overview: %w", err)
	}
	return nil
}
