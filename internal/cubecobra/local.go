package cubecobra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/dredger/internal/cube"
)

const (
	// LocalCubeFile holds the cube document in a local export.
	LocalCubeFile = "cube.json"

	// LocalHistoryFile holds a single history page with every post.
	LocalHistoryFile = "history.json"
)

// LocalClient reads a cube exported to a directory. The id passed to its
// methods is ignored; the directory identifies the cube.
type LocalClient struct {
	dir string
}

// NewLocalClient creates a client reading from dir.
func NewLocalClient(dir string) *LocalClient {
	return &LocalClient{dir: dir}
}

// Cube reads cube.json.
func (c *LocalClient) Cube(ctx context.Context, _ string) (*cube.Collection, error) {
	var doc cubeDoc
	if err := c.read(ctx, LocalCubeFile, &doc); err != nil {
		return nil, err
	}
	return doc.toCollection(), nil
}

// History reads history.json.
func (c *LocalClient) History(ctx context.Context, _ string) ([]cube.ChangeEvent, error) {
	var page historyPage
	if err := c.read(ctx, LocalHistoryFile, &page); err != nil {
		return nil, err
	}
	return toEvents(page.Posts), nil
}

func (c *LocalClient) read(ctx context.Context, name string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(c.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
