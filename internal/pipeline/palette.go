package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// paletteFile is the scoped temporary image passed from the palette pass to
// the encode pass.
type paletteFile struct {
	path string
	keep bool
}

func newPaletteFile(dir string, keep bool) (*paletteFile, error) {
	f, err := os.CreateTemp(dir, "palette-*.png")
	if err != nil {
		return nil, fmt.Errorf("create palette file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("create palette file: %w", err)
	}
	return &paletteFile{path: f.Name(), keep: keep}, nil
}

func (p *paletteFile) Path() string {
	return p.path
}

// Release deletes the file. A file already gone is not an error.
func (p *paletteFile) Release() error {
	if p.keep {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
