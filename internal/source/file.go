package source

import (
	"context"
	"fmt"
	"os"

	"carddash/pkg/models"
)

// FileSource reads the collection from a local JSON file with the same
// payload rules as the API.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) FetchAll(ctx context.Context) ([]models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	cards, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return cards, nil
}
