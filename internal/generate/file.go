package generate

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/secbase/secbase/internal/baseline"
)

// FileSource loads requirements from a YAML document. It serves offline
// runs and deterministic test fixtures.
type FileSource struct {
	path string
}

// NewFileSource creates a generator reading from the given YAML file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// requirementsFile is the on-disk document shape.
type requirementsFile struct {
	Requirements []*baseline.Requirement `yaml:"requirements"`
}

// Generate reads and parses the requirement list. The service name is
// ignored; the file's content defines the scope.
func (s *FileSource) Generate(_ context.Context, _ string) ([]*baseline.Requirement, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirements file: %w", err)
	}

	var doc requirementsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse requirements file: %w", err)
	}

	for _, req := range doc.Requirements {
		if req.Status == "" {
			req.Status = baseline.StatusPending
		}
	}
	return doc.Requirements, nil
}
