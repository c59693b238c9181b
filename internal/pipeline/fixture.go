package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrEmptyFixture = errors.New("fixture has no pipelines")

type fixtureFile struct {
	Pipelines []Pipeline `yaml:"pipelines"`
}

// LoadFixture reads a YAML file with a top-level "pipelines" list.
func LoadFixture(path string) ([]Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) ([]Pipeline, error) {
	var parsed fixtureFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	results := make([]Pipeline, 0, len(parsed.Pipelines))
	for index, item := range parsed.Pipelines {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("fixture pipeline %d: id is required", index)
		}
		if strings.TrimSpace(item.Name) == "" {
			item.Name = item.ID
		}
		switch item.Status {
		case StatusSuccess, StatusFailed, StatusRunning:
		default:
			item.Status = StatusUnknown
		}
		results = append(results, item)
	}
	if len(results) == 0 {
		return nil, ErrEmptyFixture
	}
	return results, nil
}
