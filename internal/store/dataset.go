package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadDataset loads a dataset file. Files ending in .yaml or .yml are YAML, everything else JSON. YAML keys
// are the JSON field names.
func ReadDataset(path string) (Dataset, error) {
	var d Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read dataset: %w", err)
	}
	if isYAML(path) {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return d, fmt.Errorf("parse dataset %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return d, fmt.Errorf("convert dataset %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	if d.OrgID == "" {
		return d, fmt.Errorf("dataset %s has no orgId", path)
	}
	return d, nil
}

// WriteDataset stores d in the format implied by the file extension, creating parent directories.
func WriteDataset(path string, d Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if isYAML(path) {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("encode dataset: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
