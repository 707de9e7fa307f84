// Package batch drives the publish command over a list of items, one
// subprocess per item, tracking progress in a JSON state file.
package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/docrelay/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrNoItems is returned when there is neither a state file nor any items.
var ErrNoItems = errors.New("no items found in data file")

// itemsFile is the wrapped form {"items": [...]}.
type itemsFile struct {
	Items []models.BatchItem `json:"items" yaml:"items"`
}

// LoadItems reads batch items from a JSON or YAML file. Both a bare list and
// an {"items": [...]} object are accepted. A missing file yields no items.
func LoadItems(path string) ([]models.BatchItem, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var items []models.BatchItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		items, err = decodeYAMLItems(data)
	default:
		items, err = decodeJSONItems(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}

	out := items[:0]
	for _, it := range items {
		if it.URL != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

func decodeJSONItems(data []byte) ([]models.BatchItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '{' {
		var wrapped itemsFile
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Items, nil
	}
	var items []models.BatchItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeYAMLItems(data []byte) ([]models.BatchItem, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]

	if root.Kind == yaml.MappingNode {
		var wrapped itemsFile
		if err := root.Decode(&wrapped); err != nil {
			return nil, err
		}
		return wrapped.Items, nil
	}
	var items []models.BatchItem
	if err := root.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}
