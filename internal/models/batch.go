package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// BatchItem is one entry of the batch data file.
type BatchItem struct {
	URL       string   `json:"url" yaml:"url"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Title     string   `json:"title,omitempty" yaml:"title,omitempty"`
	Canonical string   `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Banner    string   `json:"banner,omitempty" yaml:"banner,omitempty"`
}

// rawBatchItem accepts the loose shapes found in hand-maintained data files:
// the URL may live under url, link or path, and tags may be a string or a list.
type rawBatchItem struct {
	URL       string `json:"url" yaml:"url"`
	Link      string `json:"link" yaml:"link"`
	Path      string `json:"path" yaml:"path"`
	Title     string `json:"title" yaml:"title"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Banner    string `json:"banner" yaml:"banner"`
}

func (r rawBatchItem) item(tags []string) BatchItem {
	url := r.URL
	if url == "" {
		url = r.Link
	}
	if url == "" {
		url = r.Path
	}
	return BatchItem{
		URL:       strings.TrimSpace(url),
		Tags:      tags,
		Title:     strings.TrimSpace(r.Title),
		Canonical: strings.TrimSpace(r.Canonical),
		Banner:    strings.TrimSpace(r.Banner),
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BatchItem) UnmarshalJSON(data []byte) error {
	var raw rawBatchItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var withTags struct {
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(data, &withTags); err != nil {
		return err
	}

	tags, err := decodeJSONTags(withTags.Tags)
	if err != nil {
		return err
	}
	*b = raw.item(tags)
	return nil
}

func decodeJSONTags(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return SplitTags(one), nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("tags must be a string or a list of strings: %w", err)
	}
	return cleanTags(many), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BatchItem) UnmarshalYAML(value *yaml.Node) error {
	var raw rawBatchItem
	if err := value.Decode(&raw); err != nil {
		return err
	}
	var withTags struct {
		Tags yaml.Node `yaml:"tags"`
	}
	if err := value.Decode(&withTags); err != nil {
		return err
	}

	var tags []string
	switch withTags.Tags.Kind {
	case yaml.ScalarNode:
		tags = SplitTags(withTags.Tags.Value)
	case yaml.SequenceNode:
		var many []string
		if err := withTags.Tags.Decode(&many); err != nil {
			return fmt.Errorf("decode tags: %w", err)
		}
		tags = cleanTags(many)
	}
	*b = raw.item(tags)
	return nil
}

// SplitTags parses a comma-separated tag list, dropping blanks.
func SplitTags(s string) []string {
	return cleanTags(strings.Split(s, ","))
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ItemError records a failed batch attempt.
type ItemError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RunState is the persisted partition of batch URLs.
// After initialization every known URL sits in exactly one of the three lists.
type RunState struct {
	Processed []string    `json:"processed"`
	Pending   []string    `json:"pending"`
	Error     []ItemError `json:"error"`
}

// NewRunState creates a state with every URL pending, in order.
func NewRunState(urls []string) *RunState {
	s := &RunState{
		Processed: []string{},
		Pending:   []string{},
		Error:     []ItemError{},
	}
	s.AddPending(urls...)
	return s
}

// Contains reports whether url is tracked in any partition.
func (s *RunState) Contains(url string) bool {
	if slices.Contains(s.Processed, url) || slices.Contains(s.Pending, url) {
		return true
	}
	return slices.ContainsFunc(s.Error, func(e ItemError) bool { return e.URL == url })
}

// AddPending appends URLs not yet tracked anywhere. Returns how many were added.
func (s *RunState) AddPending(urls ...string) int {
	added := 0
	for _, u := range urls {
		if u == "" || s.Contains(u) {
			continue
		}
		s.Pending = append(s.Pending, u)
		added++
	}
	return added
}

// MarkProcessed moves url from pending to processed.
func (s *RunState) MarkProcessed(url string) {
	s.removePending(url)
	s.Processed = append(s.Processed, url)
}

// MarkError moves url from pending to the error list.
func (s *RunState) MarkError(url, msg string) {
	s.removePending(url)
	s.Error = append(s.Error, ItemError{URL: url, Error: msg})
}

func (s *RunState) removePending(url string) {
	s.Pending = slices.DeleteFunc(s.Pending, func(p string) bool { return p == url })
}
