package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a manifest document
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension.
// Anything other than .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is a manifest document as served by the plugins endpoint
type Document struct {
	Plugins []PluginRecord `json:"plugins" yaml:"plugins"`
}

// wireRecord accepts the legacy "plugin" key and loosely formatted timestamps
type wireRecord struct {
	Name         string    `json:"name" yaml:"name"`
	Plugin       string    `json:"plugin" yaml:"plugin"`
	Description  string    `json:"description" yaml:"description"`
	Usage        int64     `json:"usage" yaml:"usage"`
	LastUsed     timestamp `json:"last_used" yaml:"last_used"`
	Tags         []string  `json:"tags" yaml:"tags"`
	Category     string    `json:"category" yaml:"category"`
	Capabilities []string  `json:"capabilities" yaml:"capabilities"`
	RequiresLLM  bool      `json:"requires_llm" yaml:"requires_llm"`
	Namespace    string    `json:"namespace" yaml:"namespace"`
	Path         string    `json:"path" yaml:"path"`
}

type wireDocument struct {
	Plugins []wireRecord `json:"plugins" yaml:"plugins"`
}

func (w wireRecord) record() PluginRecord {
	name := w.Name
	if name == "" {
		name = w.Plugin
	}
	return PluginRecord{
		Name:         name,
		Description:  w.Description,
		Usage:        w.Usage,
		LastUsed:     w.LastUsed.ptr(),
		Tags:         w.Tags,
		Category:     w.Category,
		Capabilities: w.Capabilities,
		RequiresLLM:  w.RequiresLLM,
		Namespace:    w.Namespace,
		Path:         w.Path,
	}
}

// Decode reads a manifest document and validates its records
func Decode(r io.Reader, format Format) ([]PluginRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return DecodeBytes(data, format)
}

// DecodeBytes parses a manifest document and validates its records
func DecodeBytes(data []byte, format Format) ([]PluginRecord, error) {
	var doc wireDocument

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
	case FormatJSON, "":
		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '[' {
			// a bare array is accepted as the plugins list
			if err := json.Unmarshal(data, &doc.Plugins); err != nil {
				return nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
		} else if len(data) > 0 {
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}

	records := make([]PluginRecord, 0, len(doc.Plugins))
	for _, w := range doc.Plugins {
		records = append(records, w.record())
	}

	if err := Validate(records); err != nil {
		return nil, err
	}

	return records, nil
}

// DecodeFile loads a manifest document from disk
func DecodeFile(path string) ([]PluginRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Decode(f, FormatFromPath(path))
}

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// timestamp decodes RFC 3339 strings, zone-less ISO strings (taken as UTC)
// and numeric unix seconds
type timestamp struct {
	t     time.Time
	valid bool
}

func (ts timestamp) ptr() *time.Time {
	if !ts.valid {
		return nil
	}
	t := ts.t
	return &t
}

// ParseTimestamp decodes a JSON timestamp in any form accepted for
// last_used. Absent or null values yield the zero time.
func ParseTimestamp(data []byte) (time.Time, error) {
	var ts timestamp
	if len(data) == 0 {
		return time.Time{}, nil
	}
	if err := ts.UnmarshalJSON(data); err != nil {
		return time.Time{}, err
	}
	return ts.t, nil
}

func (ts *timestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		return ts.parse(str)
	}
	return ts.parseUnix(s)
}

func (ts *timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" || node.Value == "" {
		return nil
	}
	switch node.Tag {
	case "!!int", "!!float":
		return ts.parseUnix(node.Value)
	default:
		return ts.parse(node.Value)
	}
}

func (ts *timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.t, ts.valid = t, true
			return nil
		}
	}
	return fmt.Errorf("invalid last_used timestamp: %q", s)
}

func (ts *timestamp) parseUnix(s string) error {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid last_used timestamp: %q", s)
	}
	whole, frac := math.Modf(secs)
	ts.t = time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
	ts.valid = true
	return nil
}

// Encode writes records as a manifest document
func Encode(w io.Writer, records []PluginRecord, format Format) error {
	doc := Document{Plugins: records}
	if doc.Plugins == nil {
		doc.Plugins = []PluginRecord{}
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(doc)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
}
