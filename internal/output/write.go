package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists the supported encodings.
var Formats = []Format{FormatJSON, FormatYAML, FormatTOML}

// ParseFormat accepts a format name case-insensitively; "yml" is an alias of
// yaml and the empty string selects json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want json, yaml or toml)", s)
}

// FileName is the report file written into an output directory.
func (f Format) FileName() string {
	return "patches." + string(f)
}

// Marshal encodes r.
func Marshal(r *Report, f Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON, "":
		data, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case FormatYAML:
		data, err = yaml.Marshal(r)
	case FormatTOML:
		data, err = toml.Marshal(r)
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s report: %w", f, err)
	}
	return data, nil
}

// WriteReport encodes r and writes it to outputPath, or to stdout if
// outputPath is "-".
func WriteReport(r *Report, f Format, outputPath string) error {
	data, err := Marshal(r, f)
	if err != nil {
		return err
	}
	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// PrepareOutputDir deletes dir if it exists and creates it empty.
func PrepareOutputDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("cannot resolve output directory %q: %w", dir, err)
	}
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("refusing to recreate filesystem root %q", abs)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("cannot remove output directory %q: %w", abs, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("cannot create output directory %q: %w", abs, err)
	}
	return nil
}
