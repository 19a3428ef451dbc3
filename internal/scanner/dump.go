package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FlipperPlz/BankProcessor/internal/logging"
	"github.com/FlipperPlz/BankProcessor/internal/param"
)

// Dumper writes the raw bytes of an entry that failed to parse as text, for
// the operator to inspect.
type Dumper struct {
	// Charset decodes the bytes, as for parsing.
	Charset string
	Logger  *logging.Logger
	// Dir, when set, also receives the text as failed_<entry>.txt.
	Dir string
}

var dumpNameReplacer = strings.NewReplacer(`\`, "_", "/", "_", ":", "_", " ", "_")

// DumpFileName is the file Dump writes for entry inside Dir.
func DumpFileName(entry string) string {
	return "failed_" + dumpNameReplacer.Replace(strings.Trim(entry, `\/`)) + ".txt"
}

// Dump logs the decoded contents of raw and returns the file written, if
// any. Bytes the charset cannot decode are replaced, never dropped.
func (d *Dumper) Dump(entry string, raw []byte) (string, error) {
	text, err := param.DecodeText(d.Charset, raw)
	if err != nil {
		text = strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	d.Logger.Error("failed entry contents", "entry", entry, "bytes", len(raw), "content", text)

	if d.Dir == "" {
		return "", nil
	}
	path := filepath.Join(d.Dir, DumpFileName(entry))
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create dump directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("cannot write dump %q: %w", path, err)
	}
	return path, nil
}
