// Package bank reads PBO game-data archives ("banks") and exposes their
// entries as a virtual directory tree.
package bank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PackingMethod is the storage method recorded in an entry header.
type PackingMethod uint32

const (
	MethodRaw        PackingMethod = 0
	MethodCompressed PackingMethod = 0x43707273 // "Cprs"
	MethodVersion    PackingMethod = 0x56657273 // "Vers"
	MethodEncrypted  PackingMethod = 0x456e6372 // "Encr"
)

var (
	// ErrObfuscated is returned when a bank carries obfuscated or encrypted
	// entries and Options.AllowObfuscated is off.
	ErrObfuscated = errors.New("bank is obfuscated")
	// ErrEncrypted is returned when reading an encrypted entry.
	ErrEncrypted = errors.New("entry is encrypted")
	// ErrSignature is returned when the trailing checksum is missing or wrong
	// and Options.RequireSignature is on.
	ErrSignature = errors.New("bank checksum mismatch")
	// ErrDecompressTimeout is returned when an entry takes longer than
	// Options.DecompressionTimeout to inflate.
	ErrDecompressTimeout = errors.New("decompression timed out")
)

// Options control how strictly a bank is read. The same Options value is
// applied to every bank in a run.
type Options struct {
	// AllowObfuscated registers entries with mangled names, duplicate names or
	// encrypted payloads instead of rejecting the whole bank.
	AllowObfuscated bool
	// RequireSignature verifies the trailing SHA-1 of the bank.
	RequireSignature bool
	// RegisterEmptyEntries keeps zero-length entries in the directory tree.
	RegisterEmptyEntries bool
	// StrictVersionEntry rejects a product entry with non-zero size fields.
	StrictVersionEntry bool
	// RespectOffsets uses the header offset field to locate entry data when it
	// is non-zero.
	RespectOffsets bool
	// AllowInvalidOffsets skips entries whose data lies outside the file
	// instead of failing.
	AllowInvalidOffsets bool
	// DecompressionTimeout bounds inflating a single compressed entry.
	// Zero means no limit.
	DecompressionTimeout time.Duration
}

// Bank is an opened archive.
type Bank struct {
	// Path is where the bank was opened from.
	Path string
	// Prefix is the logical mount namespace, from the product entry or the
	// file name.
	Prefix string
	// Properties holds the product entry key/value pairs in file order.
	Properties []Property
	// Root is the top of the virtual directory tree.
	Root *Directory

	entries []*Entry
	src     io.ReaderAt
	closer  io.Closer
}

// Property is one product entry key/value pair.
type Property struct {
	Key   string
	Value string
}

// Entry is one file inside a bank.
type Entry struct {
	// Name is the file name without directories.
	Name string
	// Path is the path inside the bank using '\' separators.
	Path         string
	Method       PackingMethod
	OriginalSize uint32
	Offset       uint32
	Timestamp    uint32
	DataSize     uint32

	Bank *Bank
	Dir  *Directory

	dataStart int64
}

// Directory is a node of a bank's virtual directory tree.
type Directory struct {
	Name    string
	Path    string
	Parent  *Directory
	Entries []*Entry
	Dirs    []*Directory
	Bank    *Bank

	byName map[string]*Directory
}

// Open reads the header of the bank at path. The file stays open until Close.
func Open(path string, opts Options) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open bank %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot stat bank %q: %w", path, err)
	}
	b, err := Read(path, f, info.Size(), opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	b.closer = f
	return b, nil
}

// Read parses a bank from src. name is used for the fallback prefix and
// error messages.
func Read(name string, src io.ReaderAt, size int64, opts Options) (*Bank, error) {
	b := &Bank{Path: name, src: src}
	b.Root = &Directory{Bank: b, byName: map[string]*Directory{}}
	if err := b.readHeader(io.NewSectionReader(src, 0, size), size, opts); err != nil {
		return nil, fmt.Errorf("bank %q: %w", name, err)
	}
	if b.Prefix == "" {
		base := filepath.Base(name)
		b.Prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return b, nil
}

// Close releases the underlying file.
func (b *Bank) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Entries returns every registered entry in header order.
func (b *Bank) Entries() []*Entry {
	return b.entries
}

// Property returns the value of the product entry key, case-insensitively.
func (b *Bank) Property(key string) (string, bool) {
	for _, p := range b.Properties {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}
	return "", false
}

// LogicalPath is the entry path prefixed by its bank's mount namespace.
func (e *Entry) LogicalPath() string {
	if e.Bank == nil || e.Bank.Prefix == "" {
		return e.Path
	}
	return strings.TrimSuffix(e.Bank.Prefix, `\`) + `\` + e.Path
}

// Compressed reports whether the entry payload is LZSS packed.
func (e *Entry) Compressed() bool {
	if e.Method == MethodCompressed {
		return true
	}
	return e.Method == MethodRaw && e.OriginalSize != 0 && e.OriginalSize != e.DataSize
}

// Open reads and, if needed, inflates the entry payload.
func (e *Entry) Open(ctx context.Context, opts Options) (io.Reader, error) {
	if e.Method == MethodEncrypted {
		return nil, fmt.Errorf("%s: %w", e.LogicalPath(), ErrEncrypted)
	}
	raw := make([]byte, e.DataSize)
	if _, err := e.Bank.src.ReadAt(raw, e.dataStart); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", e.LogicalPath(), err)
	}
	if !e.Compressed() {
		return bytes.NewReader(raw), nil
	}

	if opts.DecompressionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DecompressionTimeout)
		defer cancel()
	}
	data, err := Decompress(ctx, raw, int(e.OriginalSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrDecompressTimeout, opts.DecompressionTimeout, err)
		}
		return nil, fmt.Errorf("inflate %s: %w", e.LogicalPath(), err)
	}
	return bytes.NewReader(data), nil
}

// Key returns the normalized identity of the directory across all banks of a
// run: the lower-case logical path with '/' separators.
func (d *Directory) Key() string {
	prefix := ""
	if d.Bank != nil {
		prefix = d.Bank.Prefix
	}
	return normalizeKey(prefix + `\` + d.Path)
}

// Walk visits d and its subdirectories depth first in enumeration order.
func (d *Directory) Walk(fn func(*Directory) bool) bool {
	if !fn(d) {
		return false
	}
	for _, child := range d.Dirs {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// ensureDir returns the directory for a '\' separated path, creating nodes
// on the way.
func (d *Directory) ensureDir(parts []string) *Directory {
	cur := d
	for _, part := range parts {
		key := strings.ToLower(part)
		next, ok := cur.byName[key]
		if !ok {
			path := part
			if cur.Path != "" {
				path = cur.Path + `\` + part
			}
			next = &Directory{
				Name:   part,
				Path:   path,
				Parent: cur,
				Bank:   cur.Bank,
				byName: map[string]*Directory{},
			}
			cur.byName[key] = next
			cur.Dirs = append(cur.Dirs, next)
		}
		cur = next
	}
	return cur
}

func normalizeKey(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.ToLower(strings.Trim(p, "/"))
}
