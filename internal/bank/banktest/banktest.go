// Package banktest builds bank images for tests.
package banktest

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// File is one entry to place in a test bank.
type File struct {
	Path string
	Data []byte
	// Method and OriginalSize override the header fields when non-zero,
	// for entries whose Data is already packed.
	Method       uint32
	OriginalSize uint32
}

// Build returns the bytes of a bank holding files. A non-empty prefix is
// written as a product entry. The trailing checksum is always appended.
func Build(prefix string, files []File) []byte {
	var buf bytes.Buffer
	if prefix != "" {
		writeEntry(&buf, "", 0x56657273, 0, 0)
		writeString(&buf, "prefix")
		writeString(&buf, prefix)
		writeString(&buf, "")
	}
	for _, f := range files {
		writeEntry(&buf, f.Path, f.Method, f.OriginalSize, uint32(len(f.Data)))
	}
	writeEntry(&buf, "", 0, 0, 0)
	for _, f := range files {
		buf.Write(f.Data)
	}
	sum := sha1.Sum(buf.Bytes())
	buf.WriteByte(0)
	buf.Write(sum[:])
	return buf.Bytes()
}

// Write builds a bank and stores it as dir/name, returning the full path.
func Write(t testing.TB, dir, name, prefix string, files []File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, Build(prefix, files), 0644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	return path
}

// Literals encodes data as an LZSS stream made only of literal runs,
// followed by the additive checksum.
func Literals(data []byte) []byte {
	var out bytes.Buffer
	for i := 0; i < len(data); i += 8 {
		end := min(i+8, len(data))
		out.WriteByte(0xFF)
		out.Write(data[i:end])
	}
	var sum uint32
	for _, c := range data {
		sum += uint32(c)
	}
	_ = binary.Write(&out, binary.LittleEndian, sum)
	return out.Bytes()
}

func writeEntry(buf *bytes.Buffer, name string, method, originalSize, dataSize uint32) {
	writeString(buf, name)
	for _, v := range []uint32{method, originalSize, 0, 0, dataSize} {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
