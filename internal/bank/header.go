package bank

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxNameLen guards against reading garbage as a file name.
const maxNameLen = 1024

type headerReader struct {
	r   *bufio.Reader
	pos int64
}

func (h *headerReader) asciiz() (string, error) {
	var sb strings.Builder
	for {
		c, err := h.r.ReadByte()
		if err != nil {
			return "", err
		}
		h.pos++
		if c == 0 {
			return sb.String(), nil
		}
		if sb.Len() >= maxNameLen {
			return "", fmt.Errorf("string at offset %d exceeds %d bytes", h.pos, maxNameLen)
		}
		sb.WriteByte(c)
	}
}

func (h *headerReader) uint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(h.r, buf[:]); err != nil {
		return 0, err
	}
	h.pos += 4
	return binary.LittleEndian.Uint32(buf[:]), nil
}

type rawEntry struct {
	name         string
	method       PackingMethod
	originalSize uint32
	offset       uint32
	timestamp    uint32
	dataSize     uint32
}

func (r rawEntry) isTerminator() bool {
	return r.name == "" && r.method == MethodRaw && r.dataSize == 0
}

func (h *headerReader) entry() (rawEntry, error) {
	var e rawEntry
	var err error
	if e.name, err = h.asciiz(); err != nil {
		return e, err
	}
	fields := []*uint32{(*uint32)(&e.method), &e.originalSize, &e.offset, &e.timestamp, &e.dataSize}
	for _, f := range fields {
		if *f, err = h.uint32(); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (b *Bank) readHeader(src io.ReaderAt, size int64, opts Options) error {
	h := &headerReader{r: bufio.NewReader(io.NewSectionReader(src, 0, size))}

	var raws []rawEntry
	first := true
	for {
		e, err := h.entry()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("truncated header at offset %d", h.pos)
			}
			return err
		}
		if e.name == "" && e.method == MethodVersion {
			if !first {
				if !opts.AllowObfuscated {
					return fmt.Errorf("%w: product entry at offset %d is not the first entry", ErrObfuscated, h.pos)
				}
			} else if opts.StrictVersionEntry && (e.originalSize != 0 || e.offset != 0 || e.timestamp != 0 || e.dataSize != 0) {
				return fmt.Errorf("product entry has non-zero size fields")
			}
			if err := b.readProperties(h); err != nil {
				return err
			}
			first = false
			continue
		}
		first = false
		if e.isTerminator() {
			break
		}
		raws = append(raws, e)
	}

	dataStart := h.pos
	cursor := dataStart
	seen := map[string]bool{}
	for _, raw := range raws {
		start := cursor
		cursor += int64(raw.dataSize)
		if opts.RespectOffsets && raw.offset != 0 {
			start = dataStart + int64(raw.offset)
		}

		if start+int64(raw.dataSize) > size {
			if opts.AllowInvalidOffsets {
				continue
			}
			return fmt.Errorf("entry %q data [%d, %d) exceeds bank size %d",
				raw.name, start, start+int64(raw.dataSize), size)
		}
		if raw.dataSize == 0 && !opts.RegisterEmptyEntries {
			continue
		}

		name := strings.ReplaceAll(raw.name, "/", `\`)
		lower := strings.ToLower(name)
		if !validName(name) || seen[lower] || raw.method == MethodEncrypted {
			if !opts.AllowObfuscated {
				return fmt.Errorf("%w: entry %q", ErrObfuscated, raw.name)
			}
			if seen[lower] || !validName(name) {
				continue
			}
		}
		seen[lower] = true
		b.register(name, raw, start)
	}

	if opts.RequireSignature {
		if err := verifySignature(src, cursor, size); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bank) readProperties(h *headerReader) error {
	for {
		key, err := h.asciiz()
		if err != nil {
			return fmt.Errorf("truncated product entry: %w", err)
		}
		if key == "" {
			return nil
		}
		value, err := h.asciiz()
		if err != nil {
			return fmt.Errorf("truncated product entry: %w", err)
		}
		b.Properties = append(b.Properties, Property{Key: key, Value: value})
		if strings.EqualFold(key, "prefix") {
			b.Prefix = strings.Trim(strings.ReplaceAll(value, "/", `\`), `\`)
		}
	}
}

func (b *Bank) register(name string, raw rawEntry, start int64) {
	name = strings.Trim(name, `\`)
	parts := strings.Split(name, `\`)
	dir := b.Root.ensureDir(parts[:len(parts)-1])
	e := &Entry{
		Name:         parts[len(parts)-1],
		Path:         name,
		Method:       raw.method,
		OriginalSize: raw.originalSize,
		Offset:       raw.offset,
		Timestamp:    raw.timestamp,
		DataSize:     raw.dataSize,
		Bank:         b,
		Dir:          dir,
		dataStart:    start,
	}
	dir.Entries = append(dir.Entries, e)
	b.entries = append(b.entries, e)
}

func validName(name string) bool {
	if strings.Trim(name, `\`) == "" {
		return false
	}
	for _, part := range strings.Split(strings.Trim(name, `\`), `\`) {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`*?"<>|:`, r) {
			return false
		}
	}
	return true
}

// verifySignature checks the 0x00 marker and SHA-1 that follow the data block.
func verifySignature(src io.ReaderAt, dataEnd, size int64) error {
	if size-dataEnd < 21 {
		return fmt.Errorf("%w: no checksum after data", ErrSignature)
	}
	var trailer [21]byte
	if _, err := src.ReadAt(trailer[:], dataEnd); err != nil {
		return fmt.Errorf("read checksum: %w", err)
	}
	if trailer[0] != 0 {
		return fmt.Errorf("%w: missing checksum marker", ErrSignature)
	}
	hasher := sha1.New()
	if _, err := io.Copy(hasher, io.NewSectionReader(src, 0, dataEnd)); err != nil {
		return fmt.Errorf("hash bank: %w", err)
	}
	if !bytes.Equal(hasher.Sum(nil), trailer[1:]) {
		return ErrSignature
	}
	return nil
}
