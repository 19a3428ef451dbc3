// Package param parses configuration entries, in either the textual or the
// rapified binary encoding, into a generic tree of classes, properties and
// arrays.
package param

import (
	"bytes"
	"fmt"
	"io"
)

// rapMagic opens every rapified (binary) entry.
var rapMagic = []byte("\x00raP")

// Options are the leniency toggles applied to every entry of a run.
type Options struct {
	// Charset names the encoding of text entries and binary strings.
	Charset string
	// AllowDuplicateClasses keeps the later of two same-named classes in a
	// scope instead of failing.
	AllowDuplicateClasses bool
	// AllowMissingParents accepts inheritance from a class that is not in
	// scope.
	AllowMissingParents bool
	// AllowMissingDeleteTargets accepts "delete X;" when X is not in scope.
	AllowMissingDeleteTargets bool
	// SkipValidation disables all semantic checks after parsing.
	SkipValidation bool
}

// Position locates a parse error. Text entries fill Line and Col, binary
// entries fill Offset.
type Position struct {
	Line   int
	Col    int
	Offset int
}

func (p Position) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("offset %d", p.Offset)
}

// Error is a parse or validation failure.
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return e.Pos.String() + ": " + e.Msg
}

func errorf(pos Position, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsBinary reports whether data is a rapified entry.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, rapMagic)
}

// Parse reads r completely and builds a tree whose root class is named
// rootName. The encoding is chosen from the content, not from the entry name.
func Parse(rootName string, r io.Reader, opts Options) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rootName, err)
	}
	return ParseBytes(rootName, data, opts)
}

// ParseBytes is Parse for data already in memory.
func ParseBytes(rootName string, data []byte, opts Options) (*Tree, error) {
	enc, err := LookupCharset(opts.Charset)
	if err != nil {
		return nil, err
	}

	var tree *Tree
	if IsBinary(data) {
		tree, err = parseBinary(rootName, data, enc.NewDecoder())
	} else {
		var text []byte
		text, err = enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", rootName, err)
		}
		tree, err = parseText(rootName, string(text))
	}
	if err != nil {
		return nil, err
	}

	if !opts.SkipValidation {
		if err := validate(tree.Root, opts); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
