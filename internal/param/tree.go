package param

import (
	"strconv"
	"strings"
)

// ValueKind is the type of a property value or array item.
type ValueKind int

const (
	KindString ValueKind = iota
	KindFloat
	KindInt
	KindArray
)

// Value is a scalar or an array. Only the field matching Kind is set.
type Value struct {
	Kind   ValueKind
	Str    string
	Float  float64
	// Single marks a Float read from a 32-bit binary value.
	Single bool
	Int    int64
	Items  []Value
}

// String renders the value as an opaque identifier: strings as-is, numbers
// in their shortest form, arrays in braces.
func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		bits := 64
		if v.Single {
			bits = 32
		}
		return strconv.FormatFloat(v.Float, 'g', -1, bits)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindArray:
		parts := make([]string, len(v.Items))
		for i, item := range v.Items {
			parts[i] = item.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return v.Str
	}
}

// MemberKind is the kind of statement inside a class body.
type MemberKind int

const (
	MemberClass MemberKind = iota
	MemberProperty
	MemberArray
	MemberDelete
)

func (k MemberKind) String() string {
	switch k {
	case MemberClass:
		return "class"
	case MemberProperty:
		return "property"
	case MemberArray:
		return "array"
	case MemberDelete:
		return "delete"
	}
	return "unknown"
}

// Member is one statement of a class body.
type Member struct {
	Kind MemberKind
	Name string
	// Class is set for MemberClass.
	Class *Class
	// Value is set for MemberProperty and MemberArray (Kind == KindArray).
	Value Value
	// Append marks a "name[] += {...}" array.
	Append bool
	Pos    Position
}

// Class is a named scope of members.
type Class struct {
	Name string
	// Parent is the inherited class name, empty when none.
	Parent string
	// Extern marks a forward declaration ("class A;") without a body.
	Extern  bool
	Members []Member
	Pos     Position
}

// Format records which encoding a tree was parsed from.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

func (f Format) String() string {
	if f == FormatBinary {
		return "binary"
	}
	return "text"
}

// Tree is the parsed form of one configuration entry.
type Tree struct {
	Root   *Class
	Format Format
}

// Classes returns the nested classes in declaration order.
func (c *Class) Classes() []*Class {
	var out []*Class
	for _, m := range c.Members {
		if m.Kind == MemberClass {
			out = append(out, m.Class)
		}
	}
	return out
}

// FindClass returns the last nested class named name, compared
// case-insensitively.
func (c *Class) FindClass(name string) *Class {
	var found *Class
	for _, m := range c.Members {
		if m.Kind == MemberClass && strings.EqualFold(m.Name, name) {
			found = m.Class
		}
	}
	return found
}

// Lookup returns the last property or array named name, compared
// case-insensitively. An appending array (`name[] += {...}`) that follows an
// array of the same name in this class extends it instead of replacing it.
func (c *Class) Lookup(name string) (Member, bool) {
	var (
		found Member
		ok    bool
	)
	for _, m := range c.Members {
		if (m.Kind != MemberProperty && m.Kind != MemberArray) || !strings.EqualFold(m.Name, name) {
			continue
		}
		if ok && m.Append && found.Kind == MemberArray && found.Value.Kind == KindArray {
			items := make([]Value, 0, len(found.Value.Items)+len(m.Value.Items))
			items = append(items, found.Value.Items...)
			found.Value.Items = append(items, m.Value.Items...)
			continue
		}
		found, ok = m, true
	}
	return found, ok
}
