package param

import (
	"bytes"
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding"
)

// maxClassDepth bounds nesting so that cyclic body offsets cannot recurse
// forever.
const maxClassDepth = 256

// Entry type bytes of the rapified encoding.
const (
	rapClass       = 0
	rapValue       = 1
	rapArray       = 2
	rapExtern      = 3
	rapDelete      = 4
	rapArrayAppend = 5
)

// Value and array item type bytes.
const (
	rapString   = 0
	rapFloat    = 1
	rapInt      = 2
	rapNested   = 3
	rapVariable = 4
	rapInt64    = 6
)

type rapReader struct {
	data []byte
	pos  int
	dec  *encoding.Decoder
	// bodies holds every class body offset read so far.
	bodies map[int]bool
}

func parseBinary(rootName string, data []byte, dec *encoding.Decoder) (*Tree, error) {
	r := &rapReader{data: data, pos: len(rapMagic), dec: dec, bodies: map[int]bool{}}
	// two reserved words, then the enum table offset
	for range 3 {
		if _, err := r.uint32(); err != nil {
			return nil, err
		}
	}
	root := &Class{Name: rootName, Pos: Position{Offset: r.pos}}
	r.bodies[r.pos] = true
	if err := r.readBody(root, 0); err != nil {
		return nil, err
	}
	return &Tree{Root: root, Format: FormatBinary}, nil
}

func (r *rapReader) errorf(format string, args ...any) *Error {
	return errorf(Position{Offset: r.pos}, format, args...)
}

func (r *rapReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.errorf("unexpected end of data")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *rapReader) uint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, r.errorf("unexpected end of data reading uint32")
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *rapReader) uint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, r.errorf("unexpected end of data reading uint64")
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// compressedInt reads a 7-bit little-endian variable length integer.
func (r *rapReader) compressedInt() (int, error) {
	var (
		v     int
		shift uint
	)
	for {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		v |= int(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
		if shift > 28 {
			return 0, r.errorf("compressed integer too long")
		}
	}
}

func (r *rapReader) asciiz() (string, error) {
	end := bytes.IndexByte(r.data[r.pos:], 0)
	if end < 0 {
		return "", r.errorf("unterminated string")
	}
	raw := r.data[r.pos : r.pos+end]
	r.pos += end + 1
	s, err := r.dec.Bytes(raw)
	if err != nil {
		return "", r.errorf("decode string: %v", err)
	}
	return string(s), nil
}

func (r *rapReader) readBody(c *Class, depth int) error {
	if depth > maxClassDepth {
		return r.errorf("classes nested deeper than %d", maxClassDepth)
	}
	parent, err := r.asciiz()
	if err != nil {
		return err
	}
	c.Parent = parent
	count, err := r.compressedInt()
	if err != nil {
		return err
	}
	for range count {
		if err := r.readMember(c, depth); err != nil {
			return err
		}
	}
	return nil
}

func (r *rapReader) readMember(c *Class, depth int) error {
	pos := Position{Offset: r.pos}
	kind, err := r.readByte()
	if err != nil {
		return err
	}

	switch kind {
	case rapClass:
		name, err := r.asciiz()
		if err != nil {
			return err
		}
		offset, err := r.uint32()
		if err != nil {
			return err
		}
		if int(offset) >= len(r.data) {
			return errorf(pos, "class %s body offset %d outside data", name, offset)
		}
		if r.bodies[int(offset)] {
			return errorf(pos, "class %s body offset %d reused", name, offset)
		}
		r.bodies[int(offset)] = true
		child := &Class{Name: name, Pos: pos}
		resume := r.pos
		r.pos = int(offset)
		if err := r.readBody(child, depth+1); err != nil {
			return err
		}
		r.pos = resume
		c.Members = append(c.Members, Member{Kind: MemberClass, Name: name, Class: child, Pos: pos})

	case rapValue:
		sub, err := r.readByte()
		if err != nil {
			return err
		}
		name, err := r.asciiz()
		if err != nil {
			return err
		}
		v, err := r.scalar(sub)
		if err != nil {
			return err
		}
		c.Members = append(c.Members, Member{Kind: MemberProperty, Name: name, Value: v, Pos: pos})

	case rapArray, rapArrayAppend:
		if kind == rapArrayAppend {
			if _, err := r.uint32(); err != nil {
				return err
			}
		}
		name, err := r.asciiz()
		if err != nil {
			return err
		}
		arr, err := r.array(0)
		if err != nil {
			return err
		}
		c.Members = append(c.Members, Member{Kind: MemberArray, Name: name, Value: arr, Append: kind == rapArrayAppend, Pos: pos})

	case rapExtern:
		name, err := r.asciiz()
		if err != nil {
			return err
		}
		c.Members = append(c.Members, Member{Kind: MemberClass, Name: name, Class: &Class{Name: name, Extern: true, Pos: pos}, Pos: pos})

	case rapDelete:
		name, err := r.asciiz()
		if err != nil {
			return err
		}
		c.Members = append(c.Members, Member{Kind: MemberDelete, Name: name, Pos: pos})

	default:
		return errorf(pos, "unknown entry type %d", kind)
	}
	return nil
}

func (r *rapReader) scalar(kind byte) (Value, error) {
	switch kind {
	case rapString, rapVariable:
		s, err := r.asciiz()
		return Value{Kind: KindString, Str: s}, err
	case rapFloat:
		bits, err := r.uint32()
		return Value{Kind: KindFloat, Float: float64(math.Float32frombits(bits)), Single: true}, err
	case rapInt:
		n, err := r.uint32()
		return Value{Kind: KindInt, Int: int64(int32(n))}, err
	case rapInt64:
		n, err := r.uint64()
		return Value{Kind: KindInt, Int: int64(n)}, err
	}
	return Value{}, r.errorf("unknown value type %d", kind)
}

func (r *rapReader) array(depth int) (Value, error) {
	if depth > maxClassDepth {
		return Value{}, r.errorf("arrays nested deeper than %d", maxClassDepth)
	}
	count, err := r.compressedInt()
	if err != nil {
		return Value{}, err
	}
	arr := Value{Kind: KindArray, Items: make([]Value, 0, min(count, len(r.data)-r.pos))}
	for range count {
		kind, err := r.readByte()
		if err != nil {
			return Value{}, err
		}
		var item Value
		if kind == rapNested {
			item, err = r.array(depth + 1)
		} else {
			item, err = r.scalar(kind)
		}
		if err != nil {
			return Value{}, err
		}
		arr.Items = append(arr.Items, item)
	}
	return arr, nil
}
