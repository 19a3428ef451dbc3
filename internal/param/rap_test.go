package param

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// rapify encodes a tree in the binary layout read by parseBinary.
func rapify(root *Class) []byte {
	var buf bytes.Buffer
	buf.Write(rapMagic)
	writeU32(&buf, 0)
	writeU32(&buf, 8)
	enumPos := buf.Len()
	writeU32(&buf, 0)
	writeBody(&buf, root)
	binary.LittleEndian.PutUint32(buf.Bytes()[enumPos:], uint32(buf.Len()))
	writeU32(&buf, 0)
	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

func writeZ(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeCompressed(buf *bytes.Buffer, n int) {
	for {
		b := byte(n & 0x7F)
		n >>= 7
		if n == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

func writeScalar(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindString:
		writeZ(buf, v.Str)
	case KindFloat:
		writeU32(buf, math.Float32bits(float32(v.Float)))
	case KindInt:
		writeU32(buf, uint32(int32(v.Int)))
	}
}

func writeArray(buf *bytes.Buffer, v Value) {
	writeCompressed(buf, len(v.Items))
	for _, item := range v.Items {
		if item.Kind == KindArray {
			buf.WriteByte(rapNested)
			writeArray(buf, item)
			continue
		}
		buf.WriteByte(byte(item.Kind))
		writeScalar(buf, item)
	}
}

func writeBody(buf *bytes.Buffer, c *Class) {
	writeZ(buf, c.Parent)
	writeCompressed(buf, len(c.Members))
	type pending struct {
		pos int
		cls *Class
	}
	var later []pending
	for _, m := range c.Members {
		switch m.Kind {
		case MemberClass:
			if m.Class.Extern {
				buf.WriteByte(rapExtern)
				writeZ(buf, m.Name)
				continue
			}
			buf.WriteByte(rapClass)
			writeZ(buf, m.Name)
			later = append(later, pending{pos: buf.Len(), cls: m.Class})
			writeU32(buf, 0)
		case MemberProperty:
			buf.WriteByte(rapValue)
			buf.WriteByte(byte(m.Value.Kind))
			writeZ(buf, m.Name)
			writeScalar(buf, m.Value)
		case MemberArray:
			if m.Append {
				buf.WriteByte(rapArrayAppend)
				writeU32(buf, 1)
			} else {
				buf.WriteByte(rapArray)
			}
			writeZ(buf, m.Name)
			writeArray(buf, m.Value)
		case MemberDelete:
			buf.WriteByte(rapDelete)
			writeZ(buf, m.Name)
		}
	}
	for _, p := range later {
		binary.LittleEndian.PutUint32(buf.Bytes()[p.pos:], uint32(buf.Len()))
		writeBody(buf, p.cls)
	}
}

func str(s string) Value   { return Value{Kind: KindString, Str: s} }
func num(n int64) Value    { return Value{Kind: KindInt, Int: n} }
func arr(v ...Value) Value { return Value{Kind: KindArray, Items: v} }

func sampleBinaryTree() *Class {
	myMod := &Class{Name: "MyMod", Members: []Member{
		{Kind: MemberArray, Name: "requiredAddons", Value: arr(str("CBA_A3"), str("A3_Data_F"))},
		{Kind: MemberProperty, Name: "requiredVersion", Value: Value{Kind: KindFloat, Float: 1.5}},
		{Kind: MemberArray, Name: "units", Value: arr(num(1), arr(num(2), str("x")))},
	}}
	other := &Class{Name: "Other", Members: []Member{
		{Kind: MemberArray, Name: "requiredAddons", Value: arr(str("MyMod")), Append: true},
	}}
	patches := &Class{Name: "CfgPatches", Members: []Member{
		{Kind: MemberClass, Name: "MyMod", Class: myMod},
		{Kind: MemberClass, Name: "Other", Class: other},
	}}
	vehicles := &Class{Name: "CfgVehicles", Members: []Member{
		{Kind: MemberClass, Name: "Car", Class: &Class{Name: "Car", Extern: true}},
		{Kind: MemberClass, Name: "MyCar", Class: &Class{Name: "MyCar", Parent: "Car", Members: []Member{
			{Kind: MemberProperty, Name: "scope", Value: num(2)},
		}}},
		{Kind: MemberDelete, Name: "OldCar"},
	}}
	return &Class{Members: []Member{
		{Kind: MemberClass, Name: "CfgPatches", Class: patches},
		{Kind: MemberClass, Name: "CfgVehicles", Class: vehicles},
	}}
}

func TestParseBinary(t *testing.T) {
	data := rapify(sampleBinaryTree())
	if !IsBinary(data) {
		t.Fatal("IsBinary = false for rapified data")
	}

	tree, err := ParseBytes("config", data, Options{AllowMissingDeleteTargets: true})
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if tree.Format != FormatBinary {
		t.Errorf("Format = %v, want binary", tree.Format)
	}
	if tree.Root.Name != "config" {
		t.Errorf("root name = %q", tree.Root.Name)
	}

	patches := tree.Root.FindClass("CfgPatches")
	if patches == nil || len(patches.Classes()) != 2 {
		t.Fatalf("CfgPatches = %+v", patches)
	}
	my := patches.FindClass("mymod")
	req, _ := my.Lookup("requiredAddons")
	if got := req.Value.String(); got != "{CBA_A3,A3_Data_F}" {
		t.Errorf("requiredAddons = %s", got)
	}
	if v, _ := my.Lookup("requiredVersion"); v.Value.Kind != KindFloat || v.Value.Float != 1.5 {
		t.Errorf("requiredVersion = %+v", v.Value)
	}
	if u, _ := my.Lookup("units"); u.Value.String() != "{1,{2,x}}" {
		t.Errorf("units = %s", u.Value.String())
	}
	if o, _ := patches.FindClass("Other").Lookup("requiredAddons"); !o.Append {
		t.Error("append flag lost")
	}

	car := tree.Root.FindClass("CfgVehicles").FindClass("MyCar")
	if car == nil || car.Parent != "Car" {
		t.Errorf("MyCar = %+v", car)
	}
}

func TestParseBinary_Validation(t *testing.T) {
	data := rapify(sampleBinaryTree())
	_, err := ParseBytes("config", data, Options{})
	if err == nil || !strings.Contains(err.Error(), "delete of undefined class OldCar") {
		t.Errorf("err = %v, want delete target error", err)
	}
}

func TestParseBinary_Malformed(t *testing.T) {
	good := rapify(sampleBinaryTree())
	tests := []struct {
		name string
		data []byte
	}{
		{"header only", []byte("\x00raP\x00\x00")},
		{"truncated body", good[:len(good)/2]},
		{"unknown entry type", append([]byte("\x00raP"), 0, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 1, 9)},
		{"class offset outside data", append([]byte("\x00raP"), 0, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 'A', 0, 0xFF, 0xFF, 0, 0)},
		// A and B both point at the empty body at offset 32
		{"class body shared", append([]byte("\x00raP"), 0, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0,
			0, 2,
			0, 'A', 0, 32, 0, 0, 0,
			0, 'B', 0, 32, 0, 0, 0,
			0, 0)},
		{"class body is the root", append([]byte("\x00raP"), 0, 0, 0, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 'A', 0, 16, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes("config", tt.data, Options{SkipValidation: true})
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if perr.Pos.Line != 0 {
				t.Errorf("binary error should carry an offset, got %v", perr.Pos)
			}
		})
	}
}
