package param

import (
	"errors"
	"strings"
	"testing"
)

const sampleConfig = `
#include "script_component.hpp"
// patches
class CfgPatches {
	class MyMod {
		units[] = {};
		requiredVersion = 2.04;
		requiredAddons[] = {"CBA_A3", "CBA_A3_Extras"};
		author = "Someone ""quoted""";
		hex = 0x10;
		nested[] = {1, {2, "three"}, bare_word};
	};
};
/* block
   comment */
class CfgVehicles {
	class Car;
	class MyCar : Car {
		scope = 2;
		model = \x\mymod\car.p3d;
	};
	delete OldCar;
};
enum {
	destructNo = 0,
	destructBuilding = 1
};
`

func mustParse(t *testing.T, src string, opts Options) *Tree {
	t.Helper()
	tree, err := ParseBytes("config", []byte(src), opts)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	return tree
}

func TestParseText(t *testing.T) {
	tree := mustParse(t, sampleConfig, Options{AllowMissingDeleteTargets: true})
	if tree.Format != FormatText {
		t.Errorf("Format = %v, want text", tree.Format)
	}
	if tree.Root.Name != "config" {
		t.Errorf("root name = %q", tree.Root.Name)
	}

	patches := tree.Root.FindClass("cfgpatches")
	if patches == nil {
		t.Fatal("CfgPatches not found")
	}
	my := patches.FindClass("MyMod")
	if my == nil {
		t.Fatal("MyMod not found")
	}

	req, ok := my.Lookup("REQUIREDADDONS")
	if !ok || req.Kind != MemberArray {
		t.Fatalf("requiredAddons = %+v, %v", req, ok)
	}
	if got := req.Value.String(); got != "{CBA_A3,CBA_A3_Extras}" {
		t.Errorf("requiredAddons = %s", got)
	}

	tests := []struct {
		name string
		kind ValueKind
		want string
	}{
		{"requiredVersion", KindFloat, "2.04"},
		{"author", KindString, `Someone "quoted"`},
		{"hex", KindInt, "16"},
		{"nested", KindArray, "{1,{2,three},bare_word}"},
		{"units", KindArray, "{}"},
	}
	for _, tt := range tests {
		m, ok := my.Lookup(tt.name)
		if !ok {
			t.Errorf("%s not found", tt.name)
			continue
		}
		if m.Value.Kind != tt.kind || m.Value.String() != tt.want {
			t.Errorf("%s = (%v) %q, want (%v) %q", tt.name, m.Value.Kind, m.Value.String(), tt.kind, tt.want)
		}
	}

	vehicles := tree.Root.FindClass("CfgVehicles")
	car := vehicles.FindClass("MyCar")
	if car == nil || car.Parent != "Car" {
		t.Fatalf("MyCar = %+v", car)
	}
	if m, _ := car.Lookup("model"); m.Value.Str != `\x\mymod\car.p3d` {
		t.Errorf("bare model = %q", m.Value.Str)
	}
	if ext := vehicles.FindClass("Car"); ext == nil || !ext.Extern {
		t.Errorf("Car should be an extern declaration: %+v", ext)
	}
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing semicolon", "class A {}", "expected ';'"},
		{"unclosed class", "class A {", "missing '}'"},
		{"stray brace", "};", "unexpected '}'"},
		{"unterminated string", `x = "abc;`, "unterminated string"},
		{"missing value", "x = ;", "missing value"},
		{"bad array", `x[] = {"a" "b"};`, "expected ',' or '}'"},
		{"unterminated comment", "/* never", "unterminated block comment"},
		{"not an identifier", "class {};", "expected identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes("config", []byte(tt.src), Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not *Error", err)
			}
			if perr.Pos.Line == 0 {
				t.Errorf("text error without line: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseText_ErrorPosition(t *testing.T) {
	_, err := ParseBytes("config", []byte("class A {\n  x = 1\n};"), Options{})
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v", err)
	}
	// the bare value swallows the closing brace, leaving the class open
	if perr.Pos.Line != 3 {
		t.Errorf("line = %d, want 3", perr.Pos.Line)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		opts    Options
		wantErr string
	}{
		{
			name:    "duplicate class",
			src:     "class A {}; class A {};",
			wantErr: "already defined",
		},
		{
			name: "duplicate class tolerated",
			src:  "class A {}; class A {};",
			opts: Options{AllowDuplicateClasses: true},
		},
		{
			name: "forward declaration then definition",
			src:  "class A; class A {};",
		},
		{
			name:    "missing parent",
			src:     "class B : A {};",
			wantErr: "undefined class A",
		},
		{
			name: "missing parent tolerated",
			src:  "class B : A {};",
			opts: Options{AllowMissingParents: true},
		},
		{
			name: "parent in outer scope",
			src:  "class A {}; class Outer { class B : A {}; };",
		},
		{
			name:    "missing delete target",
			src:     "delete A;",
			wantErr: "delete of undefined class A",
		},
		{
			name: "missing delete target tolerated",
			src:  "delete A;",
			opts: Options{AllowMissingDeleteTargets: true},
		},
		{
			name: "skip validation",
			src:  "class A {}; class A {}; class B : Missing {}; delete Gone;",
			opts: Options{SkipValidation: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes("config", []byte(tt.src), tt.opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DuplicateLaterWins(t *testing.T) {
	tree := mustParse(t, `class A { x = 1; }; class A { x = 2; };`, Options{AllowDuplicateClasses: true})
	if n := len(tree.Root.Classes()); n != 1 {
		t.Fatalf("classes = %d, want 1", n)
	}
	if m, _ := tree.Root.FindClass("A").Lookup("x"); m.Value.Int != 2 {
		t.Errorf("x = %d, want 2", m.Value.Int)
	}
}

func TestValidate_DeleteRemovesClass(t *testing.T) {
	tree := mustParse(t, `class A {}; delete A;`, Options{})
	if tree.Root.FindClass("A") != nil {
		t.Error("deleted class still present")
	}
}

func TestCharset(t *testing.T) {
	// "é" in windows-1252
	src := []byte("author = \"Caf\xe9\";")
	tree := mustParse(t, string(src), Options{Charset: "windows-1252"})
	if m, _ := tree.Root.Lookup("author"); m.Value.Str != "Café" {
		t.Errorf("author = %q, want Café", m.Value.Str)
	}

	if _, err := ParseBytes("config", src, Options{Charset: "no-such-charset"}); err == nil {
		t.Error("expected error for unknown charset")
	}

	text, err := DecodeText("", []byte("plain"))
	if err != nil || text != "plain" {
		t.Errorf("DecodeText default = %q, %v", text, err)
	}
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"text float keeps double precision", Value{Kind: KindFloat, Float: 123456789.5}, "123456789.5"},
		{"binary float is shortest single", Value{Kind: KindFloat, Float: float64(float32(0.1)), Single: true}, "0.1"},
		{"negative int", Value{Kind: KindInt, Int: -3}, "-3"},
		{"nested array", Value{Kind: KindArray, Items: []Value{{Kind: KindString, Str: "a"}, {Kind: KindArray}}}, "{a,{}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseText_LargeFloat(t *testing.T) {
	tree, err := ParseBytes("config", []byte("x = 123456789.5;"), Options{})
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if m, _ := tree.Root.Lookup("x"); m.Value.String() != "123456789.5" {
		t.Errorf("x = %q", m.Value.String())
	}
}

func TestLookup_AppendExtendsEarlierArray(t *testing.T) {
	tree, err := ParseBytes("config", []byte(`class A {
	list[] = {"x"};
	other = 1;
	LIST[] += {"y", "z"};
};`), Options{})
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	a := tree.Root.FindClass("A")
	m, ok := a.Lookup("list")
	if !ok || m.Append || m.Value.String() != "{x,y,z}" {
		t.Errorf("list = %+v, %v", m, ok)
	}
	// the tree itself is unchanged
	if first := a.Members[0].Value.String(); first != "{x}" {
		t.Errorf("first member = %q", first)
	}
}
