package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/FlipperPlz/BankProcessor/internal/issue"
	"github.com/FlipperPlz/BankProcessor/internal/output"
	"github.com/FlipperPlz/BankProcessor/internal/scanner"
)

// testFlags declares a subset of the command line flags.
func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("folder", "f", "", "")
	fs.StringP("output", "o", "", "")
	fs.CountP("verbose", "v", "")
	fs.String("format", "json", "")
	fs.String("dedup", "last-write-wins", "")
	fs.Float64("dcTimeout", 0, "")
	fs.Bool("allow-missing-parents", false, "")
	fs.Bool("allow-obfuscated", false, "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func writeCUE(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bankproc.cue")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	fs := testFlags(t, "mods")
	cfg, err := Load(context.Background(), LoadOptions{Flags: fs, Args: fs.Args()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Input != "mods" {
		t.Errorf("Input = %q", cfg.Input)
	}
	if cfg.Format != output.FormatJSON || cfg.Policy != scanner.PolicyLastWriteWins {
		t.Errorf("format/policy = %q/%q", cfg.Format, cfg.Policy)
	}
	if cfg.Jobs <= 0 {
		t.Errorf("Jobs = %d, want NumCPU", cfg.Jobs)
	}
	if cfg.Bank.DecompressionTimeout != 0 || cfg.Param.AllowMissingParents {
		t.Errorf("unexpected options: %+v %+v", cfg.Bank, cfg.Param)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoad_Flags(t *testing.T) {
	fs := testFlags(t, "-f", "in", "-o", "out", "-vv", "--format", "yaml",
		"--dedup", "none", "--dcTimeout", "1.5", "--allow-missing-parents")
	cfg, err := Load(context.Background(), LoadOptions{Flags: fs, Args: fs.Args()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Input != "in" || cfg.OutputDir != "out" || cfg.Verbosity != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Format != output.FormatYAML || cfg.Policy != scanner.PolicyNone {
		t.Errorf("format/policy = %q/%q", cfg.Format, cfg.Policy)
	}
	if cfg.Bank.DecompressionTimeout != 90*time.Second {
		t.Errorf("DecompressionTimeout = %v, want 1m30s", cfg.Bank.DecompressionTimeout)
	}
	if !cfg.Param.AllowMissingParents {
		t.Error("leniency flag not threaded")
	}
}

func TestLoad_EnvAndFilePrecedence(t *testing.T) {
	path := writeCUE(t, `
input: "from-file"
dedup: "none"
format: "toml"
dc_timeout: 2
param: skip_validation: true
bank: allow_obfuscated: true
`)
	t.Setenv("BANKPROC_FORMAT", "yaml")
	t.Setenv("BANKPROC_BANK_REQUIRE_SIGNATURE", "true")

	fs := testFlags(t, "--dedup", "last-write-wins")
	cfg, err := Load(context.Background(), LoadOptions{ConfigFile: path, Flags: fs})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
	if cfg.Input != "from-file" {
		t.Errorf("Input = %q, want value from file", cfg.Input)
	}
	// flag beats file
	if cfg.Policy != scanner.PolicyLastWriteWins {
		t.Errorf("Policy = %q", cfg.Policy)
	}
	// env beats file
	if cfg.Format != output.FormatYAML {
		t.Errorf("Format = %q", cfg.Format)
	}
	if !cfg.Param.SkipValidation || !cfg.Bank.AllowObfuscated || !cfg.Bank.RequireSignature {
		t.Errorf("options = %+v %+v", cfg.Param, cfg.Bank)
	}
	if cfg.Bank.DecompressionTimeout != 2*time.Minute {
		t.Errorf("DecompressionTimeout = %v", cfg.Bank.DecompressionTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		cue  string
		args []string
	}{
		{name: "no input"},
		{name: "two inputs", args: []string{"a", "b"}},
		{name: "folder and positional differ", args: []string{"-f", "a", "b"}},
		{name: "bad format", args: []string{"--format", "xml", "in"}},
		{name: "bad policy", args: []string{"--dedup", "first", "in"}},
		{name: "negative timeout", args: []string{"--dcTimeout=-1", "in"}},
		{name: "unknown file field", cue: `input: "x"` + "\nbogus: 1\n"},
		{name: "file type mismatch", cue: `input: "x"` + "\njobs: \"many\"\n"},
		{name: "file bad dedup", cue: `input: "x"` + "\ndedup: \"first\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := LoadOptions{}
			if tt.cue != "" {
				opts.ConfigFile = writeCUE(t, tt.cue)
			}
			fs := testFlags(t, tt.args...)
			opts.Flags = fs
			opts.Args = fs.Args()

			_, err := Load(context.Background(), opts)
			if err == nil {
				t.Fatal("expected error")
			}
			var cerr *issue.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %T %v, want *issue.ConfigError", err, err)
			}
			if issue.ExitCode(err) != issue.ExitFailure {
				t.Errorf("exit code = %d", issue.ExitCode(err))
			}
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(context.Background(), LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "nope.cue"),
		Args:       []string{"in"},
	})
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, LoadOptions{Args: []string{"in"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
