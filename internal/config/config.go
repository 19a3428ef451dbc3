// Package config builds the immutable run configuration from flags,
// BANKPROC_* environment variables and an optional CUE file.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FlipperPlz/BankProcessor/internal/bank"
	"github.com/FlipperPlz/BankProcessor/internal/issue"
	"github.com/FlipperPlz/BankProcessor/internal/output"
	"github.com/FlipperPlz/BankProcessor/internal/param"
	"github.com/FlipperPlz/BankProcessor/internal/scanner"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. BANKPROC_DEDUP.
	EnvPrefix = "BANKPROC"
	// DefaultFile is read from the working directory when no file is given.
	DefaultFile = "bankproc.cue"
)

//go:embed config_schema.cue
var configSchema string

// RunConfig is everything a run needs. It is built once by Load and passed
// by value; nothing reads configuration from globals.
type RunConfig struct {
	Input     string
	OutputDir string
	Verbosity int
	Quiet     bool
	LogFile   string
	Format    output.Format
	Policy    scanner.Policy
	Jobs      int
	NoColor   bool

	// ConfigFile is the CUE file that was merged, empty when none.
	ConfigFile string

	Param param.Options
	Bank  bank.Options
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is an explicit CUE file. It must exist.
	ConfigFile string
	// Flags are bound by name, see flagKeys. May be nil.
	Flags *pflag.FlagSet
	// Args are the positional arguments; the first one is the input path.
	Args []string
}

// flagKeys maps configuration keys to the flag names that set them.
var flagKeys = map[string]string{
	"input":      "folder",
	"output":     "output",
	"verbosity":  "verbose",
	"quiet":      "quiet",
	"log_file":   "log-file",
	"format":     "format",
	"dedup":      "dedup",
	"jobs":       "jobs",
	"no_color":   "no-color",
	"dc_timeout": "dcTimeout",
	"charset":    "charset",

	"param.allow_duplicate_classes":      "allow-duplicate-classes",
	"param.allow_missing_parents":        "allow-missing-parents",
	"param.allow_missing_delete_targets": "allow-missing-delete-targets",
	"param.skip_validation":              "skip-validation",

	"bank.allow_obfuscated":       "allow-obfuscated",
	"bank.require_signature":      "require-signature",
	"bank.register_empty_entries": "register-empty-entries",
	"bank.strict_version_entry":   "strict-version-entry",
	"bank.respect_offsets":        "respect-offsets",
	"bank.allow_invalid_offsets":  "allow-invalid-offsets",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("verbosity", 0)
	v.SetDefault("quiet", false)
	v.SetDefault("log_file", "")
	v.SetDefault("format", string(output.FormatJSON))
	v.SetDefault("dedup", string(scanner.PolicyLastWriteWins))
	v.SetDefault("jobs", runtime.NumCPU())
	v.SetDefault("no_color", false)
	v.SetDefault("dc_timeout", 0)
	v.SetDefault("charset", param.DefaultCharset)
	for key := range flagKeys {
		if strings.HasPrefix(key, "param.") || strings.HasPrefix(key, "bank.") {
			v.SetDefault(key, false)
		}
	}
}

// Load resolves the run configuration. Precedence: flags, environment,
// config file, defaults. Every failure is an *issue.ConfigError.
func Load(ctx context.Context, opts LoadOptions) (RunConfig, error) {
	cfg, err := load(ctx, opts)
	if err != nil {
		return RunConfig{}, &issue.ConfigError{Cause: err}
	}
	return cfg, nil
}

func load(ctx context.Context, opts LoadOptions) (RunConfig, error) {
	if err := ctx.Err(); err != nil {
		return RunConfig{}, fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	resolved := ""
	switch {
	case opts.ConfigFile != "":
		if !fileExists(opts.ConfigFile) {
			return RunConfig{}, fmt.Errorf("config file not found: %s", opts.ConfigFile)
		}
		resolved = opts.ConfigFile
	case fileExists(DefaultFile):
		resolved = DefaultFile
	}
	if resolved != "" {
		if err := loadCUEIntoViper(v, resolved); err != nil {
			return RunConfig{}, err
		}
	}

	if opts.Flags != nil {
		for key, name := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return RunConfig{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := RunConfig{
		Input:      v.GetString("input"),
		OutputDir:  v.GetString("output"),
		Verbosity:  v.GetInt("verbosity"),
		Quiet:      v.GetBool("quiet"),
		LogFile:    v.GetString("log_file"),
		Jobs:       v.GetInt("jobs"),
		NoColor:    v.GetBool("no_color"),
		ConfigFile: resolved,
		Param: param.Options{
			Charset:                   v.GetString("charset"),
			AllowDuplicateClasses:     v.GetBool("param.allow_duplicate_classes"),
			AllowMissingParents:       v.GetBool("param.allow_missing_parents"),
			AllowMissingDeleteTargets: v.GetBool("param.allow_missing_delete_targets"),
			SkipValidation:            v.GetBool("param.skip_validation"),
		},
		Bank: bank.Options{
			AllowObfuscated:      v.GetBool("bank.allow_obfuscated"),
			RequireSignature:     v.GetBool("bank.require_signature"),
			RegisterEmptyEntries: v.GetBool("bank.register_empty_entries"),
			StrictVersionEntry:   v.GetBool("bank.strict_version_entry"),
			RespectOffsets:       v.GetBool("bank.respect_offsets"),
			AllowInvalidOffsets:  v.GetBool("bank.allow_invalid_offsets"),
		},
	}

	if err := resolveInput(&cfg, opts); err != nil {
		return RunConfig{}, err
	}

	var err error
	if cfg.Format, err = output.ParseFormat(v.GetString("format")); err != nil {
		return RunConfig{}, err
	}
	if cfg.Policy, err = scanner.ParsePolicy(v.GetString("dedup")); err != nil {
		return RunConfig{}, err
	}
	if cfg.Jobs < 0 {
		return RunConfig{}, fmt.Errorf("jobs must not be negative, got %d", cfg.Jobs)
	}
	if cfg.Verbosity < 0 {
		return RunConfig{}, fmt.Errorf("verbosity must not be negative, got %d", cfg.Verbosity)
	}
	if _, err := param.LookupCharset(cfg.Param.Charset); err != nil {
		return RunConfig{}, err
	}

	minutes := v.GetFloat64("dc_timeout")
	if minutes < 0 {
		return RunConfig{}, fmt.Errorf("dcTimeout must not be negative, got %v", minutes)
	}
	cfg.Bank.DecompressionTimeout = time.Duration(minutes * float64(time.Minute))

	return cfg, nil
}

// resolveInput picks the input from --folder or the first positional
// argument. Giving two different paths is an error.
func resolveInput(cfg *RunConfig, opts LoadOptions) error {
	if len(opts.Args) > 1 {
		return fmt.Errorf("expected a single input path, got %d", len(opts.Args))
	}
	if len(opts.Args) == 1 {
		positional := opts.Args[0]
		folderSet := opts.Flags != nil && opts.Flags.Changed("folder")
		if folderSet && cfg.Input != positional {
			return fmt.Errorf("input given twice: --folder %q and %q", cfg.Input, positional)
		}
		cfg.Input = positional
	}
	if strings.TrimSpace(cfg.Input) == "" {
		return errors.New("no input path: pass -f/--folder or a positional path")
	}
	return nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return fmt.Errorf("%s: %w", path, userValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
