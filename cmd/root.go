package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/FlipperPlz/BankProcessor/internal/bank"
	"github.com/FlipperPlz/BankProcessor/internal/config"
	"github.com/FlipperPlz/BankProcessor/internal/issue"
	"github.com/FlipperPlz/BankProcessor/internal/logging"
	"github.com/FlipperPlz/BankProcessor/internal/output"
	"github.com/FlipperPlz/BankProcessor/internal/scanner"
)

const rootLong = `bankproc scans PBO banks for configuration entries (config.bin and
config.cpp), keeps one canonical entry per directory and extracts every patch
declared under CfgPatches together with its requiredAddons.

The run stops at the first entry that cannot be read or parsed, dumps the raw
entry text, and exits with a distinct status:
  0  success
  1  invalid usage or configuration
  2  input not found
  3  no configuration entries discovered
  4  configuration entry could not be parsed
  5  configuration entry could not be read`

const scanExamples = `  bankproc @mymod/addons
  bankproc -f @mymod/addons -o out --format yaml
  bankproc -vv -dc 5 --allow-missing-parents mymod.pbo`

// NewRootCmd builds the command tree. The root command runs a scan.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bankproc [flags] [path]",
		Short:         "Extract patch dependencies from PBO banks",
		Long:          rootLong,
		Example:       scanExamples,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
	}
	addScanFlags(root)

	scanCmd := &cobra.Command{
		Use:           "scan [flags] [path]",
		Short:         "Scan banks and write the patch report (default command)",
		Example:       scanExamples,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScan,
	}
	addScanFlags(scanCmd)

	root.AddCommand(scanCmd, newVersionCmd())
	return root
}

func addScanFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlagName)

	fs.CountP("verbose", "v", "Lower the log threshold; repeat for more detail")
	fs.Bool("quiet", false, "Only log errors")
	fs.StringP("folder", "f", "", "Bank file or directory searched recursively for *.pbo")
	fs.StringP("output", "o", "", "Output directory, deleted and recreated (report goes to stdout when unset)")
	fs.Float64("dcTimeout", 0, "Decompression timeout in minutes per entry, 0 for none (alias -dc)")
	fs.String("config", "", "CUE configuration file (default ./"+config.DefaultFile+" if present)")
	fs.String("log-file", "", "Also write line-delimited JSON logs to this file")
	fs.String("format", string(output.FormatJSON), "Report format: json, yaml or toml")
	fs.String("dedup", string(scanner.PolicyLastWriteWins), "Canonical entry policy: last-write-wins or none")
	fs.Int("jobs", 0, "Banks opened in parallel (default number of CPUs)")
	fs.Bool("no-color", false, "Print plain text instead of styled output")
	fs.String("charset", "utf-8", "Encoding of configuration text, e.g. windows-1252")

	fs.Bool("allow-duplicate-classes", false, "Keep the later of two same-named classes")
	fs.Bool("allow-missing-parents", false, "Accept inheritance from undefined classes")
	fs.Bool("allow-missing-delete-targets", false, "Accept delete statements for undefined classes")
	fs.Bool("skip-validation", false, "Skip semantic checks of parsed configs")

	fs.Bool("allow-obfuscated", false, "Tolerate mangled, duplicate and encrypted entries")
	fs.Bool("require-signature", false, "Require a valid trailing SHA-1 checksum")
	fs.Bool("register-empty-entries", false, "Keep zero-length entries")
	fs.Bool("strict-version-entry", false, "Reject product entries with non-zero header fields")
	fs.Bool("respect-offsets", false, "Use header offsets instead of sequential data layout")
	fs.Bool("allow-invalid-offsets", false, "Skip entries whose data lies outside the bank")
}

// normalizeFlagName accepts --dc-timeout and --dctimeout for --dcTimeout.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch strings.ToLower(name) {
	case "dc-timeout", "dctimeout":
		return "dcTimeout"
	}
	return pflag.NormalizedName(name)
}

// rewriteArgs turns the two-letter -dc shorthand into --dcTimeout, which
// pflag cannot declare. Arguments after "--" are left alone.
func rewriteArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		switch {
		case a == "-dc":
			a = "--dcTimeout"
		case strings.HasPrefix(a, "-dc="):
			a = "--dcTimeout=" + strings.TrimPrefix(a, "-dc=")
		}
		out = append(out, a)
	}
	return out
}

func Execute() {
	root := NewRootCmd()
	root.SetArgs(rewriteArgs(os.Args[1:]))

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(issue.ExitCode(err))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()
	noColor, _ := cmd.Flags().GetBool("no-color")
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(ctx, config.LoadOptions{ConfigFile: configFile, Flags: cmd.Flags(), Args: args})
	if err != nil {
		return fail(stderr, noColor, err)
	}
	noColor = cfg.NoColor

	// Only a stat happens before the input is known to exist.
	paths, discoverErr := bank.Discover(cfg.Input)
	if discoverErr == nil && cfg.OutputDir != "" {
		if err := output.PrepareOutputDir(cfg.OutputDir); err != nil {
			return fail(stderr, noColor, err)
		}
	}

	logOpts := logging.Options{
		Verbosity: cfg.Verbosity,
		Quiet:     cfg.Quiet,
		Console:   stderr,
	}
	if discoverErr != nil {
		// console only: nothing is written before the input exists
		console, _ := logging.New(logOpts)
		console.Error("input not found", "path", cfg.Input, "err", discoverErr)
		return fail(stderr, noColor, discoverErr)
	}

	logOpts.File = cfg.LogFile
	logger, err := logging.New(logOpts)
	if err != nil {
		return fail(stderr, noColor, &issue.ConfigError{Cause: err})
	}
	defer logger.Close()

	if cfg.ConfigFile != "" {
		logger.Debug("configuration file merged", "path", cfg.ConfigFile)
	}
	logger.Info("archives discovered", "input", cfg.Input, "count", len(paths))

	banks, err := bank.OpenAll(ctx, paths, cfg.Bank, cfg.Jobs)
	if err != nil {
		logger.Error("cannot open archives", "err", err)
		return fail(stderr, noColor, err)
	}
	defer bank.CloseAll(banks)
	for _, b := range banks {
		logger.Debug("archive opened", "archive", b.Path, "prefix", b.Prefix, "entries", len(b.Entries()))
	}

	s := scanner.New(cfg.Policy, cfg.Param, cfg.Bank, logger)
	s.Dumper.Dir = cfg.OutputDir
	result, err := s.Scan(ctx, banks)
	if err != nil {
		return fail(stderr, noColor, err)
	}

	report := output.BuildReport(result, output.Metadata{
		Version: getVersionString(),
		Input:   cfg.Input,
		Policy:  string(cfg.Policy),
	})
	target := "-"
	if cfg.OutputDir != "" {
		target = filepath.Join(cfg.OutputDir, cfg.Format.FileName())
	}
	if err := output.WriteReport(report, cfg.Format, target); err != nil {
		logger.Error("cannot write report", "err", err)
		return fail(stderr, noColor, err)
	}
	logger.Debug("report written", "path", target, "format", string(cfg.Format))

	if !cfg.Quiet {
		printSummary(stderr, result, target, noColor)
	}
	return nil
}

// fail prints the remediation page for err, if it has one, and wraps it
// with its exit status.
func fail(w io.Writer, noColor bool, err error) error {
	if id, ok := issue.IdOf(err); ok {
		fmt.Fprintln(w, renderIssue(issue.Get(id), noColor))
	}
	return &ExitError{Code: issue.ExitCode(err), Err: err}
}
