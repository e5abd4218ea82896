package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/ui"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// CLIConfig holds one parsed command line. Zero values mean "not given".
type CLIConfig struct {
	Command string
	Args    []string

	ConfigPath    string
	OutputPath    string
	TargetVersion string
	License       string
	NoOpt         bool
	NoGas         bool
	NoSecurity    bool
	EmitABI       bool
	Verify        bool
	JSON          bool
	Strict        bool
	Selectors     bool
	ReportDir     string
	Concurrency   int
	UseStore      bool
	LogDir        string
	Verbose       bool
}

// UsageError 参数错误，退出码 2
type UsageError struct {
	Command string
	Msg     string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Msg
	}
	return e.Command + ": " + e.Msg
}

func usagef(command, format string, a ...interface{}) error {
	return &UsageError{Command: command, Msg: fmt.Sprintf(format, a...)}
}

// 每个子命令需要的位置参数个数
var positional = map[string]int{
	"compile":  1,
	"parse":    1,
	"validate": 1,
	"abi":      1,
	"batch":    1,
	"watch":    1,
	"version":  0,
	"config":   0,
	"init":     0,
}

func newFlagSet(c *CLIConfig) *flag.FlagSet {
	fs := flag.NewFlagSet("rubisol "+c.Command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.ConfigPath, "config", "", "YAML settings file (default: search rubisol.yaml, config/rubisol.yaml)")
	fs.StringVar(&c.TargetVersion, "version", "", "Target Solidity version or constraint")
	fs.StringVar(&c.License, "license", "", "SPDX license identifier")
	fs.BoolVar(&c.NoOpt, "no-opt", false, "Disable all optimizer passes")
	fs.BoolVar(&c.NoGas, "no-gas", false, "Disable storage layout packing")
	fs.BoolVar(&c.NoSecurity, "no-security", false, "Disable SafeMath and reentrancy passes")
	fs.StringVar(&c.LogDir, "log-dir", "", "Write a log file into this directory")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose output")

	switch c.Command {
	case "compile":
		fs.StringVar(&c.OutputPath, "o", "", "Output .sol file (default: stdout)")
		fs.BoolVar(&c.EmitABI, "abi", false, "Also emit <out>.abi.json")
		fs.BoolVar(&c.Verify, "verify", false, "Check the output with a matching solc")
	case "parse":
		fs.BoolVar(&c.JSON, "json", false, "Print the tree as JSON")
	case "validate":
		fs.BoolVar(&c.Strict, "strict", false, "Fail on warnings too")
	case "abi":
		fs.BoolVar(&c.Selectors, "selectors", false, "Print selectors instead of JSON")
	case "batch":
		fs.StringVar(&c.OutputPath, "o", "", "Output directory (default: manifest output_dir, then settings)")
		fs.StringVar(&c.ReportDir, "r", "reports", "Markdown report output directory")
		fs.IntVar(&c.Concurrency, "concurrency", 0, "Worker concurrency (default: settings)")
		fs.BoolVar(&c.UseStore, "store", false, "Cache artifacts in the configured database")
	case "watch":
		fs.StringVar(&c.OutputPath, "o", "", "Output directory (default: settings output_dir)")
		fs.BoolVar(&c.UseStore, "store", false, "Cache artifacts in the configured database")
	}
	return fs
}

// parseInterspersed lets flags follow positional arguments: `compile a.rb -o a.sol`.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var rest []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		remaining := fs.Args()
		if len(remaining) == 0 {
			return rest, nil
		}
		rest = append(rest, remaining[0])
		args = remaining[1:]
	}
}

// helloq ParseArgs 解析子命令和参数
func ParseArgs(args []string) (*CLIConfig, error) {
	if len(args) == 0 {
		return nil, usagef("", "missing command")
	}
	c := &CLIConfig{Command: strings.TrimLeft(args[0], "-")}
	if c.Command == "h" || c.Command == "help" {
		return nil, flag.ErrHelp
	}
	want, ok := positional[c.Command]
	if !ok {
		return nil, usagef("", "unknown command %q", args[0])
	}

	fs := newFlagSet(c)
	rest, err := parseInterspersed(fs, args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			showCommandHelp(c.Command, fs)
			return nil, err
		}
		return nil, usagef(c.Command, "%v", err)
	}
	if len(rest) != want {
		return nil, usagef(c.Command, "expected %d argument(s), got %d", want, len(rest))
	}
	c.Args = rest
	if c.Concurrency < 0 {
		return nil, usagef(c.Command, "-concurrency must not be negative")
	}
	return c, nil
}

// MergeFlags layers the command line over base (defaults + YAML + env).
func (c *CLIConfig) MergeFlags(base config.Config) config.Config {
	cfg := base
	if c.TargetVersion != "" {
		cfg.TargetVersion = c.TargetVersion
	}
	if c.License != "" {
		cfg.License = c.License
	}
	if c.NoOpt {
		cfg.Optimize = false
	}
	if c.NoGas {
		cfg.GasOptimize = false
	}
	if c.NoSecurity {
		cfg.SecurityChecks = false
	}
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	return cfg
}

// loadConfig 默认值 -> YAML -> 环境变量 -> 命令行
func (c *CLIConfig) loadConfig() (config.Config, error) {
	base, path, err := config.LoadConfig(c.ConfigPath)
	if err != nil {
		return base, err
	}
	if c.Verbose && path != "" {
		ui.LogInfo("Loaded settings from %s", path)
	}
	cfg := c.MergeFlags(config.ApplyEnv(base))
	if err := cfg.Validate(); err != nil {
		return cfg, usagef(c.Command, "%v", err)
	}
	if err := config.Init(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func showGeneralHelp() {
	fmt.Fprintln(ui.Out, ui.Cyan+"USAGE:"+ui.Reset)
	fmt.Fprintln(ui.Out, "  rubisol <command> [OPTIONS] <args>")
	fmt.Fprintln(ui.Out)

	fmt.Fprintln(ui.Out, ui.Cyan+"COMMANDS:"+ui.Reset)
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "compile <file.rb>", "Compile Ruby to Solidity")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "parse <file.rb>", "Print the syntax tree")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "validate <file.rb>", "Run the source checks only")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "abi <file.rb>", "Print the ABI of every contract")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "batch <dir|manifest.yaml|list>", "Compile many files and write a report")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "watch <dir>", "Recompile files as they change")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "config", "Print the effective settings")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "init", "Write a default rubisol.yaml")
	fmt.Fprintf(ui.Out, "  %-32s %s\n", "version", "Print version information")
	fmt.Fprintln(ui.Out)

	fmt.Fprintln(ui.Out, ui.Cyan+"HELP:"+ui.Reset)
	fmt.Fprintln(ui.Out, "  rubisol <command> --help   Show the options of a command")
	fmt.Fprintln(ui.Out)

	fmt.Fprintln(ui.Out, ui.Cyan+"EXAMPLES:"+ui.Reset)
	fmt.Fprintln(ui.Out, "  rubisol compile token.rb -o build/token.sol -abi")
	fmt.Fprintln(ui.Out, "  rubisol compile token.rb -version 0.7.6 -no-gas")
	fmt.Fprintln(ui.Out, "  rubisol batch contracts/ -concurrency 8 -store")
	fmt.Fprintln(ui.Out, "  rubisol watch contracts/ -o build")
}

func showCommandHelp(command string, fs *flag.FlagSet) {
	fmt.Fprintf(ui.Out, ui.Cyan+"USAGE:"+ui.Reset+"\n  rubisol %s [OPTIONS]", command)
	if positional[command] > 0 {
		fmt.Fprint(ui.Out, " <target>")
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, ui.Cyan+"OPTIONS:"+ui.Reset)
	fs.VisitAll(func(f *flag.Flag) {
		name := "-" + f.Name
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			name += " (" + f.DefValue + ")"
		}
		fmt.Fprintf(ui.Out, "  %-25s %s\n", name, f.Usage)
	})
}

func Run() error {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
				showGeneralHelp()
			}
			return nil
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()

	go func() {
		count := 0
		for range sigChan {
			count++
			if count == 1 {
				fmt.Fprintln(os.Stderr, "\nInterrupt received, stopping... (press Ctrl+C again to force exit)")
				cancel()
				continue
			}
			fmt.Fprintln(os.Stderr, "\nForce exiting...")
			os.Exit(130)
		}
	}()

	return Execute(ctx, cfg)
}

// ExitCode maps an error returned by Run to the process exit status.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return ExitOK
	}
	var ue *UsageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitFailure
}

func PrintFatal(err error) {
	code := ExitCode(err)
	if code == ExitOK {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if code == ExitUsage {
		fmt.Fprintln(os.Stderr, "Run 'rubisol help' for usage.")
	}
	os.Exit(code)
}
