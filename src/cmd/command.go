package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/VectorBits/Rubisol/src/internal/abi"
	"github.com/VectorBits/Rubisol/src/internal/ast"
	"github.com/VectorBits/Rubisol/src/internal/batch"
	"github.com/VectorBits/Rubisol/src/internal/compiler"
	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/logger"
	"github.com/VectorBits/Rubisol/src/internal/report"
	"github.com/VectorBits/Rubisol/src/internal/solc"
	"github.com/VectorBits/Rubisol/src/internal/store"
	"github.com/VectorBits/Rubisol/src/internal/ui"
	"github.com/VectorBits/Rubisol/src/internal/validator"
	"github.com/VectorBits/Rubisol/src/internal/watch"
)

func Execute(ctx context.Context, c *CLIConfig) error {
	if c.LogDir != "" {
		path, err := logger.InitLogger(c.LogDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, ui.Yellow+"⚠️  Warning: Failed to init logger: %v"+ui.Reset+"\n", err)
		} else {
			defer logger.Close()
			if c.Verbose {
				ui.LogInfo("Log file: %s", path)
			}
		}
	}

	switch c.Command {
	case "version":
		return ExecuteVersion()
	case "init":
		_, err := InitConfigFile(c.ConfigPath)
		return err
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.Verbose {
		fmt.Fprintf(ui.Out, ui.Gray+"Running with config: %+v"+ui.Reset+"\n", cfg)
	}

	switch c.Command {
	case "compile":
		return ExecuteCompile(ctx, c, cfg)
	case "parse":
		return ExecuteParse(c)
	case "validate":
		return ExecuteValidate(c)
	case "abi":
		return ExecuteABI(c, cfg)
	case "batch":
		return ExecuteBatch(ctx, c, cfg)
	case "watch":
		return ExecuteWatch(ctx, c, cfg)
	case "config":
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(ui.Out, string(out))
		return nil
	default:
		return usagef("", "unknown command %q", c.Command)
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	return string(data), nil
}

// ExecuteCompile 编译单个文件
func ExecuteCompile(ctx context.Context, c *CLIConfig, cfg config.Config) error {
	src, err := readSource(c.Args[0])
	if err != nil {
		return err
	}

	res, err := compiler.Compile(src, compiler.Options{Config: &cfg, OutputPath: c.OutputPath})
	if err != nil {
		reportCompileError(c.Args[0], err)
		return err
	}
	ui.LogWarnings(c.Args[0], res.Warnings)
	for _, e := range res.Errors {
		logger.Warn("%s", e)
	}

	if c.OutputPath == "" {
		fmt.Fprint(ui.Out, res.Code)
	} else {
		ui.LogSuccess("%s -> %s (%s)", c.Args[0], c.OutputPath, strings.Join(res.Contracts, ", "))
	}

	if c.EmitABI {
		raw, err := json.MarshalIndent(res.ABI, "", "  ")
		if err != nil {
			return err
		}
		if c.OutputPath == "" {
			fmt.Fprintln(ui.Out, string(raw))
		} else {
			abiPath := strings.TrimSuffix(c.OutputPath, filepath.Ext(c.OutputPath)) + ".abi.json"
			if err := compiler.WriteFile(abiPath, string(raw)+"\n"); err != nil {
				return err
			}
			ui.LogSuccess("ABI -> %s", abiPath)
		}
	}

	if c.Verify {
		return verify(ctx, c.Args[0], res.Code)
	}
	return nil
}

func verify(ctx context.Context, source, code string) error {
	stop := ui.StartSpinner("Verifying with solc...")
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)) + ".sol"
	v, err := solc.GetManager().Verify(ctx, name, code, []string{filepath.Dir(source), "node_modules"})
	stop <- true
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	for _, w := range v.Warnings {
		logger.Warn("solc: %s", w)
	}
	if !v.OK() {
		for _, e := range v.Errors {
			ui.LogError("solc: %s", e)
		}
		return fmt.Errorf("solc %s rejected the generated code (%d errors)", v.Version, len(v.Errors))
	}
	ui.LogSuccess("solc %s accepted the generated code", v.Version)
	return nil
}

func reportCompileError(source string, err error) {
	var ce *compiler.CompilationError
	if errors.As(err, &ce) {
		ui.LogError("%s", ui.FormatFailureMsg(source, ce.Messages))
		return
	}
	ui.LogError("%s: %v", source, err)
}

func ExecuteParse(c *CLIConfig) error {
	src, err := readSource(c.Args[0])
	if err != nil {
		return err
	}
	prog, err := compiler.Parse(src)
	if err != nil {
		return err
	}
	if !c.JSON {
		fmt.Fprintln(ui.Out, ast.Dump(prog))
		return nil
	}
	raw, err := json.MarshalIndent(prog, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, string(raw))
	return nil
}

// ExecuteValidate 只跑源码检查；-strict 时警告也算失败
func ExecuteValidate(c *CLIConfig) error {
	src, err := readSource(c.Args[0])
	if err != nil {
		return err
	}
	findings := compiler.Validate(src)
	for _, f := range findings {
		if f.Severity == validator.SeverityError {
			ui.LogError("%s: %s", c.Args[0], f)
		} else {
			fmt.Fprintf(ui.Out, ui.Yellow+"[WARN] "+ui.Reset+"%s: %s\n", c.Args[0], f)
		}
	}
	if errs := validator.Errors(findings); len(errs) > 0 {
		return &compiler.ValidationError{Findings: errs}
	}
	if c.Strict && len(findings) > 0 {
		return &compiler.ValidationError{Findings: findings}
	}
	ui.LogSuccess("%s: %d finding(s), no errors", c.Args[0], len(findings))
	return nil
}

func ExecuteABI(c *CLIConfig, cfg config.Config) error {
	src, err := readSource(c.Args[0])
	if err != nil {
		return err
	}
	res, err := compiler.Compile(src, compiler.Options{Config: &cfg})
	if err != nil {
		reportCompileError(c.Args[0], err)
		return err
	}
	for _, e := range res.Errors {
		logger.Warn("%s", e)
	}

	if !c.Selectors {
		raw, err := json.MarshalIndent(res.ABI, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, string(raw))
		return nil
	}

	names := make([]string, 0, len(res.ABI))
	for name := range res.ABI {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		contract, err := abi.Parse(name, res.ABI[name])
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, ui.Bold+name+ui.Reset)
		for _, s := range contract.Selectors() {
			fmt.Fprintf(ui.Out, "  %-10s %-8s %s\n", s.ID[:10], s.Kind, s.Signature)
		}
	}
	return nil
}

func openStore(c *CLIConfig, cfg config.Config) (*store.Store, error) {
	if !c.UseStore {
		return nil, nil
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	if c.Verbose {
		ui.LogInfo("Artifact store: %s", cfg.Store.Driver)
	}
	return s, nil
}

// ExecuteBatch 批量编译并生成 Markdown 报告
func ExecuteBatch(ctx context.Context, c *CLIConfig, cfg config.Config) error {
	target := c.Args[0]
	plan, err := batch.Load(target)
	if err != nil {
		return err
	}
	if len(plan.Sources) == 0 {
		return fmt.Errorf("no .rb sources found in %s", target)
	}
	outDir := c.OutputPath
	if outDir == "" {
		outDir = plan.OutputDir
	}
	if outDir == "" {
		outDir = cfg.OutputDir
	}

	s, err := openStore(c, cfg)
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	ui.LogInfo("Compiling %d file(s) into %s", len(plan.Sources), outDir)
	pb := ui.NewProgressBar(len(plan.Sources), "Compiling")
	start := time.Now()
	outcomes, runErr := batch.Run(ctx, plan.Sources, batch.Options{
		Config:    cfg,
		OutputDir: outDir,
		Store:     s,
		Progress: func(done, total int, o batch.Outcome) {
			if !o.OK() && !errors.Is(o.Err, context.Canceled) {
				pb.AddFailure()
				var ce *compiler.CompilationError
				if errors.As(o.Err, &ce) {
					pb.PrintMsg(ui.FormatFailureMsg(o.Source, ce.Messages))
				} else {
					pb.PrintMsg(ui.FormatFailureMsg(o.Source, []string{o.Err.Error()}))
				}
			}
			pb.Increment()
		},
	})
	pb.Finish()

	sum := batch.Summarize(outcomes)
	ui.PrintStats(sum.Total, sum.Succeeded, sum.Failed, sum.Cached, sum.Warnings, time.Since(start))

	r := batch.Report("batch", target, cfg, outcomes)
	reporter := report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(c.ReportDir))
	path, err := reporter.GenerateAndSave(r)
	if err != nil {
		logger.Warn("failed to save report: %v", err)
	} else {
		ui.LogSuccess("Report saved to %s", path)
	}

	if runErr != nil {
		return runErr
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to compile", sum.Failed, sum.Total)
	}
	return nil
}

func ExecuteWatch(ctx context.Context, c *CLIConfig, cfg config.Config) error {
	outDir := c.OutputPath
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	s, err := openStore(c, cfg)
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	w, err := watch.New(c.Args[0], batch.Options{Config: cfg, OutputDir: outDir, Store: s})
	if err != nil {
		return err
	}
	defer w.Close()
	w.OnBuild = func(o batch.Outcome) {
		if o.OK() {
			ui.LogSuccess("%s -> %s", o.Source, o.Output)
			ui.LogWarnings(o.Source, o.Result.Warnings)
			return
		}
		reportCompileError(o.Source, o.Err)
	}

	logger.SetQuiet(true)
	defer logger.SetQuiet(false)
	ui.LogInfo("Watching %s (Ctrl+C to stop)", c.Args[0])
	return w.Run(ctx)
}

func ExecuteVersion() error {
	ui.PrintBanner()
	releases := solc.Releases()
	fmt.Fprintf(ui.Out, "rubisol %s\n", ui.Version)
	fmt.Fprintf(ui.Out, "default target: %s\n", config.Default().Constraint())
	fmt.Fprintf(ui.Out, "known solc releases: %s - %s\n", releases[0], releases[len(releases)-1])
	return nil
}

// InitConfigFile writes the default settings to path (rubisol.yaml when empty).
// An existing file is left alone.
func InitConfigFile(path string) (bool, error) {
	if path == "" {
		path = "rubisol.yaml"
	}
	// 检查目标文件是否存在
	if _, err := os.Stat(path); err == nil {
		ui.LogInfo("Config file already exists: %s", path)
		return false, nil
	}
	data, err := config.Marshal(config.Default())
	if err != nil {
		return false, err
	}
	if err := compiler.WriteFile(path, string(data)); err != nil {
		return false, fmt.Errorf("failed to init config file: %w", err)
	}
	ui.LogSuccess("Created default config file: %s", path)
	return true, nil
}
