// Package batch compiles many sources concurrently. Identical source texts are
// compiled once; with a store attached, unchanged sources compiled under the
// same config reuse earlier artifacts.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/VectorBits/Rubisol/src/internal/compiler"
	"github.com/VectorBits/Rubisol/src/internal/config"
	"github.com/VectorBits/Rubisol/src/internal/logger"
	"github.com/VectorBits/Rubisol/src/internal/report"
	"github.com/VectorBits/Rubisol/src/internal/store"
)

const defaultConcurrency = 5

type Options struct {
	Config      config.Config
	Concurrency int          // <= 0 uses Config.Concurrency, then 5
	OutputDir   string       // empty: do not write .sol files
	Store       *store.Store // optional artifact cache
	// Progress is called after each file, serialised.
	Progress func(done, total int, o Outcome)
}

// Outcome is the result for one source file.
type Outcome struct {
	Source   string
	Output   string
	Result   *compiler.Result
	Err      error
	Cached   bool // reused a stored artifact
	Shared   bool // another file in this run had the same text
	Duration time.Duration
}

func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

type compiled struct {
	res    *compiler.Result
	cached bool
}

// Run compiles every source. Per-file failures are recorded in the outcomes;
// the returned error is only set when ctx was cancelled.
func Run(ctx context.Context, sources []string, opts Options) ([]Outcome, error) {
	n := opts.Concurrency
	if n <= 0 {
		n = opts.Config.Concurrency
	}
	if n <= 0 {
		n = defaultConcurrency
	}

	outcomes := make([]Outcome, len(sources))
	for i, src := range sources {
		outcomes[i] = Outcome{Source: src, Err: context.Canceled}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)
	var sf singleflight.Group
	var mu sync.Mutex
	done := 0

	for i, src := range sources {
		if ctx.Err() != nil {
			break
		}
		i, src := i, src
		g.Go(func() error {
			o := compileFile(gctx, &sf, src, opts)
			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = o
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(sources), o)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func compileFile(ctx context.Context, sf *singleflight.Group, src string, opts Options) (o Outcome) {
	start := time.Now()
	o.Source = src
	defer func() { o.Duration = time.Since(start) }()

	// 文件之间检查取消
	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}
	data, err := os.ReadFile(src)
	if err != nil {
		o.Err = fmt.Errorf("read %s: %w", src, err)
		return o
	}
	text := string(data)
	hash := store.Hash(text)
	fp := opts.Config.Fingerprint()

	v, err, shared := sf.Do(hash+"|"+fp, func() (any, error) {
		return compileText(ctx, text, hash, fp, opts)
	})
	o.Shared = shared
	if err != nil {
		o.Err = err
		logger.Warn("%s: %v", src, err)
		save(ctx, opts.Store, src, hash, fp, nil, err)
		return o
	}
	c := v.(compiled)
	o.Result, o.Cached = c.res, c.cached

	if opts.OutputDir != "" {
		o.Output = OutputPath(opts.OutputDir, src)
		if err := compiler.WriteFile(o.Output, c.res.Code); err != nil {
			o.Err = err
			return o
		}
	}
	if !c.cached {
		save(ctx, opts.Store, src, hash, fp, c.res, nil)
	}
	logger.InfoFileOnly("compiled %s (%d warnings, cached=%v)", src, len(c.res.Warnings), c.cached)
	return o
}

func compileText(ctx context.Context, text, hash, fp string, opts Options) (compiled, error) {
	if opts.Store != nil {
		a, err := opts.Store.Cached(ctx, hash, fp)
		if err == nil {
			return compiled{res: fromArtifact(a), cached: true}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("artifact cache lookup failed: %v", err)
		}
	}
	cfg := opts.Config
	res, err := compiler.Compile(text, compiler.Options{Config: &cfg})
	if err != nil {
		return compiled{}, err
	}
	return compiled{res: res}, nil
}

func save(ctx context.Context, s *store.Store, src, hash, fp string, res *compiler.Result, cerr error) {
	if s == nil {
		return
	}
	a := &store.Artifact{Source: src, SourceHash: hash, Fingerprint: fp, Status: store.StatusOK}
	if cerr != nil {
		a.Status = store.StatusFailed
		a.Error = cerr.Error()
	} else {
		a.Code = res.Code
		a.Contracts = strings.Join(res.Contracts, ",")
		a.Warnings = strings.Join(res.Warnings, "\n")
		if raw, err := json.Marshal(res.ABI); err == nil {
			a.ABI = string(raw)
		}
	}
	if err := s.Save(ctx, a); err != nil {
		logger.Warn("store: %v", err)
	}
}

func fromArtifact(a *store.Artifact) *compiler.Result {
	res := &compiler.Result{
		Code:      a.Code,
		Errors:    []string{},
		Warnings:  a.WarningList(),
		Contracts: a.ContractList(),
		ABI:       map[string]json.RawMessage{},
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	if a.ABI != "" {
		_ = json.Unmarshal([]byte(a.ABI), &res.ABI)
	}
	return res
}

// OutputPath is dir/<source name>.sol.
func OutputPath(dir, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, base+".sol")
}

// Report turns outcomes into a build report.
func Report(mode, target string, cfg config.Config, outcomes []Outcome) *report.Report {
	r := report.NewReport(mode, target, cfg.Constraint(), cfg.Optimize)
	for _, o := range outcomes {
		fr := report.NewFileResult(o.Source)
		fr.Output = o.Output
		fr.Duration = o.Duration
		fr.Cached = o.Cached
		if o.Result != nil {
			fr.Contracts = o.Result.Contracts
			for _, w := range o.Result.Warnings {
				fr.AddWarning(w)
			}
			for _, e := range o.Result.Errors {
				fr.AddIssue(report.Issue{Type: "abi", Severity: "Error", Description: e})
			}
		}
		if o.Err != nil {
			fr.Fail(errorMessages(o.Err)...)
		}
		r.AddFileResult(fr)
	}
	return r
}

func errorMessages(err error) []string {
	var ce *compiler.CompilationError
	if errors.As(err, &ce) && len(ce.Messages) > 0 {
		return ce.Messages
	}
	return []string{err.Error()}
}

// Summary counts outcomes.
type Summary struct {
	Total, Succeeded, Failed, Cached, Warnings int
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if !o.OK() {
			s.Failed++
			continue
		}
		s.Succeeded++
		if o.Cached {
			s.Cached++
		}
		s.Warnings += len(o.Result.Warnings)
	}
	return s
}
