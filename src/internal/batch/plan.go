package batch

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is the list of sources one batch run compiles.
type Plan struct {
	Sources   []string
	OutputDir string // from the manifest, empty when not set
}

type manifest struct {
	Sources   []string `yaml:"sources"`
	OutputDir string   `yaml:"output_dir"`
}

// Load builds a plan from a directory (every *.rb below it), a YAML manifest,
// a text list (one path per line) or a single .rb file. Relative paths in
// manifests and lists are resolved against the file's directory.
func Load(target string) (*Plan, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("batch target: %w", err)
	}
	if info.IsDir() {
		sources, err := walk(target)
		if err != nil {
			return nil, err
		}
		return &Plan{Sources: sources}, nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".rb":
		return &Plan{Sources: []string{target}}, nil
	case ".yaml", ".yml":
		return loadManifest(target)
	}
	lines, err := readLines(target)
	if err != nil {
		return nil, err
	}
	return &Plan{Sources: resolve(filepath.Dir(target), lines)}, nil
}

func walk(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".rb") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func loadManifest(path string) (*Plan, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)

	var list []string
	if err := yaml.Unmarshal(bs, &list); err == nil && len(list) > 0 {
		return &Plan{Sources: resolve(base, list)}, nil
	}

	var m manifest
	if err := yaml.Unmarshal(bs, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("manifest %s lists no sources", path)
	}
	p := &Plan{Sources: resolve(base, m.Sources), OutputDir: m.OutputDir}
	if p.OutputDir != "" && !filepath.IsAbs(p.OutputDir) {
		p.OutputDir = filepath.Join(base, p.OutputDir)
	}
	return p, nil
}

// readLines 从文件中读取每一行，跳过空行和注释
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// resolve makes paths relative to base and drops duplicates, keeping order.
func resolve(base string, items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		v := strings.TrimSpace(it)
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if !filepath.IsAbs(v) {
			v = filepath.Join(base, v)
		}
		v = filepath.Clean(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
