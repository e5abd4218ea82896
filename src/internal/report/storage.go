package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/VectorBits/Rubisol/src/internal/compiler"
)

const defaultReportDir = "reports"

// Storage persists a rendered report and returns where it went.
type Storage interface {
	Save(report *Report, content string) (string, error)
}

// FileStorage writes one markdown file per build under Dir.
type FileStorage struct {
	Dir string
}

func NewFileStorage(dir string) *FileStorage {
	if dir == "" {
		dir = defaultReportDir
	}
	return &FileStorage{Dir: dir}
}

// FileName names a report after what was built:
// build_report_<mode>_<target>_<version>_<build time>.md
func FileName(r *Report) string {
	target := strings.TrimRight(r.Target, `/\`)
	target = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	version := strings.TrimLeft(r.TargetVersion, "^~=<> ")
	return fmt.Sprintf("build_report_%s_%s_%s_%s.md",
		nameComponent(r.Mode), nameComponent(target), nameComponent(version),
		r.BuildTime.Format("20060102-150405"))
}

// nameComponent keeps [A-Za-z0-9._-] and turns everything else into '_'.
func nameComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	if s = strings.Trim(s, "._-"); s == "" {
		return "unknown"
	}
	return s
}

// Save writes content atomically. Builds of the same target within one second
// get a numeric suffix instead of overwriting each other.
func (s *FileStorage) Save(report *Report, content string) (string, error) {
	name := FileName(report)
	path := filepath.Join(s.Dir, name)
	base := strings.TrimSuffix(name, ".md")
	for n := 2; exists(path); n++ {
		path = filepath.Join(s.Dir, base+"_"+strconv.Itoa(n)+".md")
	}
	if err := compiler.WriteFile(path, content); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
