package solc

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// StandardInput is the solc --standard-json input.
type StandardInput struct {
	Language string                 `json:"language"`
	Sources  map[string]SourceFile  `json:"sources"`
	Settings map[string]interface{} `json:"settings,omitempty"`
}

type SourceFile struct {
	Content string `json:"content"`
}

// StandardOutput keeps the parts of the solc output the verifier reads.
type StandardOutput struct {
	Errors    []OutputError                                `json:"errors"`
	Contracts map[string]map[string]map[string]interface{} `json:"contracts"`
}

type OutputError struct {
	Severity         string `json:"severity"`
	Type             string `json:"type"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

var importRe = regexp.MustCompile(`(?m)^\s*import\s+(?:[^"']*\s+from\s+)?["']([^"']+)["']\s*;`)

// Imports returns the import paths of a Solidity source in order of appearance.
func Imports(code string) []string {
	var out []string
	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		out = append(out, m[1])
	}
	return out
}

// BuildStandardInput collects name and every file it imports, found under
// importDirs, into a standard-json input. Imports that cannot be found are left
// for solc to report.
func BuildStandardInput(name, code string, importDirs []string) (StandardInput, error) {
	if !strings.HasSuffix(name, ".sol") {
		name += ".sol"
	}
	input := StandardInput{
		Language: "Solidity",
		Sources:  map[string]SourceFile{name: {Content: code}},
		Settings: map[string]interface{}{
			"outputSelection": map[string]interface{}{
				"*": map[string]interface{}{"*": []string{"abi"}},
			},
		},
	}

	queue := []struct{ from, imp string }{}
	for _, imp := range Imports(code) {
		queue = append(queue, struct{ from, imp string }{name, imp})
	}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		key := item.imp
		if strings.HasPrefix(key, "./") || strings.HasPrefix(key, "../") {
			key = path.Join(path.Dir(item.from), key)
		}
		if _, seen := input.Sources[key]; seen {
			continue
		}
		content, err := readImport(key, importDirs)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return input, fmt.Errorf("failed to read import %s: %w", key, err)
		}
		// 统一换行，避免 solc 报位置偏移
		content = strings.ReplaceAll(content, "\r\n", "\n")
		input.Sources[key] = SourceFile{Content: content}
		for _, imp := range Imports(content) {
			queue = append(queue, struct{ from, imp string }{key, imp})
		}
	}
	return input, nil
}

func readImport(rel string, dirs []string) (string, error) {
	for _, dir := range dirs {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := os.ReadFile(p)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", os.ErrNotExist
}
