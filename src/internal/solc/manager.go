package solc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// helloq SolcManager solc 版本管理器，按版本缓存可执行文件路径
type SolcManager struct {
	mu           sync.RWMutex
	versionCache map[string]string // version -> solc path
	installLocks sync.Map          // version -> *sync.Once，确保每个版本只安装一次
}

var (
	defaultManager *SolcManager
	once           sync.Once
)

func GetManager() *SolcManager {
	once.Do(func() {
		defaultManager = &SolcManager{
			versionCache: make(map[string]string),
		}
	})
	return defaultManager
}

// helloq GetSolcPath 获取指定版本的 solc 路径（带缓存）
func (m *SolcManager) GetSolcPath(version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("version is empty")
	}

	version = normalizeVersion(version)

	m.mu.RLock()
	if path, ok := m.versionCache[version]; ok {
		m.mu.RUnlock()
		if fileExists(path) {
			return path, nil
		}
	} else {
		m.mu.RUnlock()
	}

	// 方法1: solc-select 安装的版本
	path, err := m.trySolcSelect(version)
	if err == nil && path != "" {
		m.cachePath(version, path)
		return path, nil
	}

	// 方法2: ~/.solcx 目录（py-solc-x 安装位置）
	path, err = m.trySolcx(version)
	if err == nil && path != "" {
		m.cachePath(version, path)
		return path, nil
	}

	// 方法3: PATH 中的 solc，版本必须一致
	path, err = m.tryPath(version)
	if err == nil && path != "" {
		m.cachePath(version, path)
		return path, nil
	}

	return "", fmt.Errorf("failed to get solc %s, please install it manually: solc-select install %s: %v", version, version, err)
}

func normalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	for _, prefix := range []string{"^", ">=", "<=", ">", "<", "~", "="} {
		version = strings.TrimPrefix(version, prefix)
	}
	return strings.TrimSpace(version)
}

func (m *SolcManager) cachePath(version, path string) {
	m.mu.Lock()
	m.versionCache[version] = path
	m.mu.Unlock()
}

func (m *SolcManager) trySolcSelect(version string) (string, error) {
	if _, err := exec.LookPath("solc-select"); err != nil {
		return "", err
	}

	output, err := exec.Command("solc-select", "versions").Output()
	if err != nil {
		return "", err
	}

	installed := false
	for _, line := range strings.Split(string(output), "\n") {
		// 输出格式: "0.8.16" 或 "0.8.16 (current)"
		if strings.HasPrefix(strings.TrimSpace(line), version) {
			installed = true
			break
		}
	}

	if !installed {
		o, _ := m.installLocks.LoadOrStore(version, &sync.Once{})
		installOnce := o.(*sync.Once)

		var installErr error
		installOnce.Do(func() {
			if err := exec.Command("solc-select", "install", version).Run(); err != nil {
				installErr = fmt.Errorf("solc-select install failed: %w", err)
			}
		})
		if installErr != nil {
			return "", installErr
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".solc-select", "artifacts", fmt.Sprintf("solc-%s", version))

	var possiblePaths []string
	if runtime.GOOS == "windows" {
		possiblePaths = []string{
			filepath.Join(dir, fmt.Sprintf("solc-%s.exe", version)),
			filepath.Join(dir, "solc.exe"),
		}
	} else {
		possiblePaths = []string{
			filepath.Join(dir, fmt.Sprintf("solc-%s", version)),
			filepath.Join(homeDir, ".solc-select", "artifacts", version, fmt.Sprintf("solc-%s", version)),
		}
	}
	for _, path := range possiblePaths {
		if fileExists(path) && isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("solc-select artifact for %s not found", version)
}

func (m *SolcManager) trySolcx(version string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	solcxDir := filepath.Join(homeDir, ".solcx")

	possiblePaths := []string{
		filepath.Join(solcxDir, fmt.Sprintf("solc-v%s", version)),
		filepath.Join(solcxDir, fmt.Sprintf("solc-%s", version)),
	}
	if runtime.GOOS == "darwin" {
		possiblePaths = append(possiblePaths,
			filepath.Join(solcxDir, fmt.Sprintf("solc-v%s", version), "bin", "solc"),
		)
	}
	for _, path := range possiblePaths {
		if fileExists(path) && isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("solcx version %s not found", version)
}

func (m *SolcManager) tryPath(version string) (string, error) {
	path, err := exec.LookPath("solc")
	if err != nil {
		return "", err
	}
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "", err
	}
	if !strings.Contains(string(out), "Version: "+version+"+") {
		return "", fmt.Errorf("solc in PATH is not version %s", version)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if runtime.GOOS == "windows" {
		return !info.IsDir()
	}
	return info.Mode()&0111 != 0
}

// Verification is the outcome of running solc over generated code.
type Verification struct {
	Version  string
	Errors   []string
	Warnings []string
}

// OK reports whether solc accepted the code.
func (v *Verification) OK() bool { return len(v.Errors) == 0 }

// helloq Verify 用与 pragma 匹配的 solc 以 standard-json 模式编译生成的代码。
// importDirs 用于解析生成代码中的 import。
func (m *SolcManager) Verify(ctx context.Context, name, code string, importDirs []string) (*Verification, error) {
	version := ExtractPragmaVersion(code)
	if version == "" {
		return nil, fmt.Errorf("failed to extract Solidity version from generated code")
	}
	solcPath, err := m.GetSolcPath(version)
	if err != nil {
		return nil, err
	}

	input, err := BuildStandardInput(name, code, importDirs)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, solcPath, "--standard-json")
	cmd.Stdin = bytes.NewReader(data)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("solc execution failed: %w", err)
	}

	var out StandardOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return nil, fmt.Errorf("failed to decode solc output: %w", err)
	}
	v := &Verification{Version: version}
	for _, e := range out.Errors {
		msg := strings.TrimSpace(e.FormattedMessage)
		if msg == "" {
			msg = e.Type + ": " + e.Message
		}
		if e.Severity == "error" {
			v.Errors = append(v.Errors, msg)
		} else {
			v.Warnings = append(v.Warnings, msg)
		}
	}
	return v, nil
}
