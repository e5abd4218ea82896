package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	fileLogger  *log.Logger
	logFile     *os.File
	initialized bool
	quiet       bool
	consoleMu   sync.Mutex
)

// helloq InitLogger 初始化文件日志，dir 为空时写到 logs/
func InitLogger(dir string) (string, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(dir, fmt.Sprintf("rubisol_%s.log", timestamp))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}
	consoleMu.Lock()
	logFile = f
	fileLogger = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	initialized = true
	consoleMu.Unlock()
	return logPath, nil
}

// SetQuiet 关闭 Info 的控制台输出，Warn/Error 仍然打印
func SetQuiet(q bool) {
	consoleMu.Lock()
	quiet = q
	consoleMu.Unlock()
}

func Close() {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initialized = false
}

func line(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	return msg
}

func InfoFileOnly(format string, v ...interface{}) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if !initialized {
		return
	}
	fileLogger.Output(2, "[INFO] "+line(format, v...))
}

func Info(format string, v ...interface{}) {
	consoleMu.Lock()
	defer consoleMu.Unlock()

	msg := line(format, v...)
	if initialized {
		fileLogger.Output(2, "[INFO] "+msg)
	}
	if !quiet {
		fmt.Print("[INFO] " + msg)
	}
}

func Debug(format string, v ...interface{}) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if !initialized {
		return
	}
	fileLogger.Output(2, "[DEBUG] "+line(format, v...))
}

func Error(format string, v ...interface{}) {
	consoleMu.Lock()
	defer consoleMu.Unlock()

	msg := line(format, v...)
	if initialized {
		fileLogger.Output(2, "[ERROR] "+msg)
	}
	fmt.Fprint(os.Stderr, "[ERROR] "+msg)
}

func Warn(format string, v ...interface{}) {
	consoleMu.Lock()
	defer consoleMu.Unlock()

	msg := line(format, v...)
	if initialized {
		fileLogger.Output(2, "[WARN] "+msg)
	}
	fmt.Fprint(os.Stderr, "[WARN] "+msg)
}

// GetLogWriter returns the log file, or io.Discard before InitLogger.
func GetLogWriter() io.Writer {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	if logFile == nil {
		return io.Discard
	}
	return logFile
}
