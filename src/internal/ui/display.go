package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"
	Bold   = "\033[1m"
)

// Version is printed in the banner and by `rubisol version`.
const Version = "v1.0.0"

var (
	// Out 控制台输出，测试里替换
	Out io.Writer = os.Stdout
	mu  sync.Mutex
)

func PrintBanner() {
	banner := `
 ____        _     _           _ 
|  _ \ _   _| |__ (_)___  ___ | |
| |_) | | | | '_ \| / __|/ _ \| |
|  _ <| |_| | |_) | \__ \ (_) | |
|_| \_\\__,_|_.__/|_|___/\___/|_|
`
	fmt.Fprintln(Out, Cyan+banner+Reset)
	fmt.Fprintln(Out, Gray+"  "+Version+" - Ruby to Solidity smart contract compiler"+Reset)
	fmt.Fprintln(Out)
}

func clearLine() {
	fmt.Fprint(Out, "\r\033[K")
}

func UpdateStatus(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, a...)
	clearLine()

	if len(msg) > 100 {
		msg = msg[:97] + "..."
	}
	fmt.Fprint(Out, Cyan+"⚡ "+msg+Reset)
}

func LogSuccess(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Fprintf(Out, Green+"[SUCCESS] "+Reset+format+"\n", a...)
}

// LogWarnings prints the warnings of one compiled file.
func LogWarnings(source string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Fprintf(Out, Yellow+"[WARN] "+Reset+"%s | %d warning(s)\n", source, len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(Out, "   🟡 %s\n", w)
	}
}

func LogInfo(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Fprintf(Out, Blue+"[INFO] "+Reset+format+"\n", a...)
}

func LogError(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	clearLine()
	fmt.Fprintf(Out, Red+"[ERROR] "+Reset+format+"\n", a...)
}

func StartSpinner(msg string) chan bool {
	stop := make(chan bool)
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
				mu.Lock()
				clearLine()
				fmt.Fprintf(Out, Cyan+"%s %s"+Reset, frames[i%len(frames)], msg)
				mu.Unlock()
				time.Sleep(100 * time.Millisecond)
				i++
			}
		}
	}()
	return stop
}

func PrintStats(total, success, failed, cached, warnings int, duration time.Duration) {
	fmt.Fprintln(Out)
	fmt.Fprintln(Out, Gray+strings.Repeat("─", 50)+Reset)
	fmt.Fprintf(Out, "🏁 Build Completed in %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(Out, "📊 Total: %d | ✅ Compiled: %d | ❌ Failed: %d | 💾 Cached: %d | 🟡 Warnings: %d\n",
		total, success, failed, cached, warnings)
	fmt.Fprintln(Out, Gray+strings.Repeat("─", 50)+Reset)
}
