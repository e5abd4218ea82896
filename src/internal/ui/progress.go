package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const Clear = "\033[2K\r"

type ProgressBar struct {
	total       int
	current     int
	failCount   int
	startTime   time.Time
	description string
	mu          sync.Mutex
	width       int
}

func NewProgressBar(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		current:     0,
		startTime:   time.Now(),
		description: description,
		width:       40, // 进度条长度
	}
}

func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
	pb.render()
}

func (pb *ProgressBar) AddFailure() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.failCount++
	// 不需要重新渲染，下次 Increment 会更新
}

func (pb *ProgressBar) PrintMsg(msg string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	fmt.Fprint(Out, Clear)
	fmt.Fprintln(Out, msg)
	pb.render()
}

func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	// 确保进度满格
	pb.current = pb.total
	fmt.Fprint(Out, Clear)
	pb.render()
	fmt.Fprintln(Out)
}

func (pb *ProgressBar) render() {
	percent := 1.0
	if pb.total > 0 {
		percent = float64(pb.current) / float64(pb.total)
	}
	if percent > 1.0 {
		percent = 1.0
	}

	filled := int(float64(pb.width) * percent)
	bar := strings.Repeat("=", filled)
	if filled < pb.width {
		bar += ">" + strings.Repeat(".", pb.width-filled-1)
	} else {
		bar = strings.Repeat("=", pb.width)
	}

	elapsed := time.Since(pb.startTime)
	rate := float64(pb.current) / elapsed.Seconds()
	remaining := time.Duration(0)
	if rate > 0 {
		remaining = time.Duration(float64(pb.total-pb.current)/rate) * time.Second
	}
	etaStr := fmt.Sprintf("%02dm%02ds", int(remaining.Minutes()), int(remaining.Seconds())%60)

	barColor := Cyan
	if percent >= 1.0 {
		barColor = Green
	}
	failColor := Green
	if pb.failCount > 0 {
		failColor = Red
	}

	fmt.Fprintf(Out, "%s%s %s [%s]%s %.0f%% | %d/%d | ETA: %s | Failed: %s%d%s \n",
		Clear,
		pb.description,
		barColor, bar, Reset,
		percent*100,
		pb.current, pb.total,
		etaStr,
		failColor, pb.failCount, Reset,
	)
}

// FormatFailureMsg formats the errors of one failed source.
func FormatFailureMsg(source string, errs []string) string {
	return fmt.Sprintf(" %s🔴 %d error(s) in %s%s: %s",
		Red, len(errs), Bold, source, Reset+strings.Join(errs, "; "))
}
