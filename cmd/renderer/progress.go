package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

// progressReporter draws a carriage-return counter on terminals and logs
// occasional lines otherwise.
type progressReporter struct {
	out      io.Writer
	terminal bool
	limiter  *rate.Limiter
}

func newProgressReporter() *progressReporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return &progressReporter{
			out:      os.Stderr,
			terminal: true,
			limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		}
	}
	return &progressReporter{
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
}

func percent(cur, tot int) int {
	if tot <= 0 {
		return 100
	}
	return 100 * cur / tot
}

// Report is a scene.ProgressFunc.  The final update is always shown.
func (p *progressReporter) Report(cur, tot int) {
	if cur < tot && !p.limiter.Allow() {
		return
	}

	if p.terminal {
		fmt.Fprintf(p.out, "\r%d/%d %d%%", cur, tot, percent(cur, tot))
		return
	}
	glog.Infof("Progress: %d/%d samples (%d%%)", cur, tot, percent(cur, tot))
}

// Done ends the terminal line.
func (p *progressReporter) Done() {
	if p.terminal {
		fmt.Fprintf(p.out, "\n")
	}
}
