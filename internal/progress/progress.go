// Package progress draws byte and item progress on a terminal.
package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker receives progress for one task. Written bytes count toward the
// total; Increment counts one item.
type Tracker interface {
	io.Writer
	Increment()
	Done()
}

// Reporter starts trackers. A negative total draws a spinner.
type Reporter interface {
	Start(desc string, total int64) Tracker
}

// Discard is a Reporter that draws nothing.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Start(string, int64) Tracker { return nopTracker{} }

type nopTracker struct{}

func (nopTracker) Write(p []byte) (int, error) { return len(p), nil }
func (nopTracker) Increment()                  {}
func (nopTracker) Done()                       {}

// Terminal draws progress bars on w, normally stderr.
type Terminal struct {
	w io.Writer
}

// NewTerminal creates a reporter drawing on w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Start(desc string, total int64) Tracker {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() { io.WriteString(t.w, "\n") }),
	}
	if total >= 0 {
		opts = append(opts,
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
		)
	} else {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
	}
	return &bar{pb: progressbar.NewOptions64(total, opts...)}
}

type bar struct {
	pb *progressbar.ProgressBar
}

func (b *bar) Write(p []byte) (int, error) {
	return b.pb.Write(p)
}

func (b *bar) Increment() {
	b.pb.Add(1)
}

func (b *bar) Done() {
	b.pb.Finish()
}
