package progress

import (
	"fmt"
	"io"
	"os"
	"time"
)

// EventKind distinguishes status lines from byte-count updates.
type EventKind int

const (
	// KindStatus is a one-off status message, such as "resuming download".
	KindStatus EventKind = iota

	// KindProgress is a byte-count update for an active transfer.
	KindProgress
)

// Event is a single notification emitted by a transfer. Producers send
// events on an ordered channel; sends block when the consumer falls behind,
// so a slow terminal throttles the transfer rather than dropping updates.
type Event struct {
	Kind EventKind

	// Name identifies the file the event refers to.
	Name string

	// Message is the status text. Only set for KindStatus.
	Message string

	// Downloaded is the number of bytes on disk so far.
	Downloaded int64

	// Total is the expected final size, or 0 when unknown.
	Total int64
}

// Percent returns completion as a value in [0, 100]. ok is false when the
// total size is unknown, in which case no percentage should be shown.
func (e Event) Percent() (pct float64, ok bool) {
	if e.Total <= 0 {
		return 0, false
	}
	return float64(e.Downloaded) / float64(e.Total) * 100, true
}

// Options configures the console renderer.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stdout
	Output io.Writer

	// UpdateInterval is the minimum time between rewrites of the
	// in-place progress line. Status lines are never rate-limited.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Renderer drains transfer events and writes human-readable output to a
// terminal. Status events print as their own lines; progress events rewrite
// a single line in place, rate-limited to UpdateInterval.
type Renderer struct {
	opts Options
	done chan struct{}

	startTime time.Time
	session   int64

	lastName       string
	lastDownloaded int64

	lastPrint   time.Time
	lastSession int64
	lineOpen    bool
}

// NewRenderer creates a console renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Renderer{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start begins draining ch in a background goroutine. The renderer runs
// until ch is closed; the sender owns the channel lifecycle.
func (r *Renderer) Start(ch <-chan Event) {
	r.startTime = time.Now()
	r.lastPrint = r.startTime

	go func() {
		defer close(r.done)
		for ev := range ch {
			r.handle(ev)
		}
		r.printSummary()
	}()
}

// Wait blocks until the event channel has been closed and the final
// summary written.
func (r *Renderer) Wait() {
	<-r.done
}

func (r *Renderer) handle(ev Event) {
	switch ev.Kind {
	case KindStatus:
		r.closeLine()
		if ev.Name == "" {
			fmt.Fprintf(r.opts.Output, "[hfdl] %s\n", ev.Message)
		} else {
			fmt.Fprintf(r.opts.Output, "[hfdl] %s: %s\n", ev.Name, ev.Message)
		}
	case KindProgress:
		r.progress(ev)
	}
}

// progress accounts the byte delta and rewrites the progress line. The
// first event for each file establishes its baseline, so bytes already on
// disk from an earlier run are not counted as session throughput.
func (r *Renderer) progress(ev Event) {
	if ev.Name != r.lastName {
		r.lastName = ev.Name
		r.lastDownloaded = ev.Downloaded
	}
	if delta := ev.Downloaded - r.lastDownloaded; delta > 0 {
		r.session += delta
	}
	r.lastDownloaded = ev.Downloaded

	now := time.Now()
	final := ev.Total > 0 && ev.Downloaded >= ev.Total
	if !final && now.Sub(r.lastPrint) < r.opts.UpdateInterval {
		return
	}

	elapsed := now.Sub(r.lastPrint).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(r.session-r.lastSession) / elapsed
	r.lastPrint = now
	r.lastSession = r.session

	if pct, ok := ev.Percent(); ok {
		fmt.Fprintf(r.opts.Output, "\r[hfdl] %s: %.1f%% | %s / %s | %s/s    ",
			ev.Name,
			pct,
			FormatSize(ev.Downloaded),
			FormatSize(ev.Total),
			FormatSize(int64(speed)),
		)
	} else {
		fmt.Fprintf(r.opts.Output, "\r[hfdl] %s: %s | %s/s    ",
			ev.Name,
			FormatSize(ev.Downloaded),
			FormatSize(int64(speed)),
		)
	}
	r.lineOpen = true
}

func (r *Renderer) closeLine() {
	if r.lineOpen {
		fmt.Fprint(r.opts.Output, "\n")
		r.lineOpen = false
	}
}

// printSummary outputs the session totals once the event stream ends.
func (r *Renderer) printSummary() {
	r.closeLine()
	duration := time.Since(r.startTime)
	avgSpeed := float64(r.session) / duration.Seconds()

	fmt.Fprintf(r.opts.Output, "[hfdl] Transferred %s in %s (%s/s)\n",
		FormatSize(r.session),
		formatDuration(duration),
		FormatSize(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
