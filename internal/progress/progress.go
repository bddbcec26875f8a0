// Package progress mirrors the original's ticking progress thread: two
// shared counters, updated from the core's single-threaded hot loop, and
// a reporter goroutine that polls and prints them to stderr without
// taking the core off its critical path.
package progress

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Stage selects the label the reporter prints.
type Stage int

const (
	StageIdle Stage = iota
	StageEncrypt
	StageDecrypt
	StageEnumerate
)

func (s Stage) label() string {
	switch s {
	case StageEncrypt:
		return "Encrypting objects"
	case StageDecrypt:
		return "Decrypting objects"
	case StageEnumerate:
		return "Enumerating objects"
	default:
		return ""
	}
}

// pollInterval matches the original's 333ms wait.
const pollInterval = 333 * time.Millisecond

// Counters are the shared state a Reporter polls. Set is safe to call
// from the core's hot loop; the reporter goroutine only ever reads.
type Counters struct {
	stage atomic.Int64
	num1  atomic.Uint64
	num2  atomic.Uint64
}

// Set updates the current stage and counter values.
func (c *Counters) Set(stage Stage, num1, num2 uint64) {
	c.stage.Store(int64(stage))
	c.num1.Store(num1)
	c.num2.Store(num2)
}

// Add increments num1 by delta, leaving stage and num2 unchanged. This is
// the call the graph walkers make per object processed.
func (c *Counters) Add(delta uint64) {
	c.num1.Add(delta)
}

func (c *Counters) snapshot() (Stage, uint64, uint64) {
	return Stage(c.stage.Load()), c.num1.Load(), c.num2.Load()
}

// Reporter polls a Counters and writes a single-line, carriage-return-
// updated progress report until Stop is called.
type Reporter struct {
	out      io.Writer
	counters *Counters
	stop     chan struct{}
	done     chan struct{}
}

// NewReporter starts a reporter goroutine writing to out.
func NewReporter(out io.Writer, counters *Counters) *Reporter {
	r := &Reporter{
		out:      out,
		counters: counters,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Stop halts the reporter goroutine and prints a final newline if a line
// was left open, matching the original's progress_end_line.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reporter) run() {
	defer close(r.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastStage Stage = -1
	var lastNum1, lastNum2 uint64
	lineOpen := false

	for {
		select {
		case <-r.stop:
			if lineOpen {
				fmt.Fprint(r.out, "\n")
			}
			return
		case <-ticker.C:
			stage, num1, num2 := r.counters.snapshot()
			if stage == StageIdle {
				continue
			}
			if stage == lastStage && num1 == lastNum1 && num2 == lastNum2 {
				continue
			}
			lastStage, lastNum1, lastNum2 = stage, num1, num2

			fmt.Fprintf(r.out, "\r%s: %d, %d", stage.label(), num1, num2)
			lineOpen = true
		}
	}
}
