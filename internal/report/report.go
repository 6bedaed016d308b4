// Package report emits the tiered diagnostic of a contract violation.
//
// Every violation produces one burst of four lines, all tiers together:
//
//	Protocol Type 0: Planning Error <aspect> (<phase>).
//	Protocol Type 1: Planning Error <aspect> at Object: <json>
//	Protocol Type 2: Customized Method for <aspect>. <description>
//	Protocol Type 3: Debugger called for <aspect>.
//
// Tier 2 uses the instance's Describe method when it has one and falls back to
// a generic dump otherwise. Bursts go to an append-only log file, an optional
// console writer and any record sinks; a burst is never interleaved with
// another. Sink failures are logged and never reach the hooked call.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/contractweave/internal/ir"
)

// Describer is implemented by types that want a custom Tier 2 message.
type Describer interface {
	Describe() string
}

// Sink receives the records of every burst, e.g. a database.
type Sink interface {
	Emit(ctx context.Context, records []ir.ViolationRecord) error
}

// Debugger is invoked for Tier 3. It must not block; panics are recovered.
type Debugger func(v Violation)

// Violation is one failed predicate evaluation.
type Violation struct {
	Aspect   string
	Phase    ir.Phase
	CallID   int64
	Instance any
}

// Options configures a Reporter.
type Options struct {
	// LogPath is the append-only log file. Empty means DefaultLogPath().
	LogPath string

	// DisableFile turns the log file off.
	DisableFile bool

	// Console receives every burst as well. Nil disables console output.
	Console io.Writer

	Sinks    []Sink
	Debugger Debugger
	Logger   *zap.Logger

	// Now stamps burst headers. Defaults to time.Now.
	Now func() time.Time
}

// Reporter writes violation bursts. Safe for concurrent use.
type Reporter struct {
	logPath  string
	console  io.Writer
	sinks    []Sink
	debugger Debugger
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// DefaultLogPath returns $TMPDIR/contractweave/violations.log.
func DefaultLogPath() string {
	return filepath.Join(os.TempDir(), "contractweave", "violations.log")
}

// New creates a Reporter.
func New(opts Options) *Reporter {
	r := &Reporter{
		logPath:  opts.LogPath,
		console:  opts.Console,
		sinks:    opts.Sinks,
		debugger: opts.Debugger,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	switch {
	case opts.DisableFile:
		r.logPath = ""
	case r.logPath == "":
		r.logPath = DefaultLogPath()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// LogPath returns the log file path, empty when file output is disabled.
func (r *Reporter) LogPath() string {
	return r.logPath
}

// Report emits all four tiers for v and returns the emitted records.
func (r *Reporter) Report(v Violation) []ir.ViolationRecord {
	records := Records(v, r.describe)
	planningErrors.WithLabelValues(v.Aspect, string(v.Phase)).Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Warn("planning error",
		zap.String("aspect", v.Aspect),
		zap.String("phase", string(v.Phase)),
		zap.Int64("call_id", v.CallID),
		zap.String("target_type", targetType(v.Instance)))

	burst := r.burst(v, records)
	if r.logPath != "" {
		if err := appendFile(r.logPath, burst); err != nil {
			r.logger.Error("violation log write failed", zap.String("path", r.logPath), zap.Error(err))
		}
	}
	if r.console != nil {
		if _, err := io.WriteString(r.console, burst); err != nil {
			r.logger.Error("violation console write failed", zap.Error(err))
		}
	}
	for _, s := range r.sinks {
		if err := s.Emit(context.Background(), records); err != nil {
			r.logger.Error("violation sink failed", zap.String("sink", fmt.Sprintf("%T", s)), zap.Error(err))
		}
	}
	r.signalDebugger(v)
	return records
}

// Records builds the four tier records of v. describe may be nil.
func Records(v Violation, describe func(any) (string, bool)) []ir.ViolationRecord {
	obj := Serialize(v.Instance)

	tier2 := fmt.Sprintf("Protocol Type 2: Object type %s not handled. Object: %s", targetType(v.Instance), obj)
	if describe != nil {
		if desc, ok := describe(v.Instance); ok {
			tier2 = fmt.Sprintf("Protocol Type 2: Customized Method for %s. %s", v.Aspect, desc)
		}
	}

	messages := [4]string{
		fmt.Sprintf("Protocol Type 0: Planning Error %s (%s).", v.Aspect, v.Phase),
		fmt.Sprintf("Protocol Type 1: Planning Error %s at Object: %s", v.Aspect, obj),
		tier2,
		fmt.Sprintf("Protocol Type 3: Debugger called for %s.", v.Aspect),
	}

	records := make([]ir.ViolationRecord, len(messages))
	for i, msg := range messages {
		records[i] = ir.ViolationRecord{
			Tier:       ir.Tier(i),
			Aspect:     v.Aspect,
			Phase:      v.Phase,
			CallID:     v.CallID,
			TargetType: targetType(v.Instance),
			Message:    msg,
		}
	}
	return records
}

// Serialize renders an instance as JSON, falling back to %+v for values
// encoding/json cannot represent.
func Serialize(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

// describe calls Describe, treating a panic as "no description".
func (r *Reporter) describe(instance any) (desc string, ok bool) {
	d, isDescriber := instance.(Describer)
	if !isDescriber {
		return "", false
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Describe panicked", zap.Any("panic", p))
			desc, ok = "", false
		}
	}()
	return d.Describe(), true
}

func (r *Reporter) signalDebugger(v Violation) {
	if r.debugger == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("debugger hook panicked", zap.String("aspect", v.Aspect), zap.Any("panic", p))
		}
	}()
	r.debugger(v)
}

func (r *Reporter) burst(v Violation, records []ir.ViolationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n# %s aspect=%s phase=%s call=%d\n",
		r.now().UTC().Format(time.RFC3339Nano), v.Aspect, v.Phase, v.CallID)
	for _, rec := range records {
		b.WriteString(rec.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

func appendFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func targetType(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
