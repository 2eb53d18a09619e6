// Package report turns captured crash events into JSON crash reports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/signal"
)

// Report is the on-disk form of one crash event.
type Report struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Recrash   bool      `json:"recrash,omitempty"`

	Signal       *Signal    `json:"signal,omitempty"`
	FaultAddress string     `json:"fault_address,omitempty"`
	Registers    *Registers `json:"registers,omitempty"`
	Backtrace    []Frame    `json:"backtrace"`

	User     *UserException `json:"user_exception,omitempty"`
	UserInfo map[string]any `json:"user_info,omitempty"`

	Process *Process `json:"process,omitempty"`
	System  *System  `json:"system,omitempty"`
}

type Signal struct {
	Signum   int    `json:"signum"`
	Name     string `json:"name"`
	Code     int    `json:"code"`
	CodeName string `json:"code_name,omitempty"`
}

type Registers struct {
	PC string `json:"pc"`
	SP string `json:"sp"`
	FP string `json:"fp"`
	LR string `json:"lr,omitempty"`
}

// Frame is one symbolized backtrace entry. Function, File and Line are empty
// when the address does not belong to this binary.
type Frame struct {
	Address  string `json:"address"`
	Function string `json:"function,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type UserException struct {
	Name       string   `json:"name"`
	Reason     string   `json:"reason,omitempty"`
	Language   string   `json:"language,omitempty"`
	LineOfCode string   `json:"line_of_code,omitempty"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

type Process struct {
	PID     int    `json:"pid"`
	Name    string `json:"name,omitempty"`
	Exe     string `json:"exe,omitempty"`
	Threads int32  `json:"threads,omitempty"`
	RSS     uint64 `json:"rss,omitempty"`
}

type System struct {
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	GoVersion   string `json:"go_version"`
	NumCPU      int    `json:"num_cpu"`
	MemoryTotal uint64 `json:"memory_total,omitempty"`
	MemoryFree  uint64 `json:"memory_free,omitempty"`
}

// FormatID renders a report ID the way it appears in file names.
func FormatID(id int64) string {
	return fmt.Sprintf("%016x", id)
}

// ParseID parses a report ID printed by FormatID.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid report id %q: %w", s, err)
	}
	return id, nil
}

// Decode parses a stored report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// Encode renders r as indented JSON.
func Encode(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// TopFrame returns the innermost symbolized function, or the innermost
// address when nothing could be symbolized.
func (r *Report) TopFrame() string {
	for _, f := range r.Backtrace {
		if f.Function != "" {
			return f.Function
		}
	}
	if len(r.Backtrace) > 0 {
		return r.Backtrace[0].Address
	}
	return ""
}

// Build creates the report for ctx. It reads the stack cursor and the
// process state, so it must run after the capture finished.
func Build(id int64, ctx *monitor.Context, now time.Time) *Report {
	r := &Report{
		ID:        FormatID(id),
		EventID:   ctx.EventID,
		Timestamp: now.UTC(),
		Type:      ctx.Type.String(),
		Recrash:   ctx.CrashedDuringCrashHandling,
		Backtrace: []Frame{},
	}

	if sig := ctx.Signal.Signum; sig != 0 {
		r.Signal = &Signal{
			Signum:   int(sig),
			Name:     signal.GetSignalName(sig),
			Code:     ctx.Signal.Code,
			CodeName: signal.CodeName(sig, ctx.Signal.Code),
		}
	}
	if ctx.FaultAddress != 0 {
		r.FaultAddress = hexAddr(ctx.FaultAddress)
	}
	if mc := ctx.OffendingMachineContext; mc != nil && ctx.RegistersAreValid {
		r.Registers = &Registers{
			PC: hexAddr(mc.Registers.PC),
			SP: hexAddr(mc.Registers.SP),
			FP: hexAddr(mc.Registers.FP),
		}
		if mc.Registers.LR != 0 {
			r.Registers.LR = hexAddr(mc.Registers.LR)
		}
	}
	if c := ctx.StackCursor; c != nil {
		addrs := c.Walk()
		if mc := ctx.OffendingMachineContext; mc != nil && !mc.HasRegisters() {
			r.Backtrace = goFrames(addrs)
		} else {
			for _, addr := range addrs {
				r.Backtrace = append(r.Backtrace, symbolize(addr))
			}
		}
	}
	if ctx.Type == monitor.TypeUser || ctx.User.Name != "" {
		u := ctx.User
		r.User = &UserException{
			Name:       u.Name,
			Reason:     u.Reason,
			Language:   u.Language,
			LineOfCode: u.LineOfCode,
			StackTrace: u.StackTrace,
		}
	}

	r.Process = currentProcess()
	r.System = currentSystem()
	return r
}

func hexAddr(addr uintptr) string {
	return fmt.Sprintf("%#x", addr)
}

func symbolize(addr uintptr) Frame {
	f := Frame{Address: hexAddr(addr)}
	fn := runtime.FuncForPC(addr)
	if fn == nil {
		return f
	}
	f.Function = fn.Name()
	f.File, f.Line = fn.FileLine(addr)
	return f
}

// capturePackages are the packages whose frames sit on top of every stack
// recorded from a running goroutine; they describe the crash handling, not
// the crash.
var capturePackages = func() []string {
	internal := path.Dir(reflect.TypeFor[Report]().PkgPath())
	return lo.Map([]string{"machine", "monitor", "sighandler", "stackcursor"}, func(pkg string, _ int) string {
		return internal + "/" + pkg + "."
	})
}()

func isCaptureFrame(function string) bool {
	return lo.ContainsBy(capturePackages, func(prefix string) bool {
		return strings.HasPrefix(function, prefix)
	})
}

// goFrames expands program counters recorded by runtime.Callers, inlined
// calls included, and drops the leading crash handling frames.
func goFrames(pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return nil
	}
	var out []Frame
	leading := true
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if fr.PC != 0 || fr.Function != "" {
			if !leading || !isCaptureFrame(fr.Function) {
				leading = false
				out = append(out, Frame{
					Address:  hexAddr(fr.PC),
					Function: fr.Function,
					File:     fr.File,
					Line:     fr.Line,
				})
			}
		}
		if !more {
			break
		}
	}
	return out
}

func currentProcess() *Process {
	pid := os.Getpid()
	out := &Process{PID: pid}
	if exe, err := os.Executable(); err == nil {
		out.Exe = exe
		out.Name = filepath.Base(exe)
	}

	p, err := process.NewProcess(int32(pid)) //nolint:gosec // pid fits in int32
	if err != nil {
		return out
	}
	if name, err := p.Name(); err == nil && name != "" {
		out.Name = name
	}
	if n, err := p.NumThreads(); err == nil {
		out.Threads = n
	}
	if m, err := p.MemoryInfo(); err == nil && m != nil {
		out.RSS = m.RSS
	}
	return out
}

func currentSystem() *System {
	out := &System{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		out.MemoryTotal = vm.Total
		out.MemoryFree = vm.Available
	}
	return out
}

// Summary is the one-line description of a report used in listings.
func (r *Report) Summary() string {
	switch {
	case r.User != nil:
		if r.User.Reason != "" {
			return r.User.Name + ": " + r.User.Reason
		}
		return r.User.Name
	case r.Signal != nil:
		s := r.Signal.Name
		if s == "" {
			s = "signal " + strconv.Itoa(r.Signal.Signum)
		}
		if r.Signal.CodeName != "" {
			s += " (" + r.Signal.CodeName + ")"
		}
		if r.FaultAddress != "" {
			s += " at " + r.FaultAddress
		}
		return s
	default:
		return r.Type
	}
}
