package report

import (
	"maps"
	"os"
	"sync/atomic"
	"time"

	"github.com/dagucloud/crashguard/internal/cmn/logger"
	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/persis/filereport"
)

const recrashFilePermissions = 0600

var _ monitor.Sink = (*Writer)(nil)

// Writer is the event sink that persists every captured event as a report
// in a filereport.Store.
//
// When the process crashes again while a report is being written, the
// second report goes next to the first one instead of taking a new ID.
type Writer struct {
	store  *filereport.Store
	logger logger.Logger
	now    func() time.Time

	onWritten func(id int64)
	userInfo  atomic.Pointer[map[string]any]
	lastPath  atomic.Pointer[string]
}

type WriterOption func(*Writer)

// WithWriterLogger sets the logger for write failures.
func WithWriterLogger(l logger.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithReportWrittenCallback sets a function called with the ID of every
// report after it is stored.
func WithReportWrittenCallback(fn func(id int64)) WriterOption {
	return func(w *Writer) {
		w.onWritten = fn
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a Writer storing reports in store.
func NewWriter(store *filereport.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:  store,
		logger: logger.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetUserInfo attaches info to every report written afterwards. A nil map
// clears it.
func (w *Writer) SetUserInfo(info map[string]any) {
	if info == nil {
		w.userInfo.Store(nil)
		return
	}
	cp := maps.Clone(info)
	w.userInfo.Store(&cp)
}

// LastReportPath returns the path of the most recent report, or "".
func (w *Writer) LastReportPath() string {
	if p := w.lastPath.Load(); p != nil {
		return *p
	}
	return ""
}

// OnFatalCapture implements monitor.Sink.
func (w *Writer) OnFatalCapture(ctx *monitor.Context) {
	if ctx.CrashedDuringCrashHandling {
		if last := w.LastReportPath(); last != "" {
			w.writeRecrash(last, ctx)
			return
		}
	}

	id, path, err := w.store.NextReportPath()
	if err != nil {
		w.logger.Error("Failed to allocate crash report", tag.Error(err))
		return
	}
	w.lastPath.Store(&path)

	data, err := Encode(w.build(id, ctx))
	if err != nil {
		w.logger.Error("Failed to encode crash report", tag.ReportID(id), tag.Error(err))
		return
	}
	if err := w.store.Write(id, data); err != nil {
		w.logger.Error("Failed to write crash report", tag.ReportID(id), tag.Error(err))
		return
	}
	if _, err := w.store.Prune(); err != nil {
		w.logger.Warn("Failed to prune crash reports", tag.Error(err))
	}

	w.logger.Info("Crash report written",
		tag.ReportID(id), tag.EventID(ctx.EventID), tag.Type(ctx.Type.String()), tag.File(path))
	if w.onWritten != nil {
		w.onWritten(id)
	}
}

func (w *Writer) writeRecrash(last string, ctx *monitor.Context) {
	path := filereport.RecrashPath(last)
	data, err := Encode(w.build(0, ctx))
	if err != nil {
		w.logger.Error("Failed to encode recrash report", tag.Error(err))
		return
	}
	if err := os.WriteFile(path, data, recrashFilePermissions); err != nil {
		w.logger.Error("Failed to write recrash report", tag.File(path), tag.Error(err))
		return
	}
	w.logger.Warn("Crashed while handling a crash", tag.EventID(ctx.EventID), tag.File(path))
}

func (w *Writer) build(id int64, ctx *monitor.Context) *Report {
	r := Build(id, ctx, w.now())
	if info := w.userInfo.Load(); info != nil {
		r.UserInfo = *info
	}
	return r
}
