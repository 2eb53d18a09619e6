package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/crashguard/internal/cmn/logger/tag"
	"github.com/dagucloud/crashguard/internal/monitor"
	"github.com/dagucloud/crashguard/internal/report"
	"github.com/dagucloud/crashguard/internal/sighandler"
	"github.com/dagucloud/crashguard/internal/signal"
)

func Reports() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect and manage stored crash reports",
	}
	cmd.AddCommand(reportsList(), reportsShow(), reportsDelete(), reportsAdd(), reportsImport(), reportsTail())
	return cmd
}

func reportsList() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored crash reports, newest first",
			Args:  cobra.NoArgs,
		}, nil, runReportsList,
	)
}

var reportHeader = table.Row{
	"ID",
	"Time",
	"Type",
	"Summary",
	"Top Frame",
}

func runReportsList(ctx *Context, _ []string) error {
	store, err := ctx.ReportStore()
	if err != nil {
		return err
	}
	ids, err := store.IDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		_, _ = fmt.Fprintln(ctx.Out(), "No crash reports.")
		return nil
	}

	useColor := colorEnabled(ctx.Out())
	t := table.NewWriter()
	t.SetOutputMirror(ctx.Out())
	t.AppendHeader(reportHeader)
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		data, err := store.Read(id)
		if err != nil {
			ctx.Logger.Warn("Failed to read report", tag.ReportID(id), tag.Error(err))
			continue
		}
		r, err := report.Decode(data)
		if err != nil {
			t.AppendRow(table.Row{report.FormatID(id), "", "", "unreadable report", ""})
			continue
		}
		t.AppendRow(table.Row{
			report.FormatID(id),
			r.Timestamp.Local().Format(time.DateTime),
			typeColorize(r.Type, useColor),
			r.Summary(),
			r.TopFrame(),
		})
	}
	t.Render()
	return nil
}

func reportsShow() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "show [flags] <report id>",
			Short: "Print one crash report",
			Long: `Print a stored crash report as JSON or YAML. With --query only the
results of a jq expression evaluated against the report are printed.

Examples:
  crashguard reports show 0c8f2a4b00000001 --format yaml
  crashguard reports show 0c8f2a4b00000001 --query '.backtrace[].function'
`,
			Args: cobra.ExactArgs(1),
		}, []commandLineFlag{formatFlag, queryFlag}, runReportsShow,
	)
}

func runReportsShow(ctx *Context, args []string) error {
	format, err := stringFlag(ctx.Command, formatFlag.name)
	if err != nil {
		return err
	}
	expr, err := stringFlag(ctx.Command, queryFlag.name)
	if err != nil {
		return err
	}
	id, err := report.ParseID(args[0])
	if err != nil {
		return err
	}
	store, err := ctx.ReportStore()
	if err != nil {
		return err
	}
	data, err := store.Read(id)
	if err != nil {
		return err
	}
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q", format)
	}
	if expr != "" {
		data, err = queryReport(data, expr, format)
	} else if format == "yaml" {
		data, err = yaml.JSONToYAML(data)
	}
	if err != nil {
		return err
	}

	out := ctx.Out()
	if _, err := out.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

// queryReport evaluates expr against the report and encodes each result
// as its own document in format.
func queryReport(data []byte, expr, format string) ([]byte, error) {
	results, err := report.Query(data, expr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for i, v := range results {
		var b []byte
		if format == "yaml" {
			if i > 0 {
				buf.WriteString("---\n")
			}
			b, err = yaml.Marshal(v)
		} else {
			b, err = json.MarshalIndent(v, "", "  ")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to encode query result: %w", err)
		}
		buf.Write(b)
		if len(b) > 0 && b[len(b)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func reportsDelete() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "delete [flags] [report id]",
			Short: "Delete one crash report, or all of them with --all",
			Args:  cobra.MaximumNArgs(1),
		}, []commandLineFlag{allFlag}, runReportsDelete,
	)
}

var errDeleteTarget = errors.New("specify a report id or --all")

func runReportsDelete(ctx *Context, args []string) error {
	all, err := boolFlag(ctx.Command, allFlag.name)
	if err != nil {
		return err
	}
	if all == (len(args) == 1) {
		return errDeleteTarget
	}

	store, err := ctx.ReportStore()
	if err != nil {
		return err
	}
	if all {
		if err := store.DeleteAll(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(ctx.Out(), "Deleted all crash reports.")
		return nil
	}

	id, err := report.ParseID(args[0])
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ctx.Out(), "Deleted report %s.\n", report.FormatID(id))
	return nil
}

func reportsAdd() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "add [flags] <exception name>",
			Short: "Record an application exception as a crash report",
			Long: `Record a non-fatal exception with the current stack as a crash report.

Example:
  crashguard reports add ConfigError --reason "missing database url"
`,
			Args: cobra.ExactArgs(1),
		}, []commandLineFlag{reasonFlag}, runReportsAdd,
	)
}

func runReportsAdd(ctx *Context, args []string) error {
	reason, err := stringFlag(ctx.Command, reasonFlag.name)
	if err != nil {
		return err
	}
	e, err := ctx.newEngine(sighandler.SystemPlatform(), 0)
	if err != nil {
		return err
	}

	eventID := e.dispatcher.ReportUserException(monitor.UserException{
		Name:     args[0],
		Reason:   reason,
		Language: "go",
	})
	path := e.writer.LastReportPath()
	if path == "" {
		return errors.New("failed to write report")
	}
	_, _ = fmt.Fprintf(ctx.Out(), "Recorded event %s in %s\n", eventID, path)
	return nil
}

func reportsImport() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "import <file>...",
			Short: "Copy crash report files into the report store",
			Long: `Store each report file under a new ID, for example a report collected from
another machine. Files that are not crash reports are rejected. The store is
pruned to its configured maximum afterwards.

Example:
  crashguard reports import ./crashguard-report-0000000000000003.json
`,
			Args: cobra.MinimumNArgs(1),
		}, nil, runReportsImport,
	)
}

func runReportsImport(ctx *Context, args []string) error {
	store, err := ctx.ReportStore()
	if err != nil {
		return err
	}
	for _, file := range args {
		data, err := os.ReadFile(file) //nolint:gosec // user supplied path
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		r, err := report.Decode(data)
		if err != nil {
			return fmt.Errorf("%s is not a crash report: %w", file, err)
		}
		if r.Type == "" {
			return fmt.Errorf("%s is not a crash report: missing type", file)
		}
		id, err := store.AddUserReport(data)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", file, err)
		}
		ctx.Logger.Debug("Report imported", tag.ReportID(id), tag.File(file))
		_, _ = fmt.Fprintf(ctx.Out(), "Imported %s as report %s\n", file, report.FormatID(id))
	}
	return nil
}

func reportsTail() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "tail",
			Short: "Print each new crash report as it is written",
			Long: `Watch the reports directory and print a one line summary of every crash
report written to it until interrupted.
`,
			Args: cobra.NoArgs,
		}, nil, runReportsTail,
	)
}

func runReportsTail(ctx *Context, _ []string) error {
	store, err := ctx.ReportStore()
	if err != nil {
		return err
	}
	sigCtx, stop := ossignal.NotifyContext(ctx, signal.StopSignals()...)
	defer stop()

	ids, errs, err := store.Watch(sigCtx)
	if err != nil {
		return err
	}
	ctx.Logger.Info("Waiting for crash reports", tag.Dir(store.Dir()))

	useColor := colorEnabled(ctx.Out())
	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			continue
		}
		data, err := store.Read(id)
		if err != nil || len(data) == 0 {
			// The name is reserved before the report is written.
			continue
		}
		r, err := report.Decode(data)
		if err != nil {
			continue
		}
		seen[id] = true
		_, _ = fmt.Fprintf(ctx.Out(), "%s  %s  %s  %s\n",
			report.FormatID(id),
			r.Timestamp.Local().Format(time.DateTime),
			typeColorize(r.Type, useColor),
			r.Summary(),
		)
	}

	select {
	case err := <-errs:
		return fmt.Errorf("report watch failed: %w", err)
	default:
		return nil
	}
}
