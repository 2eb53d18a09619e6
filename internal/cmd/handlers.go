package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/crashguard/internal/sighandler"
)

func Handlers() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "handlers [flags]",
			Short: "Show the handler installed for every fatal signal",
			Long: `Show the top of the handler chain for every fatal signal watched by
crashguard. With --install the crash handlers are installed first, so the
listing shows which signals they took over.
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{installFlag}, runHandlers,
	)
}

var handlerHeader = table.Row{
	"Signal",
	"Disposition",
	"Handler",
	"Own",
}

func runHandlers(ctx *Context, _ []string) error {
	install, err := boolFlag(ctx.Command, installFlag.name)
	if err != nil {
		return err
	}
	e, err := ctx.newEngine(sighandler.SystemPlatform(), 0)
	if err != nil {
		return err
	}
	if install {
		if err := e.signals.SetEnabled(true); err != nil {
			return fmt.Errorf("failed to install crash handlers: %w", err)
		}
		defer func() { _ = e.signals.SetEnabled(false) }()
	}

	chain, err := e.signals.HandlerChain()
	if err != nil {
		return err
	}

	useColor := colorEnabled(ctx.Out())
	t := table.NewWriter()
	t.SetOutputMirror(ctx.Out())
	t.AppendHeader(handlerHeader)
	for _, h := range chain {
		handler := h.Function
		if handler == "" && h.Address != 0 {
			handler = fmt.Sprintf("%#x", h.Address)
		}
		t.AppendRow(table.Row{
			h.Name,
			h.Disposition.String(),
			handler,
			markColorize(h.IsOwnHandler, useColor),
		})
	}
	t.Render()
	return nil
}
