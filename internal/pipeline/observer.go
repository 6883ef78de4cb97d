package pipeline

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/zap"

	"github.com/sells-group/archive-cli/internal/model"
)

// Observer receives run lifecycle callbacks. Implementations must tolerate
// being called for every item of a large run; failures are swallowed by the
// runner and must not be relied upon for control flow.
type Observer interface {
	OnStart(total int)
	OnSkip(id string)
	OnSuccess(id string, value any)
	OnError(id string, err error)
	OnComplete(stats model.RunStats)
}

// ConsoleObserver prints one line per outcome and a summary table at the end.
type ConsoleObserver struct {
	w        io.Writer
	pipeline string
	dryRun   bool
}

// NewConsoleObserver creates a ConsoleObserver writing to w.
func NewConsoleObserver(w io.Writer, pipeline string, dryRun bool) *ConsoleObserver {
	return &ConsoleObserver{w: w, pipeline: pipeline, dryRun: dryRun}
}

func (c *ConsoleObserver) OnStart(total int) {
	mode := ""
	if c.dryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(c.w, "%s: %d item(s)%s\n", c.pipeline, total, mode)
}

func (c *ConsoleObserver) OnSkip(id string) {
	fmt.Fprintf(c.w, "  skip  %s\n", id)
}

func (c *ConsoleObserver) OnSuccess(id string, _ any) {
	if c.dryRun {
		fmt.Fprintf(c.w, "  stale %s (would process)\n", id)
		return
	}
	fmt.Fprintf(c.w, "  ok    %s\n", id)
}

func (c *ConsoleObserver) OnError(id string, err error) {
	fmt.Fprintf(c.w, "  err   %s: %v\n", id, err)
}

func (c *ConsoleObserver) OnComplete(stats model.RunStats) {
	processed := "Processed"
	if c.dryRun {
		processed = "Would process"
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(c.w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Pipeline", processed, "Skipped", "Errors"})
	tw.AppendRow(table.Row{
		c.pipeline,
		strconv.Itoa(stats.Processed),
		strconv.Itoa(stats.Skipped),
		strconv.Itoa(stats.Errors),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.Render()
}

// LogObserver mirrors run outcomes into the structured log.
type LogObserver struct {
	pipeline string
}

// NewLogObserver creates a LogObserver for the named pipeline.
func NewLogObserver(pipeline string) *LogObserver {
	return &LogObserver{pipeline: pipeline}
}

func (l *LogObserver) OnStart(total int) {
	zap.L().Info("run started",
		zap.String("pipeline", l.pipeline),
		zap.Int("total", total),
	)
}

func (l *LogObserver) OnSkip(id string) {
	zap.L().Debug("item up to date",
		zap.String("pipeline", l.pipeline),
		zap.String("item", id),
	)
}

func (l *LogObserver) OnSuccess(id string, _ any) {
	zap.L().Info("item processed",
		zap.String("pipeline", l.pipeline),
		zap.String("item", id),
	)
}

func (l *LogObserver) OnError(id string, err error) {
	zap.L().Error("item failed",
		zap.String("pipeline", l.pipeline),
		zap.String("item", id),
		zap.Error(err),
	)
}

func (l *LogObserver) OnComplete(stats model.RunStats) {
	zap.L().Info("run complete",
		zap.String("pipeline", l.pipeline),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
}
