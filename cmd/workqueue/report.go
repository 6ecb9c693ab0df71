package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/Swind/go-workqueue/transition"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func writeReport(out io.Writer, summaries []transition.Summary, format string) error {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"From", "To", "Count", "Mean", "StdDev", "P50", "P90", "P99", "Max"})
	for _, s := range summaries {
		tw.AppendRow(table.Row{
			s.Key.From.String(),
			s.Key.To.String(),
			strconv.Itoa(s.Count),
			formatNanos(s.Mean),
			formatNanos(s.StdDeviation),
			formatNanos(s.P50),
			formatNanos(s.P90),
			formatNanos(s.P99),
			formatNanos(s.Max),
		})
	}

	var rendered string
	switch format {
	case "", "table":
		tw.SetStyle(tableStyle(out))
		configs := make([]table.ColumnConfig, 0, 7)
		for col := 3; col <= 9; col++ {
			configs = append(configs, table.ColumnConfig{Number: col, Align: text.AlignRight, AlignHeader: text.AlignLeft})
		}
		tw.SetColumnConfigs(configs)
		rendered = tw.Render()
	case "csv":
		rendered = tw.RenderCSV()
	case "markdown":
		rendered = tw.RenderMarkdown()
	default:
		return fmt.Errorf("report format: unsupported value %q", format)
	}
	_, err := fmt.Fprintln(out, rendered)
	return err
}

func tableStyle(out io.Writer) table.Style {
	if isTerminal(out) {
		return table.StyleColoredBright
	}
	return table.StyleRounded
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatNanos(v float64) string {
	return time.Duration(math.Round(v)).String()
}
