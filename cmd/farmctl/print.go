package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/farmctl/internal/storage"
)

func printRunsTable(w io.Writer, runs []storage.Run) {
	headers := []string{"ID", "PID", "STARTED", "DURATION", "EXIT"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			strconv.Itoa(r.PID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runDuration(r),
			runExit(r),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = maxInt(widths[i], len(cell))
		}
	}

	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	sep := "+-" + strings.Join(parts, "-+-") + "-+\n"

	fmt.Fprint(w, sep)
	writeRow(w, headers, widths)
	fmt.Fprint(w, sep)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
	fmt.Fprint(w, sep)
}

func writeRow(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = pad(c, widths[i])
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(padded, " | "))
}

func runDuration(r storage.Run) string {
	if r.Active() {
		return "running"
	}
	return r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
}

func runExit(r storage.Run) string {
	if r.ExitCode == nil {
		return "-"
	}
	s := strconv.Itoa(*r.ExitCode)
	if r.Unexpected {
		s += " (crashed)"
	}
	return s
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
