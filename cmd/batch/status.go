package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/t77yq/trendloop/internal/queue"
)

func printStatus(w io.Writer, sum queue.Summary) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Post Queue Status")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "\nTotal: %d | Published: %d | Pending: %d\n", sum.Total, sum.Published, sum.Pending)

	fmt.Fprintf(w, "\n%-15s %6s %10s %8s\n", "Date", "Total", "Published", "Pending")
	fmt.Fprintln(w, strings.Repeat("-", 45))
	for _, day := range sum.Days {
		done := ""
		if day.Pending() == 0 {
			done = "DONE"
		}
		fmt.Fprintf(w, "%-15s %6d %10d %8d  %s\n", day.Date, day.Total, day.Published, day.Pending(), done)
	}

	fmt.Fprintf(w, "\nEstimated API cost: ~$%.2f\n", sum.EstimatedCost)
}
