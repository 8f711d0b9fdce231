package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// printSummary writes one line per target followed by the run totals.
func printSummary(w io.Writer, result *s3types.ConcatResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range result.Sessions {
		line := fmt.Sprintf("%s\t%s\t%d parts\t%s", s.State, s.Target, len(s.Sources), humanize.Bytes(uint64(s.Bytes)))
		if s.Err != nil {
			line += "\t" + errors.RemoteMessage(s.Err)
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()

	mode := ""
	if result.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "%d listed, %d matched, %d targets: %d completed, %d aborted%s\n",
		result.Listed,
		result.Matched,
		len(result.Sessions),
		result.Count(s3types.StateCompleted),
		result.Count(s3types.StateAborted),
		mode,
	)

	if len(result.Removed) > 0 || len(result.CleanupErrors) > 0 {
		fmt.Fprintf(w, "%d sources removed, %d not removed\n", len(result.Removed), len(result.CleanupErrors))
	}
	fmt.Fprintf(w, "run %s took %s\n", result.RunID, result.Duration.Round(time.Millisecond))
}
