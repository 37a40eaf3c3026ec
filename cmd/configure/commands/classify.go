package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/baller70/bookmarkaihub-sub004/internal/ratelimit"
	"github.com/spf13/cobra"
)

// NewClassifyCmd creates the classify command, which shows how paths would be limited.
func NewClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>...",
		Short: "Show the endpoint class of request paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tCLASS")
			for _, p := range args {
				class := "bypass"
				if !ratelimit.Bypass(p) {
					class = string(ratelimit.Classify(p))
				}
				fmt.Fprintf(tw, "%s\t%s\n", p, class)
			}
			return tw.Flush()
		},
	}
}
