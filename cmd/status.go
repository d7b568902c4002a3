package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/interview-checkup/internal/monitoring"
	"github.com/sells-group/interview-checkup/internal/snapcache"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store reachability, collection sizes and cache state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		env.warmUp(ctx)
		formatStatus(os.Stdout, env.Collector.Collect(ctx))
		return nil
	},
}

// formatStatus writes a status snapshot to out.
func formatStatus(out io.Writer, s *monitoring.StatusSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	store := "online"
	if !s.StoreOnline {
		store = "offline: " + s.StoreError
	}
	_, _ = fmt.Fprintf(w, "STORE\t%s\n", store)
	_, _ = fmt.Fprintf(w, "BREAKER\t%s (%d failures)\n", s.Breaker, s.BreakerFailures)
	_, _ = fmt.Fprintf(w, "COMPANIES\t%d\n", s.Companies)
	_, _ = fmt.Fprintf(w, "FLAGS\t%d\n", s.Flags)
	_, _ = fmt.Fprintf(w, "SUBMISSIONS\t%d\n", s.Submissions)
	writeCacheLine(w, "COMPANY CACHE", s.CompanyCache)
	writeCacheLine(w, "CATALOG CACHE", s.CatalogCache)
	_ = w.Flush()
}

func writeCacheLine(w io.Writer, label string, st snapcache.Stats) {
	_, _ = fmt.Fprintf(w, "%s\t%s, %d items, %d hits, %d misses, %d failures\n",
		label, st.State, st.Items, st.Hits, st.Misses, st.Failures)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
