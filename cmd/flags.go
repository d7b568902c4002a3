package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/catalog"
)

var (
	importFlagsFile string
	boardCount      int
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Manage the red flag catalog",
}

var flagsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Seed the red flag catalog from YAML",
	Long:  "Upserts red flags by id from a YAML seed file. Without --file the built-in starter catalog is loaded. Usage counts of seeded flags are reset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		flags, err := loadSeed(importFlagsFile)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Catalog.Seed(ctx, flags)
		if err != nil {
			return eris.Wrap(err, "flags import")
		}

		zap.L().Info("flags seeded",
			zap.Int("written", n),
			zap.String("file", importFlagsFile),
		)
		return nil
	},
}

var flagsBoardCmd = &cobra.Command{
	Use:   "board",
	Short: "Print a curated board",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		formatFlags(os.Stdout, env.Catalog.CuratedBoard(ctx, boardCount))
		return nil
	},
}

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active red flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		formatFlags(os.Stdout, env.Catalog.All(ctx))
		return nil
	},
}

func loadSeed(path string) ([]catalog.RedFlag, error) {
	if path == "" {
		return catalog.DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open seed file")
	}
	defer f.Close() //nolint:errcheck
	return catalog.ParseSeed(f)
}

// formatFlags writes a tabular representation of flags to out.
func formatFlags(out io.Writer, flags []catalog.RedFlag) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tUSES\tTEXT")
	_, _ = fmt.Fprintln(w, "--\t--------\t--------\t----\t----")

	for _, f := range flags {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", f.ID, f.Severity, f.Category, f.UsageCount, f.Text)
	}
	_ = w.Flush()
}

func init() {
	flagsImportCmd.Flags().StringVar(&importFlagsFile, "file", "", "YAML seed file (default built-in catalog)")
	flagsBoardCmd.Flags().IntVar(&boardCount, "count", catalog.BoardSize, "number of flags on the board")

	flagsCmd.AddCommand(flagsImportCmd, flagsBoardCmd, flagsListCmd)
	rootCmd.AddCommand(flagsCmd)
}
