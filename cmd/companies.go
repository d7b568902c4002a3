package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/company"
	"github.com/sells-group/interview-checkup/internal/fetcher"
)

var (
	importCompaniesCSV   string
	importCompaniesLimit int
	importCompaniesDelim string
	importCompaniesDry   bool
	searchCompaniesLimit int
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the companies collection",
}

var companiesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import companies from a CSV file or URL",
	Long:  "Reads company rows from a local CSV or an http(s) URL and resolves each name through find-or-create, so repeated and near-duplicate names reuse one record.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		delim, err := parseDelimiter(importCompaniesDelim)
		if err != nil {
			return err
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := fetcher.Open(ctx, importCompaniesCSV)
		if err != nil {
			return eris.Wrap(err, "companies import")
		}
		defer src.Close() //nolint:errcheck

		res, err := company.Import(ctx, env.Resolver, src, company.ImportOptions{
			Limit:     importCompaniesLimit,
			Delimiter: delim,
			DryRun:    importCompaniesDry,
		})
		if err != nil {
			return eris.Wrap(err, "companies import")
		}

		zap.L().Info("import complete",
			zap.String("csv", importCompaniesCSV),
			zap.Int("rows", res.Rows),
			zap.Int("created", res.Created),
			zap.Int("reused", res.Reused),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Bool("dry_run", importCompaniesDry),
		)
		return nil
	},
}

var companiesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search companies by name, alias or similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		limit := searchCompaniesLimit
		if limit == 0 {
			limit = cfg.Match.SearchLimit
		}
		matches := env.Resolver.SearchScored(ctx, strings.Join(args, " "), limit)
		if len(matches) == 0 {
			zap.L().Info("no matching companies")
			return nil
		}

		formatMatches(os.Stdout, matches)
		return nil
	},
}

// parseDelimiter accepts a single character, or "tab".
func parseDelimiter(s string) (rune, error) {
	switch {
	case s == "":
		return 0, nil
	case strings.EqualFold(s, "tab"):
		return '\t', nil
	case utf8.RuneCountInString(s) == 1:
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	default:
		return 0, eris.Errorf("delimiter must be a single character, got %q", s)
	}
}

// formatMatches writes a tabular representation of search hits to out.
func formatMatches(out io.Writer, matches []company.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tMATCH\tSCORE\tSUBMISSIONS\tAVG FLAGS")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t-----------\t---------")

	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%.1f\n",
			m.Company.ID,
			m.Company.Name,
			m.Type,
			m.Score,
			m.Company.SubmissionCount,
			m.Company.AverageFlagCount,
		)
	}
	_ = w.Flush()
}

func init() {
	companiesImportCmd.Flags().StringVar(&importCompaniesCSV, "csv", "", "path or http(s) URL of the CSV (required)")
	companiesImportCmd.Flags().IntVar(&importCompaniesLimit, "limit", 0, "stop after this many imported companies (0 = all)")
	companiesImportCmd.Flags().StringVar(&importCompaniesDelim, "delimiter", "", "field delimiter (default comma, \"tab\" for TSV)")
	companiesImportCmd.Flags().BoolVar(&importCompaniesDry, "dry-run", false, "parse and count rows without writing")
	_ = companiesImportCmd.MarkFlagRequired("csv")

	companiesSearchCmd.Flags().IntVar(&searchCompaniesLimit, "limit", 0, "max results (default from config)")

	companiesCmd.AddCommand(companiesImportCmd, companiesSearchCmd)
	rootCmd.AddCommand(companiesCmd)
}
