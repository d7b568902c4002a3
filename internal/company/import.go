package company

import (
	"context"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interview-checkup/internal/fetcher"
)

// nameColumns are the header names tried, in order, for the company name.
var nameColumns = []string{"name", "company", "company_name", "organization", "org"}

// Name length bounds for imported rows, in runes.
const (
	minImportName = 2
	maxImportName = 100
)

// ImportOptions configures a CSV import.
type ImportOptions struct {
	Limit     int // 0 = no limit
	Delimiter rune
	DryRun    bool
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Rows    int `json:"rows"`
	Created int `json:"created"`
	Reused  int `json:"reused"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Import reads company rows from a CSV and resolves each through
// FindOrCreateProfile. Names are taken from the first known name column,
// falling back to the first column. Rows with out-of-range names and rows
// repeating an earlier normalized name are skipped.
func Import(ctx context.Context, r *Resolver, src io.Reader, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	rowCh, errCh := fetcher.StreamCSV(ctx, src, fetcher.CSVOptions{
		Delimiter:  opts.Delimiter,
		LazyQuotes: true,
	})

	seen := make(map[string]bool)
	warned := false
	for row := range rowCh {
		if opts.Limit > 0 && res.Created+res.Reused >= opts.Limit {
			continue
		}
		res.Rows++

		name := row.Get(nameColumns...)
		if name == "" && !hasNameColumn(row.Header) {
			if !warned {
				zap.L().Warn("company: no name column, using first column",
					zap.String("column", firstOr(row.Header)),
				)
				warned = true
			}
			name = row.First()
		}

		n := utf8.RuneCountInString(name)
		key := Normalize(name)
		if n < minImportName || n > maxImportName || key == "" || seen[key] {
			res.Skipped++
			continue
		}
		seen[key] = true

		if opts.DryRun {
			res.Created++
			continue
		}

		_, created, err := r.FindOrCreateProfile(ctx, profileFromRow(name, row))
		if err != nil {
			zap.L().Warn("company: import row failed",
				zap.Int("line", row.Line),
				zap.String("name", name),
				zap.Error(err),
			)
			res.Failed++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Reused++
		}
	}

	if err := <-errCh; err != nil {
		return res, eris.Wrap(err, "company: import")
	}

	zap.L().Info("company: import complete",
		zap.Int("rows", res.Rows),
		zap.Int("created", res.Created),
		zap.Int("reused", res.Reused),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func profileFromRow(name string, row fetcher.Row) Profile {
	p := Profile{
		Name:         name,
		Website:      row.Get("website", "url", "domain"),
		Industry:     row.Get("industry"),
		Location:     row.Get("location", "headquarters"),
		Size:         row.Get("company_size", "size"),
		Type:         row.Get("company_type", "type"),
		Specialities: row.Get("specialities", "specialties"),
		Locations:    row.Get("locations"),
	}
	if y, err := strconv.Atoi(row.Get("founded_year", "founded")); err == nil && y > 0 {
		p.FoundedYear = y
	}
	if p.Website != "" && !strings.Contains(p.Website, "://") {
		p.Website = "https://" + p.Website
	}
	return p
}

func hasNameColumn(header []string) bool {
	for _, h := range header {
		for _, c := range nameColumns {
			if h == c {
				return true
			}
		}
	}
	return false
}

func firstOr(header []string) string {
	if len(header) == 0 {
		return ""
	}
	return header[0]
}
