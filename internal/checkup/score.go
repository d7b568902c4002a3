// Package checkup scores a marked board and records checkup submissions.
package checkup

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/interview-checkup/internal/catalog"
	"github.com/sells-group/interview-checkup/internal/company"
)

// gridSize is the side of the square board.
const gridSize = 3

// Lines are the winning index triples of a 3x3 board: rows, columns, then
// the two diagonals.
var Lines = func() [][]int {
	var lines [][]int
	for r := range gridSize {
		lines = append(lines, []int{r * gridSize, r*gridSize + 1, r*gridSize + 2})
	}
	for c := range gridSize {
		lines = append(lines, []int{c, c + gridSize, c + 2*gridSize})
	}
	return append(lines, []int{0, 4, 8}, []int{2, 4, 6})
}()

// DetectBingo returns every line whose cells are all marked. board holds flag
// ids in cell order; cells beyond the end of board are never marked.
func DetectBingo(board []string, marked map[string]bool) [][]int {
	var hits [][]int
	for _, line := range Lines {
		complete := true
		for _, cell := range line {
			if cell >= len(board) || !marked[board[cell]] {
				complete = false
				break
			}
		}
		if complete {
			hits = append(hits, slices.Clone(line))
		}
	}
	return hits
}

// Tally counts marked flags per severity tier.
func Tally(flags []catalog.RedFlag) company.SeverityCounts {
	var c company.SeverityCounts
	for _, f := range flags {
		switch f.Severity {
		case catalog.Medium:
			c.Medium++
		case catalog.Light:
			c.Light++
		}
	}
	return c
}

// CategoryCount is one row of the category breakdown.
type CategoryCount struct {
	Category catalog.Category `json:"category"`
	Count    int              `json:"count"`
}

// TopCategories returns up to three categories by marked count. Ties keep
// first-seen order.
func TopCategories(flags []catalog.RedFlag) []CategoryCount {
	var out []CategoryCount
	index := make(map[catalog.Category]int)
	for _, f := range flags {
		i, ok := index[f.Category]
		if !ok {
			i = len(out)
			index[f.Category] = i
			out = append(out, CategoryCount{Category: f.Category})
		}
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b CategoryCount) int { return b.Count - a.Count })
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// Result is the scored outcome of one board.
type Result struct {
	Marked        []catalog.RedFlag      `json:"marked"`
	BoardSize     int                    `json:"boardSize"`
	Lines         [][]int                `json:"lines"`
	Bingo         bool                   `json:"bingo"`
	Severity      company.SeverityCounts `json:"severityBreakdown"`
	TopCategories []CategoryCount        `json:"topCategories"`
}

// Score evaluates marked ids against a board. Marked ids not on the board are
// ignored.
func Score(board []catalog.RedFlag, markedIDs []string) Result {
	set := make(map[string]bool, len(markedIDs))
	for _, id := range markedIDs {
		set[id] = true
	}

	ids := make([]string, len(board))
	marked := make([]catalog.RedFlag, 0, len(markedIDs))
	for i, f := range board {
		ids[i] = f.ID
		if set[f.ID] {
			marked = append(marked, f)
		}
	}

	lines := DetectBingo(ids, set)
	if lines == nil {
		lines = [][]int{}
	}
	top := TopCategories(marked)
	if top == nil {
		top = []CategoryCount{}
	}
	return Result{
		Marked:        marked,
		BoardSize:     len(board),
		Lines:         lines,
		Bingo:         len(lines) > 0,
		Severity:      Tally(marked),
		TopCategories: top,
	}
}

// Report renders a result as a plain-text summary.
func Report(res Result, companyName string, at time.Time) string {
	var b strings.Builder
	b.WriteString("INTERVIEW CHECKUP RESULTS\n\n")
	fmt.Fprintf(&b, "Marked %d out of %d red flags\n", len(res.Marked), res.BoardSize)
	if name := strings.TrimSpace(companyName); name != "" {
		fmt.Fprintf(&b, "Company: %s\n", name)
	} else {
		b.WriteString("Anonymous submission\n")
	}
	if n := len(res.Lines); n > 0 {
		suffix := ""
		if n > 1 {
			suffix = "s"
		}
		fmt.Fprintf(&b, "BINGO! %d line%s found\n", n, suffix)
	}

	b.WriteString("\nSEVERITY BREAKDOWN:\n")
	fmt.Fprintf(&b, "- Medium Red Flags: %d\n", res.Severity.Medium)
	fmt.Fprintf(&b, "- Light Red Flags: %d\n", res.Severity.Light)

	if len(res.TopCategories) > 0 {
		names := make([]string, len(res.TopCategories))
		for i, c := range res.TopCategories {
			names[i] = string(c.Category)
		}
		fmt.Fprintf(&b, "\nMostly around %s\n", strings.Join(names, ", "))
	}

	b.WriteString("\nRED FLAGS YOU IDENTIFIED:\n")
	for i, f := range res.Marked {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Text)
	}

	fmt.Fprintf(&b, "\nGenerated at: %s\n", at.Format("2006-01-02"))
	return b.String()
}
