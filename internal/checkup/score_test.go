package checkup

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-checkup/internal/catalog"
	"github.com/sells-group/interview-checkup/internal/company"
)

func board() []catalog.RedFlag {
	cats := []catalog.Category{
		catalog.Culture, catalog.Culture, catalog.Role,
		catalog.Role, catalog.Culture, catalog.Process,
		catalog.Stability, catalog.Leadership, catalog.Culture,
	}
	flags := make([]catalog.RedFlag, 9)
	for i := range flags {
		sev := catalog.Light
		if i%4 == 0 {
			sev = catalog.Medium
		}
		flags[i] = catalog.RedFlag{ID: fmt.Sprintf("f%d", i), Text: fmt.Sprintf("flag %d", i), Category: cats[i], Severity: sev}
	}
	return flags
}

func ids(cells ...int) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprintf("f%d", c)
	}
	return out
}

func set(ids []string) map[string]bool {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestLines(t *testing.T) {
	assert.Equal(t, [][]int{
		{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
		{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
		{0, 4, 8}, {2, 4, 6},
	}, Lines)
}

func TestDetectBingo(t *testing.T) {
	all := ids(0, 1, 2, 3, 4, 5, 6, 7, 8)
	tests := []struct {
		name   string
		marked []string
		want   [][]int
	}{
		{"none", nil, nil},
		{"top row", ids(0, 1, 2), [][]int{{0, 1, 2}}},
		{"middle column", ids(1, 4, 7), [][]int{{1, 4, 7}}},
		{"diagonal", ids(0, 4, 8), [][]int{{0, 4, 8}}},
		{"anti-diagonal", ids(2, 4, 6), [][]int{{2, 4, 6}}},
		{"almost", ids(0, 1, 3, 5, 7), nil},
		{"row and column", ids(0, 1, 2, 3, 6), [][]int{{0, 1, 2}, {0, 3, 6}}},
		{"full board", all, Lines},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBingo(all, set(tt.marked)))
		})
	}
}

func TestDetectBingo_ShortBoard(t *testing.T) {
	short := ids(0, 1, 2, 3)
	assert.Equal(t, [][]int{{0, 1, 2}}, DetectBingo(short, set(short)))
	assert.Nil(t, DetectBingo(nil, set(ids(0, 1, 2))))
}

func TestDetectBingo_ResultIsACopy(t *testing.T) {
	all := ids(0, 1, 2, 3, 4, 5, 6, 7, 8)
	got := DetectBingo(all, set(ids(0, 1, 2)))
	got[0][0] = 99
	assert.Equal(t, 0, Lines[0][0])
}

func TestTally(t *testing.T) {
	b := board()
	assert.Equal(t, company.SeverityCounts{Light: 6, Medium: 3}, Tally(b))
	assert.Equal(t, company.SeverityCounts{}, Tally(nil))
}

func TestTopCategories(t *testing.T) {
	got := TopCategories(board())
	require.Len(t, got, 3)
	assert.Equal(t, CategoryCount{Category: catalog.Culture, Count: 4}, got[0])
	assert.Equal(t, CategoryCount{Category: catalog.Role, Count: 2}, got[1])
	// Process, Stability and Leadership tie at one; first seen wins.
	assert.Equal(t, CategoryCount{Category: catalog.Process, Count: 1}, got[2])

	assert.Empty(t, TopCategories(nil))
}

func TestScore(t *testing.T) {
	res := Score(board(), append(ids(0, 4, 8), "not-on-board"))

	assert.Len(t, res.Marked, 3)
	assert.Equal(t, 9, res.BoardSize)
	assert.True(t, res.Bingo)
	assert.Equal(t, [][]int{{0, 4, 8}}, res.Lines)
	assert.Equal(t, company.SeverityCounts{Medium: 3}, res.Severity)
	assert.Equal(t, []CategoryCount{{Category: catalog.Culture, Count: 3}}, res.TopCategories)
}

func TestScore_NothingMarked(t *testing.T) {
	res := Score(board(), nil)
	assert.False(t, res.Bingo)
	assert.NotNil(t, res.Lines)
	assert.NotNil(t, res.TopCategories)
	assert.Empty(t, res.Marked)
}

func TestReport(t *testing.T) {
	res := Score(board(), ids(0, 1, 2, 5))
	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

	out := Report(res, "Acme Inc", at)
	assert.True(t, strings.HasPrefix(out, "INTERVIEW CHECKUP RESULTS\n"))
	assert.Contains(t, out, "Marked 4 out of 9 red flags")
	assert.Contains(t, out, "Company: Acme Inc")
	assert.Contains(t, out, "BINGO! 1 line found")
	assert.Contains(t, out, "- Medium Red Flags: 1")
	assert.Contains(t, out, "- Light Red Flags: 3")
	assert.Contains(t, out, "Mostly around culture, role, process")
	assert.Contains(t, out, "1. flag 0\n2. flag 1\n3. flag 2\n4. flag 5\n")
	assert.Contains(t, out, "Generated at: 2026-10-15")
}

func TestReport_Anonymous(t *testing.T) {
	out := Report(Score(board(), nil), "  ", time.Now())
	assert.Contains(t, out, "Anonymous submission")
	assert.NotContains(t, out, "BINGO")
	assert.NotContains(t, out, "Mostly around")
}
