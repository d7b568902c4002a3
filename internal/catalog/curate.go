package catalog

import (
	"math/rand/v2"
)

// BoardSize is the 3x3 checkup board.
const BoardSize = 9

// mediumShare returns how many of count flags are medium: a third, rounded up.
func mediumShare(count int) int {
	if count == BoardSize {
		return 3
	}
	return (count + 2) / 3
}

// Curate picks a severity-balanced board of count flags. Each severity is
// shuffled independently, the medium share and light remainder are taken
// from the front of each, and the selection is shuffled again. Shortfalls
// in either tier shrink the board rather than fail.
func Curate(flags []RedFlag, count int, rng *rand.Rand) []RedFlag {
	if count <= 0 {
		return []RedFlag{}
	}

	var medium, light []RedFlag
	for _, f := range flags {
		if !f.IsActive {
			continue
		}
		switch f.Severity {
		case Medium:
			medium = append(medium, f)
		case Light:
			light = append(light, f)
		}
	}
	shuffle(rng, medium)
	shuffle(rng, light)

	nMedium := mediumShare(count)
	nLight := count - nMedium

	board := make([]RedFlag, 0, count)
	board = append(board, medium[:min(nMedium, len(medium))]...)
	board = append(board, light[:min(nLight, len(light))]...)
	shuffle(rng, board)
	return board
}

func shuffle(rng *rand.Rand, flags []RedFlag) {
	rng.Shuffle(len(flags), func(i, j int) {
		flags[i], flags[j] = flags[j], flags[i]
	})
}
