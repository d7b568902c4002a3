package catalog

// Fallback is the built-in catalog served while the store cannot be read.
// It fills one full board.
func Fallback() []RedFlag {
	return []RedFlag{
		{ID: "fallback-1", Text: `They described the team as a "family"`, Category: Culture, Severity: Light,
			Explanation: `Often code for "we expect you to work overtime without complaint"`,
			Tags:        []string{"overtime", "boundaries"}, IsActive: true, Priority: 1},
		{ID: "fallback-2", Text: "Conflicting job descriptions from different interviewers", Category: Role, Severity: Medium,
			Explanation: "Nobody knows what you'll actually be doing",
			Tags:        []string{"confusion", "disorganization"}, IsActive: true, Priority: 2},
		{ID: "fallback-3", Text: "The interviewer was late and never apologized", Category: Communication, Severity: Light,
			Tags: []string{"respect"}, IsActive: true, Priority: 1},
		{ID: "fallback-4", Text: "Nobody could say why the last person left", Category: Stability, Severity: Medium,
			Tags: []string{"turnover"}, IsActive: true, Priority: 2},
		{ID: "fallback-5", Text: "Salary range was dodged every time you asked", Category: Compensation, Severity: Medium,
			Tags: []string{"transparency"}, IsActive: true, Priority: 2},
		{ID: "fallback-6", Text: `"We work hard and play hard"`, Category: Culture, Severity: Light,
			Tags: []string{"overtime"}, IsActive: true, Priority: 1},
		{ID: "fallback-7", Text: "Your future manager skipped the interview loop", Category: Leadership, Severity: Light,
			Tags: []string{"management"}, IsActive: true, Priority: 1},
		{ID: "fallback-8", Text: "Five or more interview rounds for a mid-level role", Category: Process, Severity: Light,
			Tags: []string{"process"}, IsActive: true, Priority: 1},
		{ID: "fallback-9", Text: "Interviewers looked exhausted or checked out", Category: Environment, Severity: Light,
			Tags: []string{"burnout"}, IsActive: true, Priority: 1},
	}
}
