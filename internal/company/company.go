// Package company resolves free-text company names to stored company records
// and folds checkup submissions into their statistics.
package company

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

var (
	// ErrInvalidInput is returned for a blank company name.
	ErrInvalidInput = eris.New("company: invalid input")

	// ErrNotFoundInCache marks a submission for a company the cache does not
	// hold. It is logged, never returned to callers.
	ErrNotFoundInCache = eris.New("company: not found in cache")
)

// SeverityCounts tallies flags per severity tier.
type SeverityCounts struct {
	Light  int `json:"light" validate:"gte=0"`
	Medium int `json:"medium" validate:"gte=0"`
}

// Add returns the tier-wise sum.
func (s SeverityCounts) Add(o SeverityCounts) SeverityCounts {
	return SeverityCounts{Light: s.Light + o.Light, Medium: s.Medium + o.Medium}
}

// Company is a stored company with aggregated checkup statistics.
type Company struct {
	ID             string   `json:"id"`
	Name           string   `json:"name" validate:"required,max=200"`
	NormalizedName string   `json:"normalizedName"`
	Aliases        []string `json:"aliases"`

	// Enrichment, sourced from imports and never changed by submissions.
	Website      string `json:"website,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Location     string `json:"location,omitempty"`
	Size         string `json:"company_size,omitempty"`
	Type         string `json:"company_type,omitempty"`
	FoundedYear  int    `json:"founded_year,omitempty" validate:"gte=0"`
	Specialities string `json:"specialities,omitempty"`
	Locations    string `json:"locations,omitempty"`

	SubmissionCount  int            `json:"submissionCount" validate:"gte=0"`
	CommonFlags      []string       `json:"commonFlags"`
	AverageFlagCount float64        `json:"averageFlagCount" validate:"gte=0"`
	SeverityTrends   SeverityCounts `json:"severityTrends"`
	LastSubmission   *time.Time     `json:"lastSubmission,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile is the input for creating a company with enrichment fields.
type Profile struct {
	Name         string
	Website      string
	Industry     string
	Location     string
	Size         string
	Type         string
	FoundedYear  int
	Specialities string
	Locations    string
}

// MatchType names the tier a search hit came from.
type MatchType string

// Match tiers, strongest first.
const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchAlias   MatchType = "alias"
	MatchFuzzy   MatchType = "fuzzy"
)

// Match is a ranked search hit.
type Match struct {
	Company Company   `json:"company"`
	Score   float64   `json:"relevanceScore"`
	Type    MatchType `json:"matchType"`
}

// fromDocument decodes and validates a stored company. Missing statistics
// decode as zero values and a missing normalized name is recomputed.
func fromDocument(doc store.Document, v *validation.Validator) (Company, error) {
	var c Company
	if err := doc.Decode(&c); err != nil {
		return Company{}, err
	}
	c.ID = doc.ID
	if c.NormalizedName == "" {
		c.NormalizedName = Normalize(c.Name)
	}
	if c.Aliases == nil {
		c.Aliases = []string{}
	}
	if c.CommonFlags == nil {
		c.CommonFlags = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = doc.CreatedAt
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = doc.UpdatedAt
	}
	if err := v.Validate(c); err != nil {
		return Company{}, eris.Wrapf(err, "company: document %s", doc.ID)
	}
	return c, nil
}

// createFields is the full body written for a new company.
func createFields(c Company) store.Fields {
	f := store.Fields{
		"name":             c.Name,
		"normalizedName":   c.NormalizedName,
		"aliases":          c.Aliases,
		"submissionCount":  c.SubmissionCount,
		"commonFlags":      c.CommonFlags,
		"averageFlagCount": c.AverageFlagCount,
		"severityTrends":   c.SeverityTrends,
		"createdAt":        c.CreatedAt,
		"updatedAt":        c.UpdatedAt,
	}
	for k, v := range map[string]string{
		"website":      c.Website,
		"industry":     c.Industry,
		"location":     c.Location,
		"company_size": c.Size,
		"company_type": c.Type,
		"specialities": c.Specialities,
		"locations":    c.Locations,
	} {
		if v != "" {
			f[k] = v
		}
	}
	if c.FoundedYear > 0 {
		f["founded_year"] = c.FoundedYear
	}
	return f
}
