// Package catalog serves the red flag catalog and builds curated boards.
package catalog

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interview-checkup/internal/store"
	"github.com/sells-group/interview-checkup/internal/validation"
)

// Severity is a red flag's tier.
type Severity string

// Severity tiers.
const (
	Light  Severity = "light"
	Medium Severity = "medium"
)

// Category groups red flags by theme.
type Category string

// Categories.
const (
	Culture       Category = "culture"
	Leadership    Category = "leadership"
	Role          Category = "role"
	Process       Category = "process"
	Communication Category = "communication"
	Compensation  Category = "compensation"
	Stability     Category = "stability"
	Environment   Category = "environment"
)

// Categories lists every category in display order.
var Categories = []Category{
	Culture, Leadership, Role, Process, Communication, Compensation, Stability, Environment,
}

// RedFlag is one catalog entry.
type RedFlag struct {
	ID          string    `json:"id"`
	Text        string    `json:"text" validate:"required,max=300"`
	Category    Category  `json:"category" validate:"required,oneof=culture leadership role process communication compensation stability environment"`
	Severity    Severity  `json:"severity" validate:"required,oneof=light medium"`
	Explanation string    `json:"explanation,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	IsActive    bool      `json:"isActive"`
	UsageCount  int       `json:"usageCount" validate:"gte=0"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ErrInvalidFlag is returned when a new flag fails validation.
var ErrInvalidFlag = eris.New("catalog: invalid flag")

func fromDocument(doc store.Document, v *validation.Validator) (RedFlag, error) {
	var f RedFlag
	if err := doc.Decode(&f); err != nil {
		return RedFlag{}, err
	}
	f.ID = doc.ID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = doc.CreatedAt
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = doc.UpdatedAt
	}
	if err := v.Validate(f); err != nil {
		return RedFlag{}, eris.Wrapf(err, "catalog: document %s", doc.ID)
	}
	return f, nil
}

func flagFields(f RedFlag) store.Fields {
	fields := store.Fields{
		"text":       f.Text,
		"category":   f.Category,
		"severity":   f.Severity,
		"isActive":   f.IsActive,
		"usageCount": f.UsageCount,
		"priority":   f.Priority,
		"createdAt":  f.CreatedAt,
		"updatedAt":  f.UpdatedAt,
	}
	if f.Explanation != "" {
		fields["explanation"] = f.Explanation
	}
	if len(f.Tags) > 0 {
		fields["tags"] = f.Tags
	}
	return fields
}
