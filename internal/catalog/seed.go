package catalog

import (
	"bytes"
	_ "embed"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/interview-checkup/internal/validation"
)

// seedFile is the YAML layout of a catalog seed.
type seedFile struct {
	Flags []seedFlag `yaml:"flags"`
}

type seedFlag struct {
	ID          string   `yaml:"id"`
	Text        string   `yaml:"text"`
	Category    Category `yaml:"category"`
	Severity    Severity `yaml:"severity"`
	Explanation string   `yaml:"explanation"`
	Tags        []string `yaml:"tags"`
	Active      *bool    `yaml:"active"`
	Priority    int      `yaml:"priority"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// ParseSeed reads flags from YAML. Flags are active unless `active: false`.
// A missing id is derived from the text. Every flag is validated and ids
// must be unique.
func ParseSeed(r io.Reader) ([]RedFlag, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, eris.New("catalog: empty seed")
		}
		return nil, eris.Wrap(err, "catalog: decode seed")
	}

	v := validation.New()
	seen := make(map[string]bool, len(file.Flags))
	flags := make([]RedFlag, 0, len(file.Flags))
	for i, s := range file.Flags {
		f := RedFlag{
			ID:          strings.TrimSpace(s.ID),
			Text:        strings.TrimSpace(s.Text),
			Category:    s.Category,
			Severity:    s.Severity,
			Explanation: strings.TrimSpace(s.Explanation),
			Tags:        s.Tags,
			IsActive:    s.Active == nil || *s.Active,
			Priority:    s.Priority,
		}
		if f.ID == "" {
			f.ID = slug(f.Text)
		}
		if err := v.Validate(f); err != nil {
			return nil, eris.Wrapf(err, "catalog: seed flag %d", i)
		}
		if f.ID == "" || seen[f.ID] {
			return nil, eris.Errorf("catalog: seed flag %d: duplicate or empty id %q", i, f.ID)
		}
		seen[f.ID] = true
		flags = append(flags, f)
	}
	return flags, nil
}

func slug(text string) string {
	s := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(text), "-"), "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}

//go:embed default_flags.yaml
var defaultSeed []byte

// DefaultSeed returns the built-in starter catalog.
func DefaultSeed() ([]RedFlag, error) {
	return ParseSeed(bytes.NewReader(defaultSeed))
}
