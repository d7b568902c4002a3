package company

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Inc", "acme"},
		{"The Acme Company, Inc.", "acme"},
		{"  ACME   corp  ", "acme"},
		{"Acme Holdings Group LLC", "acme"},
		{"Nestlé S.A.", "nestle sa"},
		{"AT&T Inc.", "att"},
		{"Procter & Gamble Co.", "procter gamble"},
		{"Hyphen-Ated Ltd", "hyphen-ated"},
		{"Incubator Labs", "incubator labs"},
		{"The Inc", ""},
		{"", ""},
		{"   ", ""},
		{"東京 Electric", "東京 electric"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"The Acme Company, Inc.", "Nestlé S.A.", "a b c", "Co-op Partners",
		"ℌello Corp", "Ｆｕｌｌｗｉｄｔｈ LLC", "  x  ", "Müller & Söhne GmbH",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_SuffixEquivalence(t *testing.T) {
	base := Normalize("Acme")
	for _, suffix := range []string{"Inc", "Inc.", "Corp", "Corporation", "LLC", "Ltd", "Limited", "Co", "Company", "Group", "Holdings", "Enterprises", "Ventures", "Partners", "Associates"} {
		assert.Equal(t, base, Normalize("Acme "+suffix), "suffix %q", suffix)
	}
}

func TestAliases_Website(t *testing.T) {
	got := Aliases("Acme Inc.", "https://www.acme.com")

	assert.Contains(t, got, "Acme Inc.")
	assert.Contains(t, got, "acme inc.")
	assert.Contains(t, got, "www.acme.com")
	assert.Contains(t, got, "acme.com")

	seen := make(map[string]bool)
	for _, a := range got {
		assert.NotEmpty(t, a)
		assert.False(t, seen[a], "duplicate alias %q", a)
		seen[a] = true
	}
}

func TestAliases_NoSuffix(t *testing.T) {
	assert.Equal(t, []string{"Globex", "globex"}, Aliases("  Globex ", ""))
}

func TestAliases_LowercaseNameDeduped(t *testing.T) {
	assert.Equal(t, []string{"initech"}, Aliases("initech", ""))
}

func TestAliases_SuffixStripped(t *testing.T) {
	got := Aliases("Acme Corp", "")
	assert.Equal(t, []string{"Acme Corp", "acme corp", "acme"}, got)
}

func TestAliases_InvalidWebsite(t *testing.T) {
	assert.Equal(t, []string{"Acme", "acme"}, Aliases("Acme", "not a url"))
	assert.Equal(t, []string{"Acme", "acme"}, Aliases("Acme", "acme.com"))
}

func TestAliases_HostWithoutWWW(t *testing.T) {
	got := Aliases("Acme", "https://acme.io/about")
	assert.Equal(t, []string{"Acme", "acme", "acme.io"}, got)
}

func TestAliases_HostEqualToName(t *testing.T) {
	got := Aliases("acme.com", "https://acme.com")
	assert.Equal(t, []string{"acme.com"}, got)
}

func TestAliases_EmptyName(t *testing.T) {
	assert.Nil(t, Aliases("  ", "https://acme.com"))
}
