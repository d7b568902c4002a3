package company

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopWords are removed as whole words during normalization: legal entity
// suffixes and articles.
var stopWords = map[string]bool{
	"inc": true, "corp": true, "corporation": true, "llc": true,
	"ltd": true, "limited": true, "co": true, "company": true,
	"group": true, "holdings": true, "enterprises": true, "ventures": true,
	"partners": true, "associates": true,
	"the": true, "a": true, "an": true,
}

// suffixWords is stopWords without the articles, used for aliases.
var suffixWords = func() map[string]bool {
	m := make(map[string]bool, len(stopWords))
	for w := range stopWords {
		if w != "the" && w != "a" && w != "an" {
			m[w] = true
		}
	}
	return m
}()

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	wordRe       = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// Normalize converts a company name into its comparison key:
//
//	"The Acme Company, Inc." -> "acme"
//	"Nestlé S.A."            -> "nestle sa"
//
// It never fails and is idempotent.
func Normalize(name string) string {
	s := strings.ToLower(foldMarks(strings.TrimSpace(name)))
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = disallowedRe.ReplaceAllString(s, "")
	s = removeWords(s, stopWords)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// foldMarks decomposes accented letters and drops the combining marks.
func foldMarks(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFKD.String(s))
}

func removeWords(s string, words map[string]bool) string {
	return wordRe.ReplaceAllStringFunc(s, func(w string) string {
		if words[w] {
			return ""
		}
		return w
	})
}

// Aliases derives the alternate lookup strings for a company: the trimmed
// name, its lowercase form, the lowercase form without legal suffixes, and
// the website hostname with and without "www.". Empty and duplicate entries
// are dropped.
func Aliases(name, website string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if strings.TrimSpace(s) == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	lower := strings.ToLower(name)
	add(name)
	add(lower)

	stripped := strings.TrimSpace(whitespaceRe.ReplaceAllString(removeWords(lower, suffixWords), " "))
	if stripped != lower {
		add(stripped)
	}

	if host := websiteHost(website); host != "" && host != lower {
		add(host)
		if bare, ok := strings.CutPrefix(host, "www."); ok {
			add(bare)
		}
	}
	return out
}

// websiteHost returns the lowercase hostname of an absolute URL, or "".
func websiteHost(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	u, err := url.Parse(website)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
