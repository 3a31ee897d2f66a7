package importer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const brNumber = `(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2}`

var (
	// reMoney finds Brazilian money values inside a line: "1.234,56", "R$ 1.234,56",
	// "-R$ 1.234,56", "- R$ 1.234,56", "1.234,56-".
	reMoney = regexp.MustCompile(`-?\s*(?:R\$\s*)?` + brNumber + `-?`)

	// reMoneyToken matches a whitespace-delimited token holding only a money value.
	reMoneyToken = regexp.MustCompile(`^-?(?:R\$)?` + brNumber + `-?$`)

	reDateStart = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(.*)$`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// cleanSpaces collapses runs of whitespace and trims.
func cleanSpaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold upper-cases s and strips diacritics so "Lançamentos" matches "LANCAMENTOS".
func fold(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// splitDateLine splits "dd/mm/yyyy rest" lines.
func splitDateLine(line string) (date, rest string, ok bool) {
	m := reDateStart.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// moneySpans returns the positions of money values in s.
func moneySpans(s string) [][]int {
	return reMoney.FindAllStringIndex(s, -1)
}

// lastMoney returns the last money value in s.
func lastMoney(s string) (string, bool) {
	spans := moneySpans(s)
	if len(spans) == 0 {
		return "", false
	}
	last := spans[len(spans)-1]
	return cleanSpaces(s[last[0]:last[1]]), true
}

// containsAny reports whether folded s contains any of the folded markers.
func containsAny(s string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// hasAnyPrefix reports whether s starts with any of the prefixes.
func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
