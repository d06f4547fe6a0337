package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/docuvault/docscan/internal/models"
)

// Arabic-Indic and Eastern Arabic-Indic digits mapped to ASCII so numeric
// date parsing works for right-to-left locales.
var digitMap = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

func normalizeDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if mapped, ok := digitMap[r]; ok {
			return mapped
		}
		return r
	}, text)
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January, "januar": time.January, "janvier": time.January, "يناير": time.January,
	"february": time.February, "feb": time.February, "februar": time.February, "février": time.February, "فبراير": time.February,
	"march": time.March, "mar": time.March, "märz": time.March, "mars": time.March, "مارس": time.March,
	"april": time.April, "apr": time.April, "avril": time.April, "أبريل": time.April,
	"may": time.May, "mai": time.May, "مايو": time.May,
	"june": time.June, "jun": time.June, "juni": time.June, "juin": time.June, "يونيو": time.June,
	"july": time.July, "jul": time.July, "juli": time.July, "juillet": time.July, "يوليو": time.July,
	"august": time.August, "aug": time.August, "août": time.August, "أغسطس": time.August,
	"september": time.September, "sep": time.September, "septembre": time.September, "سبتمبر": time.September,
	"october": time.October, "oct": time.October, "oktober": time.October, "octobre": time.October, "أكتوبر": time.October,
	"november": time.November, "nov": time.November, "novembre": time.November, "نوفمبر": time.November,
	"december": time.December, "dec": time.December, "dezember": time.December, "décembre": time.December, "ديسمبر": time.December,
}

var (
	isoDatePattern     = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})\b`)
	monthNamePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})\.?\s+([\p{L}]+)\.?\s+(\d{4})\b|\b([\p{L}]+)\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
)

// Labels assigning semantic roles, checked in a window before the match.
var dateRoleLabels = []struct {
	role     models.DateRole
	keywords []string
}{
	{models.DateRoleDue, []string{"due", "fällig", "échéance", "استحقاق", "payable by"}},
	{models.DateRoleIssued, []string{"issued", "issue date", "invoice date", "date of issue", "ausgestellt", "صدر"}},
	{models.DateRoleTransaction, []string{"transaction", "purchase", "paid", "sale", "order date"}},
}

const dateRoleWindow = 24

// extractDates parses numeric and month-name dates, including
// alternate-script digits, and tags each with a role from nearby labels.
func extractDates(text string) []models.DateField {
	normalized := normalizeDigits(text)
	lower := strings.ToLower(normalized)

	seen := make(map[time.Time]bool)
	var dates []models.DateField

	add := func(t time.Time, pos int) {
		if t.IsZero() || seen[t] {
			return
		}
		if t.Year() < 1990 || t.Year() > 2100 {
			return
		}
		seen[t] = true
		dates = append(dates, models.DateField{
			Date: t,
			Role: roleAt(lower, pos),
		})
	}

	for _, m := range isoDatePattern.FindAllStringSubmatchIndex(normalized, -1) {
		groups := isoDatePattern.FindStringSubmatch(normalized[m[0]:m[1]])
		t := buildDate(atoi(groups[1]), atoi(groups[2]), atoi(groups[3]))
		add(t, m[0])
	}

	for _, m := range numericDatePattern.FindAllStringSubmatchIndex(normalized, -1) {
		groups := numericDatePattern.FindStringSubmatch(normalized[m[0]:m[1]])
		day, month, year := atoi(groups[1]), atoi(groups[2]), atoi(groups[3])
		if year < 100 {
			year += 2000
		}
		// Disambiguate D/M vs M/D by whichever forms a valid date.
		if month > 12 && day <= 12 {
			day, month = month, day
		}
		t := buildDate(year, month, day)
		add(t, m[0])
	}

	for _, m := range monthNamePattern.FindAllStringSubmatchIndex(normalized, -1) {
		groups := monthNamePattern.FindStringSubmatch(normalized[m[0]:m[1]])
		var day, year int
		var name string
		if groups[1] != "" {
			day, name, year = atoi(groups[1]), groups[2], atoi(groups[3])
		} else {
			name, day, year = groups[4], atoi(groups[5]), atoi(groups[6])
		}
		month, ok := monthNames[strings.ToLower(name)]
		if !ok {
			continue
		}
		add(buildDate(year, int(month), day), m[0])
	}

	return dates
}

func roleAt(lower string, pos int) models.DateRole {
	start := pos - dateRoleWindow
	if start < 0 {
		start = 0
	}
	window := lower[start:pos]

	for _, entry := range dateRoleLabels {
		if containsAny(window, entry.keywords) {
			return entry.role
		}
	}
	return models.DateRoleUnknown
}

func buildDate(year, month, day int) time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow such as Feb 30.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}
	}
	return t
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
