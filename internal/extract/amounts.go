package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/docuvault/docscan/internal/models"
)

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
	"₪": "ILS",
	"﷼": "SAR",
}

// Symbol- or code-prefixed/suffixed numeric values.
var amountPattern = regexp.MustCompile(
	`([$€£¥₹₪﷼])\s*(\d{1,3}(?:[.,]\d{3})*[.,]\d{2}|\d+[.,]\d{2}|\d+)` +
		`|(\d{1,3}(?:[.,]\d{3})*[.,]\d{2}|\d+[.,]\d{2})\s*(USD|EUR|GBP|JPY|CHF|SEK|kr|[$€£¥₹₪﷼])`,
)

// totalKeywords flag an amount as the document total when found within a
// small window before the match.
var totalKeywords = []string{
	"total", "sum", "amount due", "balance due", "grand total", "gesamt",
	"somme", "المجموع",
}

const totalWindow = 32

// extractAmounts finds currency-tagged numeric values. An amount preceded
// (within totalWindow characters) by a total keyword is flagged IsTotal.
func extractAmounts(text string) []models.Amount {
	normalized := normalizeDigits(text)
	lower := strings.ToLower(normalized)

	var amounts []models.Amount
	for _, match := range amountPattern.FindAllStringSubmatchIndex(normalized, -1) {
		groups := amountPattern.FindStringSubmatch(normalized[match[0]:match[1]])
		if groups == nil {
			continue
		}

		var symbol, raw string
		if groups[1] != "" {
			symbol, raw = groups[1], groups[2]
		} else {
			raw, symbol = groups[3], groups[4]
		}

		value, ok := parseAmountValue(raw)
		if !ok {
			continue
		}

		currency := currencySymbols[symbol]
		if currency == "" {
			currency = strings.ToUpper(symbol)
			if currency == "KR" {
				currency = "SEK"
			}
		}

		windowStart := match[0] - totalWindow
		if windowStart < 0 {
			windowStart = 0
		}
		window := lower[windowStart:match[0]]

		// "subtotal" contains "total"; only a grand-total label overrides.
		isTotal := containsAny(window, totalKeywords)
		if strings.Contains(window, "subtotal") && !strings.Contains(window, "grand total") {
			isTotal = false
		}

		amounts = append(amounts, models.Amount{
			Value:    value,
			Currency: currency,
			IsTotal:  isTotal,
		})
	}

	return amounts
}

// parseAmountValue handles both 1,234.56 and 1.234,56 grouping styles.
func parseAmountValue(raw string) (float64, bool) {
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	cleaned := raw
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		// European style: dot groups, comma decimal.
		cleaned = strings.ReplaceAll(raw, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		cleaned = strings.ReplaceAll(raw, ",", "")
	case lastComma >= 0:
		// A lone comma followed by two digits is a decimal separator.
		if len(raw)-lastComma == 3 {
			cleaned = strings.Replace(raw, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(raw, ",", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
