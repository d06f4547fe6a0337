package extract

import (
	"regexp"
	"strings"

	"github.com/docuvault/docscan/internal/models"
)

var (
	vendorLabelPattern = regexp.MustCompile(`(?im)^\s*(?:from|bill from|vendor|sold by|merchant)\s*[:\-]\s*(.+)$`)
	vendorNamePattern  = regexp.MustCompile(`^[A-Z][A-Za-z0-9&'.\- ]{2,40}$`)

	itemLinePattern = regexp.MustCompile(`(?m)^\s*(.{3,40}?)\s+(?:x\s?(\d{1,3})\s+|(\d{1,3})\s?x\s+)?[$€£]?\s*(\d{1,4}[.,]\d{2})\s*$`)

	addressPattern = regexp.MustCompile(`(?im)^.*\b\d{1,5}\s+[A-Za-z][A-Za-z ]+\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Platz|Straße|Strasse)\b\.?.*$`)

	numericNamePattern = regexp.MustCompile(`^[\d.,\s]+$`)
)

// Lines never taken as vendor or item names.
var fieldNoise = []string{
	"total", "subtotal", "tax", "vat", "change", "cash", "card",
	"balance", "amount", "invoice", "receipt ", "thank",
}

// extractVendor returns an explicit labeled vendor when present, otherwise
// the first capitalized name-like line near the top of the document.
func extractVendor(text string) string {
	if m := vendorLabelPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	lines := nonEmptyLines(text)
	limit := 6
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		candidate := strings.TrimSpace(line)
		if !vendorNamePattern.MatchString(candidate) {
			continue
		}
		if containsAny(strings.ToLower(candidate), fieldNoise) {
			continue
		}
		return candidate
	}
	return ""
}

// extractItems parses "name [quantity] price" lines, keeping plausible
// name lengths and dropping summary lines.
func extractItems(text string) []models.LineItem {
	var items []models.LineItem

	for _, m := range itemLinePattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) < 3 || containsAny(strings.ToLower(name), fieldNoise) {
			continue
		}
		// Pure numeric "names" are price columns, not items.
		if numericNamePattern.MatchString(name) {
			continue
		}

		item := models.LineItem{Name: name}
		if price, ok := parseAmountValue(m[4]); ok {
			item.Price = price
		}
		qty := m[2]
		if qty == "" {
			qty = m[3]
		}
		if qty != "" {
			item.Quantity = atoi(qty)
		}

		items = append(items, item)
	}

	return items
}

// extractLocation pulls the first address-like line, if any.
func extractLocation(text string) string {
	if m := addressPattern.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}
