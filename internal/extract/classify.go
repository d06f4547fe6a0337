package extract

import (
	"strings"

	"github.com/docuvault/docscan/internal/models"
)

// Keyword sets scored against fused OCR text, one per document type.
var typeKeywords = map[models.DocumentType][]string{
	models.DocTypeReceipt: {
		"receipt", "total", "subtotal", "cash", "change", "cashier",
		"thank you", "qty", "tender", "pos",
	},
	models.DocTypeInvoice: {
		"invoice", "bill to", "due date", "payment terms", "invoice number",
		"invoice no", "vat", "tax id", "remit", "net 30",
	},
	models.DocTypeIDCard: {
		"date of birth", "nationality", "passport", "license", "id number",
		"expiry", "expiration", "sex", "issued by",
	},
	models.DocTypeForm: {
		"application", "form", "please fill", "signature", "date signed",
		"section", "applicant",
	},
}

// classifyOrder fixes the scoring iteration and doubles as the tie-break:
// an equal score resolves to the earlier type.
var classifyOrder = []models.DocumentType{
	models.DocTypeReceipt,
	models.DocTypeInvoice,
	models.DocTypeIDCard,
	models.DocTypeForm,
}

// Filename hints used when keyword scoring is inconclusive, checked in
// order.
var filenameHints = []struct {
	hint    string
	docType models.DocumentType
}{
	{"receipt", models.DocTypeReceipt},
	{"invoice", models.DocTypeInvoice},
	{"passport", models.DocTypeIDCard},
	{"license", models.DocTypeIDCard},
	{"form", models.DocTypeForm},
}

// minKeywordScore is the lowest keyword count that counts as a positive
// classification.
const minKeywordScore = 2

// Classify scores the text against each type's keyword set; the highest
// score wins if it meets the threshold. Otherwise filename and line-count
// heuristics apply, and finally the type is unknown.
func Classify(text, filename string) models.DocumentType {
	lower := strings.ToLower(text)

	best := models.DocTypeUnknown
	bestScore := 0
	for _, docType := range classifyOrder {
		score := 0
		for _, kw := range typeKeywords[docType] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = docType
			bestScore = score
		}
	}
	if bestScore >= minKeywordScore {
		return best
	}

	lowerName := strings.ToLower(filename)
	for _, h := range filenameHints {
		if strings.Contains(lowerName, h.hint) {
			return h.docType
		}
	}

	// Dense short-line text with amounts reads like a register receipt.
	lines := nonEmptyLines(text)
	if len(lines) >= 8 && len(extractAmounts(text)) >= 2 && avgLineLength(lines) < 32 {
		return models.DocTypeReceipt
	}

	return models.DocTypeUnknown
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func avgLineLength(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	total := 0
	for _, line := range lines {
		total += len(line)
	}
	return total / len(lines)
}
