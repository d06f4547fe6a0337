// Package extract turns fused OCR text into typed metadata with a
// confidence score. Extraction is keyed by the classified document type;
// unknown documents get a reduced generic pass.
package extract

import (
	"github.com/docuvault/docscan/internal/models"
)

// genericConfidence is the fixed score for unclassified documents.
const genericConfidence = 0.3

// Per-type weights for the presence of each sub-signal. Summed and clamped
// to [0,1].
type weights struct {
	vendor   float64
	amounts  float64
	items    float64
	dates    float64
	location float64
}

var typeWeights = map[models.DocumentType]weights{
	models.DocTypeReceipt: {vendor: 0.2, amounts: 0.3, items: 0.3, dates: 0.1, location: 0.1},
	models.DocTypeInvoice: {vendor: 0.2, amounts: 0.3, items: 0.2, dates: 0.2, location: 0.1},
	models.DocTypeIDCard:  {vendor: 0.2, amounts: 0.2, items: 0.2, dates: 0.2, location: 0.1},
	models.DocTypeForm:    {vendor: 0.2, amounts: 0.2, items: 0.2, dates: 0.2, location: 0.1},
}

// Extract runs the type-specific extractor over the text.
func Extract(docType models.DocumentType, text string) models.ExtractedMetadata {
	switch docType {
	case models.DocTypeReceipt:
		return extractReceiptMetadata(text)
	case models.DocTypeInvoice:
		return extractInvoiceMetadata(text)
	case models.DocTypeIDCard, models.DocTypeForm:
		return extractStructured(docType, text)
	default:
		return extractGenericMetadata(text)
	}
}

func extractReceiptMetadata(text string) models.ExtractedMetadata {
	meta := models.ExtractedMetadata{
		Vendor:   extractVendor(text),
		Amounts:  extractAmounts(text),
		Items:    extractItems(text),
		Dates:    extractDates(text),
		Location: extractLocation(text),
	}
	// Receipts without an explicit role are transaction-dated.
	for i := range meta.Dates {
		if meta.Dates[i].Role == models.DateRoleUnknown {
			meta.Dates[i].Role = models.DateRoleTransaction
		}
	}
	meta.Confidence = scoreMetadata(models.DocTypeReceipt, meta)
	return meta
}

func extractInvoiceMetadata(text string) models.ExtractedMetadata {
	meta := models.ExtractedMetadata{
		Vendor:   extractVendor(text),
		Amounts:  extractAmounts(text),
		Items:    extractItems(text),
		Dates:    extractDates(text),
		Location: extractLocation(text),
	}
	meta.Confidence = scoreMetadata(models.DocTypeInvoice, meta)
	return meta
}

func extractStructured(docType models.DocumentType, text string) models.ExtractedMetadata {
	meta := models.ExtractedMetadata{
		Vendor:   extractVendor(text),
		Amounts:  extractAmounts(text),
		Dates:    extractDates(text),
		Location: extractLocation(text),
	}
	meta.Confidence = scoreMetadata(docType, meta)
	return meta
}

// extractGenericMetadata applies the reduced fallback pass for documents of
// unknown type, yielding a fixed low confidence.
func extractGenericMetadata(text string) models.ExtractedMetadata {
	return models.ExtractedMetadata{
		Vendor:     extractVendor(text),
		Amounts:    extractAmounts(text),
		Dates:      extractDates(text),
		Confidence: genericConfidence,
	}
}

func scoreMetadata(docType models.DocumentType, meta models.ExtractedMetadata) float64 {
	w, ok := typeWeights[docType]
	if !ok {
		return genericConfidence
	}

	score := 0.0
	if meta.Vendor != "" {
		score += w.vendor
	}
	if len(meta.Amounts) > 0 {
		score += w.amounts
	}
	if len(meta.Items) > 0 {
		score += w.items
	}
	if len(meta.Dates) > 0 {
		score += w.dates
	}
	if meta.Location != "" {
		score += w.location
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
