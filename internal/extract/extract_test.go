package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/docscan/internal/models"
)

const sampleReceipt = `CORNER MARKET
123 Main Street
2024-03-15

Coffee beans x2 12.50
Milk 1L 2.49
Bread 3.99

Subtotal: $18.98
Tax: $1.52
Total: $20.50

Thank you for shopping!
Cashier: 04  Change: $0.00`

func TestClassifyReceipt(t *testing.T) {
	assert.Equal(t, models.DocTypeReceipt, Classify(sampleReceipt, "img_001.jpg"))
}

func TestClassifyInvoiceByKeywords(t *testing.T) {
	text := `INVOICE
Invoice Number: INV-2042
Bill To: Acme Corp
Due Date: 2024-04-01
Payment Terms: Net 30`
	assert.Equal(t, models.DocTypeInvoice, Classify(text, "img.jpg"))
}

func TestClassifyFallsBackToFilename(t *testing.T) {
	assert.Equal(t, models.DocTypeInvoice, Classify("short text", "scanned-invoice-march.jpg"))
}

func TestClassifyUnknown(t *testing.T) {
	assert.Equal(t, models.DocTypeUnknown, Classify("just a photo of a cat", "img.jpg"))
}

func TestClassifyTieIsDeterministic(t *testing.T) {
	// Two receipt keywords (tender, qty) and two invoice keywords
	// (invoice, vat): the earlier type in classifyOrder wins the tie,
	// every run.
	text := "tender qty invoice vat"
	for i := 0; i < 50; i++ {
		assert.Equal(t, models.DocTypeReceipt, Classify(text, "img.jpg"))
	}
}

func TestExtractReceiptTotalAmount(t *testing.T) {
	meta := extractReceiptMetadata("Items purchased\nTotal: $45.99\n")

	require.NotEmpty(t, meta.Amounts)
	total, ok := meta.TotalAmount()
	require.True(t, ok, "amount near a total keyword must be flagged")
	assert.InDelta(t, 45.99, total.Value, 1e-9)
	assert.Equal(t, "USD", total.Currency)
}

func TestExtractReceiptFull(t *testing.T) {
	meta := extractReceiptMetadata(sampleReceipt)

	assert.Equal(t, "CORNER MARKET", meta.Vendor)
	assert.Equal(t, "123 Main Street", meta.Location)

	total, ok := meta.TotalAmount()
	require.True(t, ok)
	assert.InDelta(t, 20.50, total.Value, 1e-9)

	require.NotEmpty(t, meta.Items)
	assert.Equal(t, "Coffee beans", meta.Items[0].Name)
	assert.Equal(t, 2, meta.Items[0].Quantity)
	assert.InDelta(t, 12.50, meta.Items[0].Price, 1e-9)

	require.NotEmpty(t, meta.Dates)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), meta.Dates[0].Date)
	assert.Equal(t, models.DateRoleTransaction, meta.Dates[0].Role)

	assert.Greater(t, meta.Confidence, 0.6)
	assert.LessOrEqual(t, meta.Confidence, 1.0)
}

func TestExtractInvoiceVendorLabel(t *testing.T) {
	text := `INVOICE
From: Initech Solutions GmbH
Invoice Date: 01.03.2024
Due: 31.03.2024
Total 1.234,56 EUR`

	meta := extractInvoiceMetadata(text)
	assert.Equal(t, "Initech Solutions GmbH", meta.Vendor)

	total, ok := meta.TotalAmount()
	require.True(t, ok)
	assert.InDelta(t, 1234.56, total.Value, 1e-9)
	assert.Equal(t, "EUR", total.Currency)

	require.Len(t, meta.Dates, 2)
	assert.Equal(t, models.DateRoleIssued, meta.Dates[0].Role)
	assert.Equal(t, models.DateRoleDue, meta.Dates[1].Role)
}

func TestExtractDatesArabicIndicDigits(t *testing.T) {
	dates := extractDates("التاريخ ٢٠٢٤-٠٣-١٥")
	require.Len(t, dates, 1)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), dates[0].Date)
}

func TestExtractDatesMonthNames(t *testing.T) {
	dates := extractDates("Issued: March 15, 2024 and due 2 April 2024")
	require.Len(t, dates, 2)
	assert.Equal(t, time.March, dates[0].Date.Month())
	assert.Equal(t, time.April, dates[1].Date.Month())
}

func TestExtractDatesRejectsInvalid(t *testing.T) {
	assert.Empty(t, extractDates("30.02.2024 or 45/99/2024"))
}

func TestGenericFallbackFixedConfidence(t *testing.T) {
	meta := Extract(models.DocTypeUnknown, "some text with $5.00 in it")
	assert.InDelta(t, genericConfidence, meta.Confidence, 1e-9)
	assert.NotEmpty(t, meta.Amounts)
}

func TestConfidenceAlwaysInRange(t *testing.T) {
	texts := []string{"", sampleReceipt, "no structure here", "Total: $1.00 Total: $2.00"}
	for _, docType := range []models.DocumentType{
		models.DocTypeReceipt, models.DocTypeInvoice, models.DocTypeIDCard,
		models.DocTypeForm, models.DocTypeUnknown,
	} {
		for _, text := range texts {
			meta := Extract(docType, text)
			assert.GreaterOrEqual(t, meta.Confidence, 0.0)
			assert.LessOrEqual(t, meta.Confidence, 1.0)
		}
	}
}

func TestKeywords(t *testing.T) {
	keywords := Keywords("market market market coffee coffee bread the and for", 2)
	assert.Equal(t, []string{"market", "coffee"}, keywords)
}
