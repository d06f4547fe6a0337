package models

import (
	"time"
)

// DocumentType 文档类型
type DocumentType string

const (
	DocTypeReceipt DocumentType = "receipt"
	DocTypeInvoice DocumentType = "invoice"
	DocTypeIDCard  DocumentType = "id"
	DocTypeForm    DocumentType = "form"
	DocTypeUnknown DocumentType = "unknown"
)

// Known reports whether the type was positively classified.
func (t DocumentType) Known() bool {
	return t != DocTypeUnknown && t != ""
}

// Amount is one monetary value found in OCR text.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
	IsTotal  bool    `json:"isTotal,omitempty"`
}

// LineItem is one "name [quantity] price" row.
type LineItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
}

// DateRole classifies what a detected date refers to.
type DateRole string

const (
	DateRoleTransaction DateRole = "transaction"
	DateRoleDue         DateRole = "due"
	DateRoleIssued      DateRole = "issued"
	DateRoleUnknown     DateRole = "unknown"
)

// DateField is one detected date plus its semantic role.
type DateField struct {
	Date time.Time `json:"date"`
	Role DateRole  `json:"type"`
}

// ExtractedMetadata 从 OCR 文本中提取的结构化字段
type ExtractedMetadata struct {
	Vendor     string      `json:"vendor,omitempty"`
	Amounts    []Amount    `json:"amounts,omitempty"`
	Items      []LineItem  `json:"items,omitempty"`
	Dates      []DateField `json:"dates,omitempty"`
	Location   string      `json:"location,omitempty"`
	Confidence float64     `json:"confidence"`
}

// TotalAmount returns the first amount flagged as a total, if any.
func (m ExtractedMetadata) TotalAmount() (Amount, bool) {
	for _, a := range m.Amounts {
		if a.IsTotal {
			return a, true
		}
	}
	return Amount{}, false
}

// DocumentRecord is the persisted outcome of processing one unique asset.
// Immutable after handoff except for the user-editable fields covered by
// UpdateFields.
type DocumentRecord struct {
	ID           string            `json:"id"`
	ImageURI     string            `json:"imageUri"`
	ContentHash  string            `json:"contentHash"`
	OCRText      string            `json:"ocrText"`
	DocumentType DocumentType      `json:"documentType"`
	Metadata     ExtractedMetadata `json:"metadata"`
	Confidence   float64           `json:"confidence"`
	ProcessedAt  time.Time         `json:"processedAt"`
	Keywords     []string          `json:"keywords,omitempty"`
}

// DocumentFieldUpdate is the user-editable subset of a DocumentRecord.
type DocumentFieldUpdate struct {
	Vendor      *string  `json:"vendor,omitempty"`
	TotalAmount *float64 `json:"totalAmount,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
}
