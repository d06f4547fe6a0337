package models

// BoundingBox is a pixel-space rectangle for one recognized block.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Overlaps reports whether two boxes are within tolerance pixels of each
// other on both axes. Used by fusion when matching blocks across engines.
func (b BoundingBox) Overlaps(other BoundingBox, tolerance int) bool {
	dx := b.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := b.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return dx <= tolerance && dy <= tolerance
}

// OCRBlock 单个识别文本块
type OCRBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	IsRTL       bool        `json:"isRtl"`
	Language    string      `json:"language,omitempty"`
}

// OCRResult is one engine's output for one asset. Ephemeral.
type OCRResult struct {
	Text             string     `json:"text"`
	Confidence       float64    `json:"confidence"`
	Blocks           []OCRBlock `json:"blocks"`
	Languages        []string   `json:"languages,omitempty"`
	ProcessingTimeMs int64      `json:"processingTimeMs"`
	EngineName       string     `json:"engineName"`
}
