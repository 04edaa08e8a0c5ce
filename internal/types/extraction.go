package types

// Extraction is the text recovered from an uploaded document
type Extraction struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// IsEmpty reports whether no text was recovered
func (e Extraction) IsEmpty() bool {
	return e.Text == ""
}
