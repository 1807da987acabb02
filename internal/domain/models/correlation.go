package models

// CorrelationMethod selects the coefficient computed on aligned return series.
type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
)

// CorrelationPair is one retained entry of the cross-asset matrix (|Coefficient| above threshold).
type CorrelationPair struct {
	SymbolA      string            `json:"symbol_a"`
	SymbolB      string            `json:"symbol_b"`
	Coefficient  float64           `json:"correlation"`
	Method       CorrelationMethod `json:"method"`
	Observations int               `json:"observations"`
}

// CorrelationReport is the analyzer output, including the symbols left out of alignment.
type CorrelationReport struct {
	Method    CorrelationMethod `json:"method"`
	Threshold float64           `json:"threshold"`
	Symbols   []string          `json:"symbols"`
	Excluded  []string          `json:"excluded"`
	Aligned   int               `json:"aligned_observations"`
	Pairs     []CorrelationPair `json:"pairs"`
}
