package models

// RawField is one key/value pair returned by the extraction engine, with the
// engine's confidence for that field. Values are untyped strings until
// normalization coerces them.
type RawField struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// RawTable is a table detected in the document: one header row followed by
// body rows, all cells as raw strings.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// RawExtraction is the loosely-typed response of the extraction engine.
// It is treated as untrusted input; the normalize package is the only
// component that interprets it.
type RawExtraction struct {
	Fields  map[string]RawField `json:"fields"`
	Tables  []RawTable          `json:"tables,omitempty"`
	RawText string              `json:"raw_text,omitempty"`
}
