package formstate

// FieldTrace captures provenance for one field lookup across the sources the
// reconciler consulted during a load pass.
type FieldTrace struct {
	Field  string       `json:"field"`
	Source Source       `json:"source"`
	Value  any          `json:"value,omitempty"`
	Found  bool         `json:"found"`
	Pinned bool         `json:"pinned,omitempty"`
	Layers []Provenance `json:"layers"`
}

// Provenance details what one source held for a traced field.
type Provenance struct {
	Source Source `json:"source"`
	Value  any    `json:"value,omitempty"`
	Found  bool   `json:"found"`
}
