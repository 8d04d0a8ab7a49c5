package types

// Diagnostic is a single structured validation finding.
// Name is stable across releases, Data carries a typed payload for the caller to render.
type Diagnostic struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

// Diagnostics groups validation findings by severity, preserving the order they were produced in.
type Diagnostics struct {
	Errors    []Diagnostic `json:"errors"`
	Warnings  []Diagnostic `json:"warnings"`
	Notices   []Diagnostic `json:"notices"`
	Successes []Diagnostic `json:"successes"`
}

// NewDiagnostics returns empty, non-nil categories so results always serialize as arrays.
func NewDiagnostics() Diagnostics {
	return Diagnostics{
		Errors:    []Diagnostic{},
		Warnings:  []Diagnostic{},
		Notices:   []Diagnostic{},
		Successes: []Diagnostic{},
	}
}

// Merge appends other's findings after d's, category by category.
func (d Diagnostics) Merge(other Diagnostics) Diagnostics {
	return Diagnostics{
		Errors:    append(append([]Diagnostic{}, d.Errors...), other.Errors...),
		Warnings:  append(append([]Diagnostic{}, d.Warnings...), other.Warnings...),
		Notices:   append(append([]Diagnostic{}, d.Notices...), other.Notices...),
		Successes: append(append([]Diagnostic{}, d.Successes...), other.Successes...),
	}
}

// HasErrors reports whether the strategy is unsafe to submit.
func (d Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}
