package mapboxglstyle

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

type DiagnosticSeverity int

const (
	DiagnosticWarning DiagnosticSeverity = iota
	DiagnosticError
)

func (s DiagnosticSeverity) String() string {
	switch s {
	case DiagnosticWarning:
		return "warning"
	case DiagnosticError:
		return "error"
	default:
		return "unknown"
	}
}

func (s DiagnosticSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	// CodeUnresolvedProperty: the property matched no classification rule. It was kept as a paint property.
	CodeUnresolvedProperty = "UnresolvedProperty"
	// CodeUnknownLayerType: the layer type is not one the rules know about
	CodeUnknownLayerType = "UnknownLayerType"
	// CodeNotRestyleable: the property can't be changed on a layer that is already on the map
	CodeNotRestyleable = "NotRestyleable"
	CodeLayerNotAdded  = "LayerNotAdded"

	// CodeSourceOverridden: more than one source was given. The later one, in sorted property order, is kept.
	CodeSourceOverridden = "SourceOverridden"
)

type Diagnostic struct {
	Severity DiagnosticSeverity `json:"severity"`
	Code     string             `json:"code"`
	LayerID  string             `json:"layerId,omitempty"`
	Property string             `json:"property,omitempty"`
	Message  string             `json:"message"`
}

func (d Diagnostic) String() string {
	msg := fmt.Sprintf("[%s] %s", d.Code, d.Message)
	if d.Property != "" {
		msg = fmt.Sprintf("%q: %s", d.Property, msg)
	}
	if d.LayerID != "" {
		msg = fmt.Sprintf("layer %q: %s", d.LayerID, msg)
	}
	return msg
}

// Diagnostics collects the problems found while compiling a style.
// The compiler itself never fails; callers decide whether warnings are fatal.
type Diagnostics struct {
	Warnings []Diagnostic `json:"warnings"`
	Errors   []Diagnostic `json:"errors"`
}

func (d *Diagnostics) AddWarning(code, property, message string) {
	d.Warnings = append(d.Warnings, Diagnostic{Severity: DiagnosticWarning, Code: code, Property: property, Message: message})
}

func (d *Diagnostics) AddError(code, property, message string) {
	d.Errors = append(d.Errors, Diagnostic{Severity: DiagnosticError, Code: code, Property: property, Message: message})
}

func (d *Diagnostics) Merge(other Diagnostics) {
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Errors = append(d.Errors, other.Errors...)
}

// ForLayer returns a copy of the diagnostics, tagged with the layer they came from
func (d Diagnostics) ForLayer(layerID string) Diagnostics {
	tagged := Diagnostics{
		Warnings: make([]Diagnostic, len(d.Warnings)),
		Errors:   make([]Diagnostic, len(d.Errors)),
	}
	for i, item := range d.Warnings {
		item.LayerID = layerID
		tagged.Warnings[i] = item
	}
	for i, item := range d.Errors {
		item.LayerID = layerID
		tagged.Errors[i] = item
	}
	return tagged
}

func (d Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

func (d Diagnostics) IsEmpty() bool {
	return len(d.Warnings) == 0 && len(d.Errors) == 0
}

// Err returns the error diagnostics as one error, or nil if there are none.
// With strict set, warnings count as errors too.
func (d Diagnostics) Err(strict bool) errorsx.Error {
	items := d.Errors
	if strict {
		items = append(append([]Diagnostic{}, d.Errors...), d.Warnings...)
	}

	if len(items) == 0 {
		return nil
	}

	var parts []string
	for _, item := range items {
		parts = append(parts, item.String())
	}

	return errorsx.Errorf("style diagnostics: %s", strings.Join(parts, "; "))
}

func (d Diagnostics) String() string {
	var lines []string
	for _, item := range d.Errors {
		lines = append(lines, "error: "+item.String())
	}
	for _, item := range d.Warnings {
		lines = append(lines, "warning: "+item.String())
	}
	return strings.Join(lines, "\n")
}
