// Package registry maps resource type identifiers to the closed set of
// resource kinds the store recognizes. The set is injected as configuration:
// there is no runtime class lookup, an unmapped identifier is simply invalid.
package registry

import (
	"errors"
	"fmt"
)

// ErrInvalidType indicates that a type identifier does not resolve to a
// recognized resource kind
var ErrInvalidType = errors.New("unrecognized resource type")

// Kind распознанный вид ресурса
type Kind string

// Встроенный набор видов ресурсов медицинской карты
const (
	KindPatient            Kind = "Patient"
	KindPractitioner       Kind = "Practitioner"
	KindObservation        Kind = "Observation"
	KindEncounter          Kind = "Encounter"
	KindCondition          Kind = "Condition"
	KindMedicationRequest  Kind = "MedicationRequest"
	KindAllergyIntolerance Kind = "AllergyIntolerance"
	KindImmunization       Kind = "Immunization"
	KindDiagnosticReport   Kind = "DiagnosticReport"
	KindProcedure          Kind = "Procedure"
)

// Registry хранит закрытое множество распознаваемых видов ресурсов
type Registry struct {
	kinds map[string]Kind
}

// New creates a registry recognizing exactly the given kinds
func New(kinds ...Kind) *Registry {
	m := make(map[string]Kind, len(kinds))
	for _, k := range kinds {
		m[string(k)] = k
	}
	return &Registry{kinds: m}
}

// Default returns a registry with the built-in health-record kinds
func Default() *Registry {
	return New(
		KindPatient,
		KindPractitioner,
		KindObservation,
		KindEncounter,
		KindCondition,
		KindMedicationRequest,
		KindAllergyIntolerance,
		KindImmunization,
		KindDiagnosticReport,
		KindProcedure,
	)
}

// Resolve maps a type identifier to its recognized kind.
// Returns ErrInvalidType if the identifier is not in the registry.
func (r *Registry) Resolve(identifier string) (Kind, error) {
	kind, ok := r.kinds[identifier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, identifier)
	}
	return kind, nil
}

// Kinds returns the recognized kinds in no particular order
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	return out
}
