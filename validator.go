// Package dcmconform checks parsed DICOM datasets against the Information
// Object Definitions of the standard: does a dataset contain the modules,
// attributes, and nested sequence structures its declared SOP class
// requires, with the right cardinality and under the right conditions.
//
// The validator operates purely on an in-memory Item tree and a loaded
// SchemaDef. Parsing DICOM byte streams and assembling schema editions are
// the concern of the cmd and crawl tools.
package dcmconform

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Result maps a module (or functional group macro) name to the set of
// distinct conformance error messages recorded against it. A name appears
// only when at least one check against it failed; a conformant dataset
// yields an empty result.
type Result map[string]ErrorSet

// ErrorSet is a set of error message texts. Stored values are always true.
type ErrorSet map[string]bool

// Knowledge-base integrity faults. A validation run that hits one of these
// aborts with the error instead of returning a misleading report.
var (
	ErrUnknownSOPClass = errors.New("unknown SOP class")
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownMacro    = errors.New("unknown macro")
	ErrBadCondition    = errors.New("unknown condition operator")
)

// The distinguished module whose evaluation spans the shared and per-frame
// functional group scopes.
const multiFrameGroupsModule = "Multi-frame Functional Groups"

// A Validator checks datasets against one loaded schema edition. The schema
// is read-only during validation, so a single Validator is safe for
// concurrent use from multiple goroutines.
type Validator struct {
	Schema *SchemaDef
	// Log receives per-module diagnostics. The handler's level controls how
	// much of the evaluation is narrated; the returned Result is always
	// complete regardless.
	Log *slog.Logger
}

// NewValidator builds a validator over the schema. A nil logger disables
// diagnostics.
func NewValidator(schema *SchemaDef, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{Schema: schema, Log: log}
}

// Validate checks the dataset against its declared SOP class and returns the
// conformance report. Conformance violations are always returned in the
// Result and never abort the traversal; a non-nil error means the schema
// itself is broken (an unknown class, module, or macro reference) and no
// report is produced.
func (v *Validator) Validate(dataset *Item) (Result, error) {
	uid := dataset.Value(tagSOPClassUID)
	class, ok := v.Schema.ClassDefs[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSOPClass, uid)
	}
	log := v.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log.Debug("validating dataset", "class", class.Name, "uid", uid)

	r := &run{schema: v.Schema, log: log, dataset: dataset, result: Result{}}
	for _, mu := range class.Modules {
		if mu.Name == multiFrameGroupsModule {
			if err := r.validateFunctionalGroups(mu, class.FunctionalGroups); err != nil {
				return nil, err
			}
			continue
		}
		if err := r.validateModuleUsage(mu); err != nil {
			return nil, err
		}
	}
	return r.result, nil
}

// A run is the state of one validation call: the dataset under test and the
// report being assembled. Runs share nothing, so parallel calls on one
// Validator do not interfere.
type run struct {
	schema  *SchemaDef
	log     *slog.Logger
	dataset *Item
	result  Result
}

// record merges a non-empty error set into the report under the given name.
func (r *run) record(name string, errs ErrorSet) {
	if len(errs) == 0 {
		return
	}
	set, ok := r.result[name]
	if !ok {
		set = ErrorSet{}
		r.result[name] = set
	}
	for msg := range errs {
		set[msg] = true
	}
}

func (r *run) validateModuleUsage(mu ModuleUsage) error {
	def, ok := r.schema.ModuleDefs[mu.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, mu.Name)
	}
	if !r.moduleApplies(mu, def) {
		r.log.Debug("module not applicable", "module", mu.Name, "usage", mu.Usage)
		return nil
	}
	errs, err := r.evalAttributes(def.Attributes, r.dataset)
	if err != nil {
		return err
	}
	r.record(mu.Name, errs)
	r.log.Debug("module checked", "module", mu.Name, "errors", len(errs))
	return nil
}

// moduleApplies decides whether a module is checked at all. Mandatory
// modules always are. A conditional module is checked when its condition
// holds against the dataset. Beyond that, any module the dataset actually
// carries attributes of is checked as found.
func (r *run) moduleApplies(mu ModuleUsage, def ModuleDef) bool {
	switch mu.Usage {
	case "M":
		return true
	case "C":
		if mu.Condition.Holds(r.dataset) {
			return true
		}
	}
	return r.hasAny(def.Attributes, r.dataset)
}

// hasAny reports whether the scope carries at least one of the attributes.
func (r *run) hasAny(attrs []AttributeDef, scope *Item) bool {
	for _, a := range attrs {
		if scope.Has(a.Tag) {
			return true
		}
	}
	return false
}

// evalAttributes checks every attribute definition against the scope and
// returns the merged error set. Identical messages produced by different
// sequence items collapse into a single entry.
func (r *run) evalAttributes(attrs []AttributeDef, scope *Item) (ErrorSet, error) {
	errs := ErrorSet{}
	for _, attr := range attrs {
		if err := r.evalAttribute(attr, scope, errs); err != nil {
			return nil, err
		}
	}
	return errs, nil
}

func (r *run) evalAttribute(attr AttributeDef, scope *Item, errs ErrorSet) error {
	el, present := scope.Element(attr.Tag)
	required, nonEmpty := requirement(attr, scope)
	if !present {
		if required {
			errs[missingMsg(attr.Tag)] = true
		}
		return nil
	}
	if el.Empty() {
		if required && nonEmpty {
			errs[emptyMsg(attr.Tag)] = true
		}
		return nil
	}
	items, err := r.schema.itemDefs(attr)
	if err != nil {
		return err
	}
	if len(items) == 0 || !el.Sequence {
		return nil
	}
	for _, item := range el.Items {
		sub, err := r.evalAttributes(items, item)
		if err != nil {
			return err
		}
		for msg := range sub {
			errs[msg] = true
		}
	}
	return nil
}

// requirement maps the attribute's type code to whether the attribute must
// be present in the scope and whether it must carry content. Conditions of
// the 1C/2C types are evaluated against the scope the attribute lives in; a
// conditional type without a declarative condition is treated as optional.
func requirement(attr AttributeDef, scope *Item) (required, nonEmpty bool) {
	switch attr.Type {
	case "1":
		return true, true
	case "2":
		return true, false
	case "1C":
		if attr.Condition.Holds(scope) {
			return true, true
		}
	case "2C":
		if attr.Condition.Holds(scope) {
			return true, false
		}
	}
	return false, false
}

func missingMsg(t Tag) string {
	return fmt.Sprintf("Tag %s is missing", t)
}

func emptyMsg(t Tag) string {
	return fmt.Sprintf("Tag %s is empty", t)
}

func notAllowedMsg(t Tag) string {
	return fmt.Sprintf("Tag %s is not allowed", t)
}
