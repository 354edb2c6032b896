package dcmconform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// A SchemaDef holds one edition of the standard's object definitions: the
// IOD table, the module table, and the reusable macro table. A loaded schema
// is immutable and shared read-only by every validation run.
type SchemaDef struct {
	// Map of SOP Class UID to the class definition for that UID.
	ClassDefs map[string]ClassDef
	// Map of module name to the module's attribute definitions.
	ModuleDefs map[string]ModuleDef
	// Map of macro name to reusable attribute groups that are embedded in
	// sequence attributes, notably the functional group macros.
	MacroDefs map[string]MacroDef
}

// A ClassDef describes the name and module content of a valid DICOM
// instance of one SOP class.
type ClassDef struct {
	Name    string
	Modules []ModuleUsage
	// FunctionalGroups lists the macros this class expects inside the shared
	// and per-frame functional group sequences. Empty for single-frame
	// classes.
	FunctionalGroups []MacroUsage `json:",omitempty"`
}

// A module usage describes a module that is used as part of an SOP Class and
// how it is required.
type ModuleUsage struct {
	// Name provides a name to this module usage and also a key into the
	// SchemaDef.ModuleDefs to look up the attribute definitions.
	Name string
	// Usage is either "M" (mandatory), "U" (user optional), or "C"
	// (conditional).
	Usage string
	// Condition applies when Usage is "C" and is evaluated against the
	// top-level dataset. A conditional usage without a condition falls back
	// to optional handling.
	Condition *Condition `json:",omitempty"`
	// ConditionText preserves the standard's prose for conditions that have
	// no declarative Condition form.
	ConditionText string `json:",omitempty"`
	// Entity is the information entity grouping of the module (Patient,
	// Study, Series, Image).
	Entity string `json:",omitempty"`
}

// A macro usage describes a functional group macro expected by an SOP Class,
// with the same usage codes as ModuleUsage.
type MacroUsage struct {
	Name          string
	Usage         string
	Condition     *Condition `json:",omitempty"`
	ConditionText string     `json:",omitempty"`
}

// A module definition is the list of attribute usages that forms the module.
type ModuleDef struct {
	Attributes []AttributeDef
}

// A macro definition is a reusable list of attribute usages shared by
// several modules or functional group kinds.
type MacroDef struct {
	Attributes []AttributeDef
}

// An AttributeDef is a usage of one tag within a module or macro.
type AttributeDef struct {
	Tag  Tag
	Name string `json:",omitempty"`
	// Type of this usage:
	//   "1"  Required to be in the SOP Instance and shall have a valid value.
	//   "2"  Required to be in the SOP Instance but may be zero length.
	//   "3"  Optional. May or may not be included and could be zero length.
	//   "1C" Conditional. If the condition is met, behaves as Type 1;
	//        otherwise the tag is not sent.
	//   "2C" Conditional. If the condition is met, behaves as Type 2.
	Type string
	// Condition applies to the "1C" and "2C" types and is evaluated against
	// the scope the attribute lives in. A conditional type without a
	// condition is treated as optional.
	Condition *Condition `json:",omitempty"`
	// ConditionText preserves the standard's prose when the condition has no
	// declarative form.
	ConditionText string `json:",omitempty"`
	// Macro names a MacroDef describing the items of this sequence
	// attribute.
	Macro string `json:",omitempty"`
	// Items describes the items of this sequence attribute inline. At most
	// one of Macro and Items is set.
	Items []AttributeDef `json:",omitempty"`
}

// LoadSchema reads a schema definition in the JSON form produced by the
// crawl tool and verifies its internal references.
func LoadSchema(r io.Reader) (*SchemaDef, error) {
	var s SchemaDef
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSchemaFile reads and verifies a schema definition file.
func LoadSchemaFile(path string) (*SchemaDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := LoadSchema(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Verify checks that every module, macro, and condition operator the schema
// refers to actually exists. A schema that fails verification would produce
// misleading reports, so loading rejects it outright.
func (s *SchemaDef) Verify() error {
	for uid, class := range s.ClassDefs {
		for _, mu := range class.Modules {
			if _, ok := s.ModuleDefs[mu.Name]; !ok {
				return fmt.Errorf("class %s: %w: %q", uid, ErrUnknownModule, mu.Name)
			}
			if err := verifyCondition(mu.Condition); err != nil {
				return fmt.Errorf("class %s, module %q: %w", uid, mu.Name, err)
			}
		}
		for _, gu := range class.FunctionalGroups {
			if _, ok := s.MacroDefs[gu.Name]; !ok {
				return fmt.Errorf("class %s: %w: %q", uid, ErrUnknownMacro, gu.Name)
			}
			if err := verifyCondition(gu.Condition); err != nil {
				return fmt.Errorf("class %s, macro %q: %w", uid, gu.Name, err)
			}
		}
	}
	for name, m := range s.ModuleDefs {
		if err := s.verifyAttributes(name, m.Attributes); err != nil {
			return err
		}
	}
	for name, m := range s.MacroDefs {
		if err := s.verifyAttributes(name, m.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (s *SchemaDef) verifyAttributes(owner string, attrs []AttributeDef) error {
	for _, a := range attrs {
		if a.Macro != "" {
			if _, ok := s.MacroDefs[a.Macro]; !ok {
				return fmt.Errorf("%s, attribute %s: %w: %q", owner, a.Tag, ErrUnknownMacro, a.Macro)
			}
		}
		if err := verifyCondition(a.Condition); err != nil {
			return fmt.Errorf("%s, attribute %s: %w", owner, a.Tag, err)
		}
		if err := s.verifyAttributes(owner, a.Items); err != nil {
			return err
		}
	}
	return nil
}

// itemDefs resolves the nested item definitions of a sequence attribute,
// following a macro reference when one is named.
func (s *SchemaDef) itemDefs(attr AttributeDef) ([]AttributeDef, error) {
	if attr.Macro != "" {
		m, ok := s.MacroDefs[attr.Macro]
		if !ok {
			return nil, fmt.Errorf("attribute %s: %w: %q", attr.Tag, ErrUnknownMacro, attr.Macro)
		}
		return m.Attributes, nil
	}
	return attr.Items, nil
}
