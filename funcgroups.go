package dcmconform

import "fmt"

// The Frame Content macro is mandatory for every multi-frame object whether
// or not the class lists it among its expected macros.
const frameContentMacro = "Frame Content"

// validateFunctionalGroups applies the multi-frame functional group rules:
// the two container sequences are checked for presence and content at the
// top level, and every macro the class expects is checked against the shared
// item or against every per-frame item, wherever the data actually lives.
func (r *run) validateFunctionalGroups(mu ModuleUsage, macros []MacroUsage) error {
	def, ok := r.schema.ModuleDefs[mu.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModule, mu.Name)
	}

	// The container tags themselves, at the root scope.
	errs, err := r.evalAttributes(def.Attributes, r.dataset)
	if err != nil {
		return err
	}
	r.record(mu.Name, errs)

	shared := r.sharedItem()
	perFrame := r.perFrameItems()

	sawFrameContent := false
	for _, gu := range macros {
		if gu.Name == frameContentMacro {
			sawFrameContent = true
			gu.Usage = "M"
		}
		if err := r.evalMacroUsage(gu, shared, perFrame); err != nil {
			return err
		}
	}
	if !sawFrameContent {
		if _, ok := r.schema.MacroDefs[frameContentMacro]; ok {
			if err := r.evalMacroUsage(MacroUsage{Name: frameContentMacro, Usage: "M"}, shared, perFrame); err != nil {
				return err
			}
		} else if !r.tagInGroups(tagFrameContentSequence, shared, perFrame) {
			r.record(frameContentMacro, ErrorSet{missingMsg(tagFrameContentSequence): true})
		}
	}
	return nil
}

// sharedItem returns the single item of the shared functional groups
// sequence, or nil when the sequence is missing or empty.
func (r *run) sharedItem() *Item {
	el, ok := r.dataset.Element(tagSharedFunctionalGroups)
	if !ok || !el.Sequence || len(el.Items) == 0 {
		return nil
	}
	return el.Items[0]
}

func (r *run) perFrameItems() []*Item {
	el, ok := r.dataset.Element(tagPerFrameFunctionalGroups)
	if !ok || !el.Sequence {
		return nil
	}
	return el.Items
}

// evalMacroUsage checks one expected functional group macro. The macro may
// live in the shared item or in every per-frame item; populating it in both
// places at once duplicates per-frame state and is reported as not allowed.
func (r *run) evalMacroUsage(gu MacroUsage, shared *Item, perFrame []*Item) error {
	macro, ok := r.schema.MacroDefs[gu.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMacro, gu.Name)
	}
	inShared := shared != nil && r.hasAny(macro.Attributes, shared)
	framesWith := 0
	for _, item := range perFrame {
		if r.hasAny(macro.Attributes, item) {
			framesWith++
		}
	}

	var errs ErrorSet
	switch {
	case inShared && framesWith > 0:
		errs = ErrorSet{}
		for _, attr := range macro.Attributes {
			if !shared.Has(attr.Tag) {
				continue
			}
			for _, item := range perFrame {
				if item.Has(attr.Tag) {
					errs[notAllowedMsg(attr.Tag)] = true
					break
				}
			}
		}
	case inShared:
		sub, err := r.evalAttributes(macro.Attributes, shared)
		if err != nil {
			return err
		}
		errs = sub
	case framesWith > 0:
		// The macro chose the per-frame side, so every frame must carry it.
		errs = ErrorSet{}
		for _, item := range perFrame {
			sub, err := r.evalAttributes(macro.Attributes, item)
			if err != nil {
				return err
			}
			for msg := range sub {
				errs[msg] = true
			}
		}
	default:
		if !r.macroRequired(gu) {
			r.log.Debug("functional group macro not applicable", "macro", gu.Name, "usage", gu.Usage)
			return nil
		}
		// Absent from both sides: evaluating against an empty scope turns
		// every required attribute into a single missing entry.
		sub, err := r.evalAttributes(macro.Attributes, NewItem())
		if err != nil {
			return err
		}
		errs = sub
	}
	r.record(gu.Name, errs)
	r.log.Debug("functional group macro checked", "macro", gu.Name,
		"shared", inShared, "frames", framesWith, "errors", len(errs))
	return nil
}

// macroRequired reports whether a macro that is absent from both the shared
// and the per-frame groups is a violation.
func (r *run) macroRequired(gu MacroUsage) bool {
	switch gu.Usage {
	case "M":
		return true
	case "C":
		return gu.Condition.Holds(r.dataset)
	}
	return false
}

// tagInGroups reports whether the tag is populated in the shared item or in
// every per-frame item.
func (r *run) tagInGroups(t Tag, shared *Item, perFrame []*Item) bool {
	if shared != nil && shared.Has(t) {
		return true
	}
	if len(perFrame) == 0 {
		return false
	}
	for _, item := range perFrame {
		if !item.Has(t) {
			return false
		}
	}
	return true
}
