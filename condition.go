package dcmconform

import "fmt"

// Condition operators.
const (
	CondPresent = "present"
	CondEquals  = "equals"
	CondAnd     = "and"
	CondOr      = "or"
)

// A Condition is a declarative usage condition evaluated against a dataset
// scope. Conditions are data rather than code, so a loaded schema stays
// shareable across concurrent validation runs.
type Condition struct {
	Op string
	// Tag applies to "present" and "equals".
	Tag Tag `json:",omitempty"`
	// Values apply to "equals": the condition holds when the attribute's
	// first value matches any of them.
	Values []string `json:",omitempty"`
	// Operands apply to "and" and "or".
	Operands []*Condition `json:",omitempty"`
}

// Holds evaluates the condition against the given scope. A missing or
// unreadable attribute never aborts the run; it simply makes the condition
// false.
func (c *Condition) Holds(scope *Item) bool {
	if c == nil || scope == nil {
		return false
	}
	switch c.Op {
	case CondPresent:
		return scope.Has(c.Tag)
	case CondEquals:
		v := scope.Value(c.Tag)
		if v == "" {
			return false
		}
		for _, want := range c.Values {
			if v == want {
				return true
			}
		}
		return false
	case CondAnd:
		for _, op := range c.Operands {
			if !op.Holds(scope) {
				return false
			}
		}
		return len(c.Operands) > 0
	case CondOr:
		for _, op := range c.Operands {
			if op.Holds(scope) {
				return true
			}
		}
		return false
	}
	return false
}

// verifyCondition rejects unknown operators at schema load time.
func verifyCondition(c *Condition) error {
	if c == nil {
		return nil
	}
	switch c.Op {
	case CondPresent, CondEquals:
		return nil
	case CondAnd, CondOr:
		for _, op := range c.Operands {
			if err := verifyCondition(op); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrBadCondition, c.Op)
}
