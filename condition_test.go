package dcmconform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medatlas/dcmconform"
)

func conditionScope() *dcmconform.Item {
	item := dcmconform.NewItem()
	item.Put(dcmconform.NewValueElement(tag(0x0008, 0x0060), "XA"))
	item.Put(dcmconform.NewValueElement(tag(0x0028, 0x0008), "3"))
	item.Put(dcmconform.NewValueElement(tag(0x0018, 0x0010))) // present, empty
	item.Put(dcmconform.NewSequenceElement(tag(0x0020, 0x9222)))
	return item
}

func TestConditionHolds(t *testing.T) {
	present := func(g, e uint16) *dcmconform.Condition {
		return &dcmconform.Condition{Op: dcmconform.CondPresent, Tag: tag(g, e)}
	}
	equals := func(g, e uint16, values ...string) *dcmconform.Condition {
		return &dcmconform.Condition{Op: dcmconform.CondEquals, Tag: tag(g, e), Values: values}
	}

	tests := []struct {
		name string
		cond *dcmconform.Condition
		want bool
	}{
		{"present", present(0x0008, 0x0060), true},
		{"present empty element", present(0x0018, 0x0010), true},
		{"absent", present(0x0008, 0x0070), false},
		{"equals match", equals(0x0008, 0x0060, "XA"), true},
		{"equals one of several", equals(0x0008, 0x0060, "XRF", "XA"), true},
		{"equals no match", equals(0x0008, 0x0060, "MR"), false},
		{"equals absent attribute", equals(0x0008, 0x0070, "X"), false},
		{"equals empty attribute", equals(0x0018, 0x0010, ""), false},
		{"equals sequence attribute", equals(0x0020, 0x9222, "3"), false},
		{"and both hold", &dcmconform.Condition{Op: dcmconform.CondAnd,
			Operands: []*dcmconform.Condition{present(0x0008, 0x0060), equals(0x0028, 0x0008, "3")}}, true},
		{"and one fails", &dcmconform.Condition{Op: dcmconform.CondAnd,
			Operands: []*dcmconform.Condition{present(0x0008, 0x0060), present(0x0008, 0x0070)}}, false},
		{"and no operands", &dcmconform.Condition{Op: dcmconform.CondAnd}, false},
		{"or one holds", &dcmconform.Condition{Op: dcmconform.CondOr,
			Operands: []*dcmconform.Condition{present(0x0008, 0x0070), equals(0x0008, 0x0060, "XA")}}, true},
		{"or none hold", &dcmconform.Condition{Op: dcmconform.CondOr,
			Operands: []*dcmconform.Condition{present(0x0008, 0x0070), equals(0x0008, 0x0060, "MR")}}, false},
		{"unknown operator", &dcmconform.Condition{Op: "matches"}, false},
		{"nil condition", nil, false},
	}

	scope := conditionScope()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Holds(scope))
		})
	}
}

func TestConditionHoldsNilScope(t *testing.T) {
	cond := &dcmconform.Condition{Op: dcmconform.CondPresent, Tag: tag(0x0008, 0x0060)}
	assert.False(t, cond.Holds(nil))
}
