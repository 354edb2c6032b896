package dcmconform

import (
	"fmt"
	"strings"

	"github.com/gradienthealth/dicom"
	"github.com/gradienthealth/dicom/dicomtag"
)

// An Element is one attribute of a dataset item: either a list of
// string-rendered scalar values, or a list of nested items when the
// attribute is sequence-valued.
type Element struct {
	Tag      Tag
	Values   []string
	Items    []*Item
	Sequence bool
}

// NewValueElement builds a scalar element. No values means a zero-length
// element, which counts as present but empty.
func NewValueElement(t Tag, values ...string) *Element {
	return &Element{Tag: t, Values: values}
}

// NewSequenceElement builds a sequence element from its items.
func NewSequenceElement(t Tag, items ...*Item) *Element {
	return &Element{Tag: t, Items: items, Sequence: true}
}

// Empty reports whether the element carries no content: a zero-item
// sequence, or a scalar with no non-blank value. DICOM pads string values
// with spaces, so blank-only values count as empty.
func (e *Element) Empty() bool {
	if e.Sequence {
		return len(e.Items) == 0
	}
	for _, v := range e.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// An Item is one dataset scope: the top-level dataset itself, or a single
// item of a sequence. Validation never mutates an item.
type Item struct {
	elements map[Tag]*Element
}

func NewItem() *Item {
	return &Item{elements: map[Tag]*Element{}}
}

// Put records an element under its tag, replacing any earlier element with
// the same tag.
func (it *Item) Put(e *Element) {
	it.elements[e.Tag] = e
}

// Remove drops the element stored under the tag, if any.
func (it *Item) Remove(t Tag) {
	delete(it.elements, t)
}

// Element returns the element stored under the tag, if any.
func (it *Item) Element(t Tag) (*Element, bool) {
	e, ok := it.elements[t]
	return e, ok
}

// Has reports whether the item carries the tag at all, empty or not.
func (it *Item) Has(t Tag) bool {
	_, ok := it.elements[t]
	return ok
}

// Value returns the first scalar value of the tag with padding removed, or
// "" when the tag is absent, empty, or sequence-valued. Condition checks and
// SOP class resolution read values through here, so an unreadable attribute
// behaves like an absent one.
func (it *Item) Value(t Tag) string {
	e, ok := it.elements[t]
	if !ok || e.Sequence || len(e.Values) == 0 {
		return ""
	}
	return strings.TrimSpace(e.Values[0])
}

// FromParsedDataSet converts a dataset parsed by
// github.com/gradienthealth/dicom into the validator's item tree. Sequence
// items nest recursively; scalar values are rendered to strings.
func FromParsedDataSet(ds *dicom.DataSet) *Item {
	root := NewItem()
	for _, el := range ds.Elements {
		root.Put(convertElement(el))
	}
	return root
}

func convertElement(el *dicom.Element) *Element {
	t := Tag{Group: el.Tag.Group, Element: el.Tag.Element}
	if el.VR == "SQ" {
		conv := &Element{Tag: t, Sequence: true}
		for _, v := range el.Value {
			item, ok := v.(*dicom.Element)
			if !ok || item.Tag != dicomtag.Item {
				continue
			}
			sub := NewItem()
			for _, sv := range item.Value {
				se, ok := sv.(*dicom.Element)
				if !ok {
					continue
				}
				sub.Put(convertElement(se))
			}
			conv.Items = append(conv.Items, sub)
		}
		return conv
	}
	conv := &Element{Tag: t}
	for _, v := range el.Value {
		conv.Values = append(conv.Values, fmt.Sprint(v))
	}
	return conv
}
