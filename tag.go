package dcmconform

import (
	"fmt"
	"strconv"
	"strings"
)

// A Tag identifies a single DICOM attribute by its (group, element) pair.
type Tag struct {
	Group   uint16
	Element uint16
}

// String renders the tag in the report form, e.g. "(0020,9111)".
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// ParseTag parses a tag written as "(GGGG,EEEE)", with or without the
// surrounding parentheses.
func ParseTag(s string) (Tag, error) {
	pieces := strings.Split(strings.Trim(strings.TrimSpace(s), "()"), ",")
	if len(pieces) != 2 {
		return Tag{}, fmt.Errorf("malformed tag %q", s)
	}
	group, err := strconv.ParseUint(strings.TrimSpace(pieces[0]), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("malformed tag %q", s)
	}
	element, err := strconv.ParseUint(strings.TrimSpace(pieces[1]), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("malformed tag %q", s)
	}
	return Tag{Group: uint16(group), Element: uint16(element)}, nil
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	tag, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

// Tags with a fixed role in IOD validation.
var (
	tagSOPClassUID              = Tag{0x0008, 0x0016}
	tagSharedFunctionalGroups   = Tag{0x5200, 0x9229}
	tagPerFrameFunctionalGroups = Tag{0x5200, 0x9230}
	tagFrameContentSequence     = Tag{0x0020, 0x9111}
)
