package dcmconform_test

import (
	"github.com/medatlas/dcmconform"
)

const enhancedXAUID = "1.2.840.10008.5.1.4.1.1.12.1.1"

func tag(group, element uint16) dcmconform.Tag {
	return dcmconform.Tag{Group: group, Element: element}
}

// testSchema builds a trimmed Enhanced X-Ray Angiographic Image edition:
// enough of the real IOD to exercise mandatory, conditional, and optional
// modules plus the functional group macros.
func testSchema() *dcmconform.SchemaDef {
	return &dcmconform.SchemaDef{
		ClassDefs: map[string]dcmconform.ClassDef{
			enhancedXAUID: {
				Name: "Enhanced X-Ray Angiographic Image Storage",
				Modules: []dcmconform.ModuleUsage{
					{Name: "Patient", Usage: "M", Entity: "Patient"},
					{Name: "Enhanced XA/XRF Image", Usage: "M", Entity: "Image"},
					{Name: "Contrast/Bolus", Usage: "C", Entity: "Image",
						Condition: &dcmconform.Condition{Op: dcmconform.CondPresent, Tag: tag(0x0018, 0x0010)}},
					{Name: "Cine", Usage: "U", Entity: "Image"},
					{Name: "SOP Common", Usage: "M", Entity: "Image"},
					{Name: "Multi-frame Functional Groups", Usage: "M", Entity: "Image"},
				},
				FunctionalGroups: []dcmconform.MacroUsage{
					{Name: "Frame Content", Usage: "M"},
					{Name: "Frame Anatomy", Usage: "M"},
					{Name: "Frame VOI LUT", Usage: "U"},
					{Name: "Referenced Image", Usage: "C",
						ConditionText: "Required if the image or frame has been planned on another image or frame."},
				},
			},
		},
		ModuleDefs: map[string]dcmconform.ModuleDef{
			"Patient": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0010, 0x0010), Name: "Patient's Name", Type: "2"},
				{Tag: tag(0x0010, 0x0020), Name: "Patient ID", Type: "2"},
				{Tag: tag(0x0010, 0x0030), Name: "Patient's Birth Date", Type: "2"},
				{Tag: tag(0x0010, 0x0040), Name: "Patient's Sex", Type: "2"},
			}},
			"Enhanced XA/XRF Image": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0008, 0x0008), Name: "Image Type", Type: "1"},
				{Tag: tag(0x0020, 0x0013), Name: "Instance Number", Type: "1"},
				{Tag: tag(0x0008, 0x0023), Name: "Content Date", Type: "1"},
				{Tag: tag(0x0008, 0x0033), Name: "Content Time", Type: "1"},
				{Tag: tag(0x0028, 0x0008), Name: "Number of Frames", Type: "1"},
			}},
			"Contrast/Bolus": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0018, 0x0010), Name: "Contrast/Bolus Agent", Type: "1"},
			}},
			"Cine": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0018, 0x1063), Name: "Frame Time", Type: "1"},
			}},
			"SOP Common": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0008, 0x0016), Name: "SOP Class UID", Type: "1"},
				{Tag: tag(0x0008, 0x0018), Name: "SOP Instance UID", Type: "1"},
			}},
			"Multi-frame Functional Groups": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x5200, 0x9229), Name: "Shared Functional Groups Sequence", Type: "1"},
				{Tag: tag(0x5200, 0x9230), Name: "Per-Frame Functional Groups Sequence", Type: "1"},
			}},
		},
		MacroDefs: map[string]dcmconform.MacroDef{
			"Frame Content": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0020, 0x9111), Name: "Frame Content Sequence", Type: "1", Items: []dcmconform.AttributeDef{
					{Tag: tag(0x0020, 0x9156), Name: "Frame Acquisition Number", Type: "3"},
					{Tag: tag(0x0020, 0x9157), Name: "Dimension Index Values", Type: "1C",
						ConditionText: "Required if the Dimension Index Sequence contains items."},
				}},
			}},
			"Frame Anatomy": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0020, 0x9071), Name: "Frame Anatomy Sequence", Type: "1", Items: []dcmconform.AttributeDef{
					{Tag: tag(0x0020, 0x9072), Name: "Frame Laterality", Type: "1"},
					{Tag: tag(0x0008, 0x2218), Name: "Anatomic Region Sequence", Type: "1", Macro: "Code Sequence"},
				}},
			}},
			"Frame VOI LUT": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0028, 0x9132), Name: "Frame VOI LUT Sequence", Type: "1", Items: []dcmconform.AttributeDef{
					{Tag: tag(0x0028, 0x1050), Name: "Window Center", Type: "1"},
					{Tag: tag(0x0028, 0x1051), Name: "Window Width", Type: "1"},
				}},
			}},
			"Referenced Image": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0008, 0x1140), Name: "Referenced Image Sequence", Type: "1", Items: []dcmconform.AttributeDef{
					{Tag: tag(0x0008, 0x1150), Name: "Referenced SOP Class UID", Type: "1"},
					{Tag: tag(0x0008, 0x1155), Name: "Referenced SOP Instance UID", Type: "1"},
				}},
			}},
			"Code Sequence": {Attributes: []dcmconform.AttributeDef{
				{Tag: tag(0x0008, 0x0100), Name: "Code Value", Type: "1"},
				{Tag: tag(0x0008, 0x0102), Name: "Coding Scheme Designator", Type: "1"},
				{Tag: tag(0x0008, 0x0104), Name: "Code Meaning", Type: "1"},
			}},
		},
	}
}

// baseDataSet builds the top-level attributes of an Enhanced XA instance
// with three frames, without any functional group content.
func baseDataSet() *dcmconform.Item {
	root := dcmconform.NewItem()
	root.Put(dcmconform.NewValueElement(tag(0x0008, 0x0016), enhancedXAUID))
	root.Put(dcmconform.NewValueElement(tag(0x0010, 0x0010), "XXX"))
	root.Put(dcmconform.NewValueElement(tag(0x0010, 0x0020), "ZZZ"))
	root.Put(dcmconform.NewValueElement(tag(0x0010, 0x0030)))
	root.Put(dcmconform.NewValueElement(tag(0x0010, 0x0040)))
	root.Put(dcmconform.NewValueElement(tag(0x0008, 0x0008), "DERIVED"))
	root.Put(dcmconform.NewValueElement(tag(0x0020, 0x0013), "1"))
	root.Put(dcmconform.NewValueElement(tag(0x0008, 0x0023), "20000101"))
	root.Put(dcmconform.NewValueElement(tag(0x0008, 0x0033), "120000"))
	root.Put(dcmconform.NewValueElement(tag(0x0028, 0x0008), "3"))
	root.Put(dcmconform.NewValueElement(tag(0x0008, 0x0018), "1.2.3.4.5.6.7.8"))
	return root
}

// withFunctionalGroups adds the two container sequences: one shared item
// holding the given elements (none means an empty sequence), and three
// per-frame items each holding a copy of the per-frame elements.
func withFunctionalGroups(root *dcmconform.Item, shared []*dcmconform.Element, perFrame func() []*dcmconform.Element) {
	var sharedItems []*dcmconform.Item
	if len(shared) > 0 {
		item := dcmconform.NewItem()
		for _, e := range shared {
			item.Put(e)
		}
		sharedItems = append(sharedItems, item)
	}
	root.Put(dcmconform.NewSequenceElement(tag(0x5200, 0x9229), sharedItems...))

	var frameItems []*dcmconform.Item
	if perFrame != nil {
		for i := 0; i < 3; i++ {
			item := dcmconform.NewItem()
			for _, e := range perFrame() {
				item.Put(e)
			}
			frameItems = append(frameItems, item)
		}
	}
	root.Put(dcmconform.NewSequenceElement(tag(0x5200, 0x9230), frameItems...))
}

func codeItem() *dcmconform.Item {
	item := dcmconform.NewItem()
	item.Put(dcmconform.NewValueElement(tag(0x0008, 0x0100), "T-D3000"))
	item.Put(dcmconform.NewValueElement(tag(0x0008, 0x0102), "SRT"))
	item.Put(dcmconform.NewValueElement(tag(0x0008, 0x0104), "Chest"))
	return item
}

func frameAnatomyElement() *dcmconform.Element {
	item := dcmconform.NewItem()
	item.Put(dcmconform.NewValueElement(tag(0x0020, 0x9072), "R"))
	item.Put(dcmconform.NewSequenceElement(tag(0x0008, 0x2218), codeItem()))
	return dcmconform.NewSequenceElement(tag(0x0020, 0x9071), item)
}

func frameVOILUTElement() *dcmconform.Element {
	item := dcmconform.NewItem()
	item.Put(dcmconform.NewValueElement(tag(0x0028, 0x1050), "7200"))
	item.Put(dcmconform.NewValueElement(tag(0x0028, 0x1051), "12800"))
	return dcmconform.NewSequenceElement(tag(0x0028, 0x9132), item)
}

func frameContentElement() *dcmconform.Element {
	item := dcmconform.NewItem()
	item.Put(dcmconform.NewValueElement(tag(0x0020, 0x9156), "1"))
	return dcmconform.NewSequenceElement(tag(0x0020, 0x9111), item)
}

// hasTagError reports whether the result carries the given kind of error
// ("missing", "empty", "not allowed") for the tag under the module name.
func hasTagError(result dcmconform.Result, module, tagStr, kind string) bool {
	set, ok := result[module]
	if !ok {
		return false
	}
	return set["Tag "+tagStr+" is "+kind]
}
