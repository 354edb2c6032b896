// Crawl the machine-readable docbook edition of the DICOM standard and emit
// a schema JSON file per version for the validator: the SOP class table of
// PS3.4 B.5, the per-class IOD Modules and Functional Group Macros tables of
// PS3.3, and the attribute tables they reference.
package main

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/medatlas/dcmconform"
)

const docbookNS = "http://docbook.org/ns/docbook"

//// XML Parsing

type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",innerxml"`
	Nodes   []Node     `xml:",any"`
}

type NodeDict struct {
	Dict map[string]*Node
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)
}

func main() {
	versions := []string{"2013"}

	for _, year := range []string{"2014", "2015", "2016", "2017", "2019"} {
		for _, rev := range []string{"a", "b", "c"} {
			versions = append(versions, fmt.Sprintf("%s%s", year, rev))
		}
	}

	for _, version := range versions {
		extractDicom(version)
	}
}

func extractDicom(version string) {
	linkLookup := map[string]*NodeDict{}

	for part := 1; part < 22; part++ {
		url := ""
		if version == "2013" {
			url = fmt.Sprintf("http://dicom.nema.org/dicom/%s/source/docbook/part%02d/part%02d.xml", version, part, part)
		} else {
			url = fmt.Sprintf("http://dicom.nema.org/medical/dicom/%s/source/docbook/part%02d/part%02d.xml", version, part, part)
		}

		fmt.Fprintf(os.Stderr, "Fetching %s\n", url)
		resp, err := http.Get(url)
		if err != nil {
			panic(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			continue
		}

		decoder := xml.NewDecoder(resp.Body)
		var n Node

		if err = decoder.Decode(&n); err != nil {
			panic(err)
		}

		idMap := map[string]*Node{}
		walkNode([]Node{n}, func(n Node) bool {
			// Find the ID, if any
			id := ""
			for _, a := range n.Attrs {
				if a.Name.Space == "http://www.w3.org/XML/1998/namespace" && a.Name.Local == "id" {
					id = a.Value
					break
				}
			}

			if id != "" {
				if _, ok := idMap[id]; ok {
					fmt.Fprintf(os.Stderr, "XML element already in the ID map")
				} else {
					idMap[id] = &n
				}
			}

			return true
		})

		docId := ""
		for _, a := range n.Attrs {
			if a.Name.Space == "http://www.w3.org/XML/1998/namespace" && a.Name.Local == "id" {
				docId = a.Value
				break
			}
		}

		if docId == "" {
			fmt.Fprintf(os.Stderr, "Document has no id\n")
			continue
		}

		linkLookup[docId] = &NodeDict{idMap}
	}

	schema := dcmconform.SchemaDef{
		ClassDefs:  map[string]dcmconform.ClassDef{},
		ModuleDefs: map[string]dcmconform.ModuleDef{},
		MacroDefs:  map[string]dcmconform.MacroDef{},
	}

	part4 := linkLookup["PS3.4"]
	stdSopClsSctn := part4.Dict["sect_B.5"]
	stdSopClsTbl := findNodeByType(stdSopClsSctn, docbookNS, "table")

	walkNode([]Node{*stdSopClsTbl}, func(n Node) bool {
		if n.XMLName.Space == docbookNS && n.XMLName.Local == "tr" {
			cn, spu, sp := n.Nodes[0], n.Nodes[1], n.Nodes[2]

			if cn.XMLName.Space != docbookNS || cn.XMLName.Local != "td" {
				return true
			}

			ol := findNodeByType(&sp, docbookNS, "olink")
			sp = *ol

			className := cn.Nodes[0].Content
			classUid := sanitize(spu.Nodes[0].Content)

			doc := sp.Attrs[0].Value
			sect := sp.Attrs[1].Value
			part := linkLookup[doc]

			modtbl := findSectionTable(part, sect, " IOD Modules")
			if modtbl == nil {
				return true
			}

			class := dcmconform.ClassDef{Name: className}
			extractModules(&schema, part, modtbl, &class)

			if grptbl := findSectionTable(part, sect, " Functional Group Macros"); grptbl != nil {
				extractFunctionalGroups(&schema, part, grptbl, &class)
			}

			schema.ClassDefs[classUid] = class
		}
		return true
	})

	os.MkdirAll("../schemadata", 0700)

	out, err := os.Create(fmt.Sprintf("../schemadata/dicom-%s.json", version))
	if err != nil {
		panic(err)
	}
	defer out.Close()

	b, err := json.MarshalIndent(&schema, "", "\t")
	if err != nil {
		panic(err)
	}
	out.Write(b)

	fmt.Printf("DONE dicom-%s.json\n", version)
}

// findSectionTable walks the section and its numbered subsections until it
// finds a table whose caption ends with the given suffix. The standard is
// not consistent about which subsection carries which table, so the lookup
// mirrors the section layout heuristically.
func findSectionTable(part *NodeDict, sect, captionSuffix string) *Node {
	suffix := ""
	for i := 1; i < 12; i++ {
		sctn := part.Dict[sect+suffix]
		if sctn == nil {
			return nil
		}

		for _, tbl := range findNodesByType(sctn, docbookNS, "table") {
			if len(tbl.Nodes) > 0 && strings.HasSuffix(tbl.Nodes[0].Content, captionSuffix) {
				return tbl
			}
		}

		suffix = "." + strconv.Itoa(i)
	}
	return nil
}

// extractModules reads the IOD Modules table rows into the class and records
// every module's attribute definitions the first time it is seen.
func extractModules(schema *dcmconform.SchemaDef, part *NodeDict, modtbl *Node, class *dcmconform.ClassDef) {
	walkNode([]Node{*modtbl}, func(n Node) bool {
		if n.XMLName.Space != docbookNS || n.XMLName.Local != "tr" {
			return true
		}
		if len(n.Nodes) != 4 && len(n.Nodes) != 3 {
			return true
		}

		l := len(n.Nodes)
		mdl, ref, usg := n.Nodes[l-3], n.Nodes[l-2], n.Nodes[l-1]

		if mdl.XMLName.Space != docbookNS || mdl.XMLName.Local != "td" {
			return true
		}

		usage := dcmconform.ModuleUsage{Name: mdl.Nodes[0].Content}
		usage.Usage, usage.ConditionText = splitUsage(usg.Nodes[0].Content)
		class.Modules = append(class.Modules, usage)

		if _, ok := schema.ModuleDefs[usage.Name]; ok {
			return true
		}

		r := findNodeByType(&ref, docbookNS, "xref")
		if r == nil {
			return true
		}

		// Assumption that the reference is always same-document
		mdlsect := part.Dict[r.Attrs[0].Value]
		mdlattrtbl := findNodeByType(mdlsect, docbookNS, "table")

		if mdlattrtbl != nil && strings.HasSuffix(mdlattrtbl.Nodes[0].Content, "Module Attributes") {
			schema.ModuleDefs[usage.Name] = dcmconform.ModuleDef{
				Attributes: extractAttributes(part, mdlattrtbl),
			}
		}

		return true
	})
}

// extractFunctionalGroups reads the Functional Group Macros table rows into
// the class and records every macro's attribute definitions the first time
// it is seen.
func extractFunctionalGroups(schema *dcmconform.SchemaDef, part *NodeDict, grptbl *Node, class *dcmconform.ClassDef) {
	walkNode([]Node{*grptbl}, func(n Node) bool {
		if n.XMLName.Space != docbookNS || n.XMLName.Local != "tr" {
			return true
		}
		if len(n.Nodes) != 3 {
			return true
		}

		mcr, ref, usg := n.Nodes[0], n.Nodes[1], n.Nodes[2]

		if mcr.XMLName.Space != docbookNS || mcr.XMLName.Local != "td" {
			return true
		}

		name := strings.TrimSuffix(strings.TrimSpace(sanitize(cellText(mcr))), " Macro")
		if name == "" {
			return true
		}

		usage := dcmconform.MacroUsage{Name: name}
		usage.Usage, usage.ConditionText = splitUsage(cellText(usg))
		class.FunctionalGroups = append(class.FunctionalGroups, usage)

		if _, ok := schema.MacroDefs[name]; ok {
			return true
		}

		r := findNodeByType(&ref, docbookNS, "xref")
		if r == nil {
			return true
		}

		mcrsect := part.Dict[r.Attrs[0].Value]
		mcrattrtbl := findNodeByType(mcrsect, docbookNS, "table")

		if mcrattrtbl != nil && strings.HasSuffix(mcrattrtbl.Nodes[0].Content, "Macro Attributes") {
			schema.MacroDefs[name] = dcmconform.MacroDef{
				Attributes: extractAttributes(part, mcrattrtbl),
			}
		}

		return true
	})
}

// An attrRow is one attribute table row before nesting: the ">" depth of the
// first cell plus the definition itself.
type attrRow struct {
	level int
	attr  dcmconform.AttributeDef
}

// extractAttributes reads a module or macro attribute table into nested
// attribute definitions. Rows that include another table by reference are
// inlined at the row's nesting level; the sequence nesting itself comes from
// the ">" markers the standard puts in front of attribute names.
func extractAttributes(part *NodeDict, attrtbl *Node) []dcmconform.AttributeDef {
	rows := []attrRow{}

	var handler func(Node, int) bool
	handler = func(n Node, reflevel int) bool {
		if n.XMLName.Space != docbookNS || n.XMLName.Local != "tr" {
			return true
		}

		var level int
		if len(n.Nodes) > 0 {
			level = strings.Count(n.Nodes[0].Content, "&gt;") + reflevel
		}

		// Included macro
		if len(n.Nodes) == 1 || len(n.Nodes) == 2 {
			mcr := findNodeByType(&n, docbookNS, "xref")
			if mcr != nil {
				if level > 3 && mcr.Attrs[0].Value == "table_C.17-6" {
					// Special case of (0040,a730) that allows infinite recursion
					return true
				}
				mcrsect := part.Dict[mcr.Attrs[0].Value]
				mcrattrtbl := findNodeByType(mcrsect, docbookNS, "table")
				if mcrattrtbl != nil {
					walkNode([]Node{*mcrattrtbl}, func(n Node) bool { return handler(n, level) })
				}
			}
		}

		if len(n.Nodes) != 4 || (len(n.Nodes) > 0 && n.Nodes[0].XMLName.Local != "td") {
			return true
		}

		nm, tg, tp, desc := n.Nodes[0], n.Nodes[1], n.Nodes[2], n.Nodes[3]

		attr := dcmconform.AttributeDef{
			Name: strings.TrimLeft(strings.TrimSpace(sanitize(cellText(nm))), "> "),
			Type: strings.TrimSpace(cellText(tp)),
		}
		if strings.HasSuffix(attr.Type, "C") {
			attr.ConditionText = strings.TrimSpace(sanitize(cellText(desc)))
		}

		for _, t := range parseTagPattern(cellText(tg)) {
			attr.Tag = t
			rows = append(rows, attrRow{level: level, attr: attr})
		}

		return true
	}

	walkNode([]Node{*attrtbl}, func(n Node) bool { return handler(n, 0) })

	return nestAttributes(rows)
}

// nestAttributes folds the flat row list into a tree: a row at depth n
// becomes an item definition of the nearest preceding row at depth n-1.
func nestAttributes(rows []attrRow) []dcmconform.AttributeDef {
	type node struct {
		attr     dcmconform.AttributeDef
		children []*node
	}

	var flatten func(nodes []*node) []dcmconform.AttributeDef
	flatten = func(nodes []*node) []dcmconform.AttributeDef {
		var defs []dcmconform.AttributeDef
		for _, n := range nodes {
			d := n.attr
			if len(n.children) > 0 {
				d.Items = flatten(n.children)
			}
			defs = append(defs, d)
		}
		return defs
	}

	root := &node{}
	stack := []*node{root}
	for _, row := range rows {
		depth := row.level + 1
		if depth > len(stack) {
			depth = len(stack)
		}
		stack = stack[:depth]
		child := &node{attr: row.attr}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, child)
		stack = append(stack, child)
	}

	return flatten(root.children)
}

// splitUsage splits a usage cell like "C - Required if ..." into the usage
// code and the condition prose.
func splitUsage(s string) (usage, condition string) {
	pieces := strings.SplitN(sanitize(s), " - ", 2)
	usage = strings.TrimSpace(pieces[0])
	if len(pieces) == 2 {
		condition = strings.TrimSpace(pieces[1])
	}
	return usage, condition
}

// cellText returns the first leaf text of a table cell.
func cellText(cell Node) string {
	v := ""
	walkNode([]Node{cell}, func(n Node) bool {
		if v != "" {
			return false
		}
		if len(n.Nodes) == 0 && strings.TrimSpace(n.Content) != "" {
			v = n.Content
			return false
		}
		return true
	})
	return v
}

func walkNode(nodes []Node, f func(Node) bool) {
	for _, n := range nodes {
		if f(n) {
			walkNode(n.Nodes, f)
		}
	}
}

func findNodeByType(node *Node, space, local string) *Node {
	var match *Node

	walkNode([]Node{*node}, func(n Node) bool {
		if match == nil && n.XMLName.Space == space && n.XMLName.Local == local {
			match = &n
		}

		return true
	})

	return match
}

func findNodesByType(node *Node, space, local string) []*Node {
	var matches []*Node

	walkNode([]Node{*node}, func(n Node) bool {
		if n.XMLName.Space == space && n.XMLName.Local == local {
			matches = append(matches, &n)
		}

		return true
	})

	return matches
}

func parseTagPattern(pattern string) []dcmconform.Tag {
	pattern = strings.TrimSpace(pattern)

	if !strings.Contains(pattern, ",") {
		fmt.Printf("BAD TAG: %s\n", pattern)
		return []dcmconform.Tag{}
	}

	pieces := strings.Split(pattern, ",")

	if len(pieces) != 2 {
		fmt.Printf("BAD TAG: %s\n", pattern)
		return []dcmconform.Tag{}
	}

	g := strings.TrimSpace(strings.TrimPrefix(pieces[0], "("))
	el := strings.TrimSpace(strings.TrimSuffix(pieces[1], ")"))

	if g == "50xx" {
		// Curve patterns have been retired for a long time (2004)
		return []dcmconform.Tag{}
	}

	gs := []string{g}

	// Special repeating pattern for overlay group
	if g == "60xx" {
		gs = []string{}

		for i := 0; i < 16; i++ {
			for j := 0; j < 16; j++ {
				gs = append(gs, fmt.Sprintf("60%X%X", i, j))
			}
		}
	}

	tags := []dcmconform.Tag{}

	for _, gr := range gs {
		group, err := strconv.ParseUint(gr, 16, 16)
		if err != nil {
			fmt.Printf("BAD TAG: %s\n", pattern)
			return []dcmconform.Tag{}
		}
		element, err := strconv.ParseUint(el, 16, 16)
		if err != nil {
			fmt.Printf("BAD TAG: %s\n", pattern)
			return []dcmconform.Tag{}
		}

		tags = append(tags, dcmconform.Tag{Group: uint16(group), Element: uint16(element)})
	}

	return tags
}
