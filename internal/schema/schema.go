package schema

// XML assembly schema loading. A schema file declares two assemblies, the
// O->T ("OT_EO") and T->O ("TO") directions; each child element's tag names
// the CIP type:
//
//	<project>
//	  <assembly id="AS_MPU_DCU_DATA" subtype="OT_EO" size="128">
//	    <bool id="MPU_CRun" offset="0"/>
//	    <usint id="MPU_CTCMSAlive" offset="8"/>
//	  </assembly>
//	  <assembly id="AS_DCU_MPU_DATA" subtype="TO" size="128">...</assembly>
//	</project>

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tturner/cipmaster/internal/layout"
)

// Assembly subtypes.
const (
	SubtypeOT = "OT_EO"
	SubtypeTO = "TO"
)

var (
	// ErrNoSchemaFile reports a path that resolves to no XML file.
	ErrNoSchemaFile = errors.New("no schema file found")
	// ErrAmbiguousPath reports a directory holding more than one XML file.
	ErrAmbiguousPath = errors.New("schema directory holds more than one XML file")
	// ErrBadAssembly reports missing or duplicated assembly declarations.
	ErrBadAssembly = errors.New("invalid assembly declaration")
)

type xmlField struct {
	XMLName xml.Name
	ID      string `xml:"id,attr"`
	Offset  uint   `xml:"offset,attr"`
	Length  uint   `xml:"length,attr"`
}

type xmlAssembly struct {
	ID      string     `xml:"id,attr"`
	Subtype string     `xml:"subtype,attr"`
	Size    uint       `xml:"size,attr"`
	Fields  []xmlField `xml:",any"`
}

type xmlProject struct {
	Assemblies []xmlAssembly `xml:"assembly"`
}

// Document is a loaded and compiled schema.
type Document struct {
	Path string
	OTID string // assembly id attribute
	TOID string
	OT   *layout.PacketLayout
	TO   *layout.PacketLayout
}

// ResolvePath turns a schema argument into a concrete XML file. A directory
// resolves to the single .xml file inside it.
func ResolvePath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("schema path: %w", err)
	}

	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*.xml"))
		if err != nil {
			return "", fmt.Errorf("list schema directory: %w", err)
		}
		sort.Strings(matches)
		switch len(matches) {
		case 0:
			return "", fmt.Errorf("%w: no .xml file in %s", ErrNoSchemaFile, path)
		case 1:
			return matches[0], nil
		default:
			return "", fmt.Errorf("%w: %d files in %s", ErrAmbiguousPath, len(matches), path)
		}
	}

	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return "", fmt.Errorf("%w: %s is not an .xml file", ErrNoSchemaFile, path)
	}
	return path, nil
}

// Load resolves, parses and compiles a schema.
func Load(path string) (*Document, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(resolved, raw)
}

// Parse builds a Document from raw schema bytes.
func Parse(path string, raw []byte) (*Document, error) {
	var project xmlProject
	if err := xml.Unmarshal(raw, &project); err != nil {
		return nil, fmt.Errorf("parse schema XML: %w", err)
	}

	doc := &Document{Path: path}
	for _, a := range project.Assemblies {
		switch a.Subtype {
		case SubtypeOT:
			if doc.OT != nil {
				return nil, fmt.Errorf("%w: more than one %s assembly", ErrBadAssembly, SubtypeOT)
			}
			l, err := compileAssembly(a)
			if err != nil {
				return nil, err
			}
			doc.OT, doc.OTID = l, a.ID
		case SubtypeTO:
			if doc.TO != nil {
				return nil, fmt.Errorf("%w: more than one %s assembly", ErrBadAssembly, SubtypeTO)
			}
			l, err := compileAssembly(a)
			if err != nil {
				return nil, err
			}
			doc.TO, doc.TOID = l, a.ID
		}
	}

	if doc.OT == nil {
		return nil, fmt.Errorf("%w: missing %s assembly", ErrBadAssembly, SubtypeOT)
	}
	if doc.TO == nil {
		return nil, fmt.Errorf("%w: missing %s assembly", ErrBadAssembly, SubtypeTO)
	}
	return doc, nil
}

// compileAssembly converts one XML assembly into a compiled layout.
func compileAssembly(a xmlAssembly) (*layout.PacketLayout, error) {
	if len(a.Fields) == 0 {
		return nil, fmt.Errorf("%w: assembly %q declares no fields", ErrBadAssembly, a.ID)
	}

	specs := make([]layout.FieldSpec, 0, len(a.Fields))
	for _, f := range a.Fields {
		t, err := layout.ParseCipType(f.XMLName.Local)
		if err != nil {
			return nil, fmt.Errorf("assembly %q field %q: %w", a.ID, f.ID, err)
		}
		length := f.Length
		if length == 0 {
			length = 1
		}
		specs = append(specs, layout.FieldSpec{
			ID:        f.ID,
			BitOffset: f.Offset,
			Type:      t,
			Length:    length,
		})
	}

	l, err := layout.Compile(a.Subtype, a.Size, specs)
	if err != nil {
		return nil, fmt.Errorf("assembly %q: %w", a.ID, err)
	}
	return l, nil
}
