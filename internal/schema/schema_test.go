package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tturner/cipmaster/internal/layout"
)

const sampleXML = `<project>
  <assembly id="AS_MPU_DCU_DATA" subtype="OT_EO" size="128">
    <bool id="MPU_CRun" offset="0"/>
    <usint id="MPU_CTCMSAlive" offset="8"/>
    <udint id="MPU_CDateTimeSec" offset="16"/>
    <real id="MPU_CSpeed" offset="48"/>
    <uint id="MPU_CCounter" offset="80"/>
    <string id="MPU_CLabel" offset="96" length="4"/>
  </assembly>
  <assembly id="AS_DCU_MPU_DATA" subtype="TO" size="32">
    <bool id="DCU_SReady" offset="0"/>
    <uint id="DCU_SStatus" offset="16"/>
  </assembly>
</project>`

func writeSchema(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return path
}

func TestParse(t *testing.T) {
	doc, err := Parse("test.xml", []byte(sampleXML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.OTID != "AS_MPU_DCU_DATA" || doc.TOID != "AS_DCU_MPU_DATA" {
		t.Errorf("assembly IDs: got %q/%q", doc.OTID, doc.TOID)
	}
	if doc.OT.TotalBits != 128 || doc.TO.TotalBits != 32 {
		t.Errorf("sizes: got %d/%d bits, want 128/32", doc.OT.TotalBits, doc.TO.TotalBits)
	}

	var alive *layout.FieldSpec
	for i := range doc.OT.Fields {
		if doc.OT.Fields[i].ID == "MPU_CTCMSAlive" {
			alive = &doc.OT.Fields[i]
		}
	}
	if alive == nil {
		t.Fatalf("MPU_CTCMSAlive not in compiled layout")
	}
	if alive.Type != layout.TypeUSINT || alive.BitOffset != 8 {
		t.Errorf("MPU_CTCMSAlive: got type %s offset %d", alive.Type, alive.BitOffset)
	}
}

func TestParseRejectsMissingAssembly(t *testing.T) {
	xmlData := `<project><assembly id="A" subtype="OT_EO" size="8"><usint id="x" offset="0"/></assembly></project>`
	if _, err := Parse("test.xml", []byte(xmlData)); !errors.Is(err, ErrBadAssembly) {
		t.Fatalf("got %v, want ErrBadAssembly", err)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	xmlData := `<project>
  <assembly id="A" subtype="OT_EO" size="8"><word id="x" offset="0"/></assembly>
  <assembly id="B" subtype="TO" size="8"><usint id="y" offset="0"/></assembly>
</project>`
	if _, err := Parse("test.xml", []byte(xmlData)); err == nil {
		t.Fatalf("expected error for unknown field type")
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	file := writeSchema(t, dir, "project.xml", sampleXML)

	got, err := ResolvePath(dir)
	if err != nil {
		t.Fatalf("ResolvePath(dir) failed: %v", err)
	}
	if got != file {
		t.Errorf("resolved: got %q, want %q", got, file)
	}

	if got, err := ResolvePath(file); err != nil || got != file {
		t.Errorf("ResolvePath(file): got %q, %v", got, err)
	}
}

func TestResolvePathAmbiguous(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "a.xml", sampleXML)
	writeSchema(t, dir, "b.xml", sampleXML)

	if _, err := ResolvePath(dir); !errors.Is(err, ErrAmbiguousPath) {
		t.Fatalf("got %v, want ErrAmbiguousPath", err)
	}
}

func TestResolvePathEmptyDir(t *testing.T) {
	if _, err := ResolvePath(t.TempDir()); !errors.Is(err, ErrNoSchemaFile) {
		t.Fatalf("got %v, want ErrNoSchemaFile", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "project.xml", sampleXML)

	doc, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.OT == nil || doc.TO == nil {
		t.Fatalf("layouts missing from loaded document")
	}
}

func TestValidateOK(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "project.xml", sampleXML)

	report := Validate(dir)
	if !report.OK {
		t.Fatalf("report not OK: %+v", report.Checks)
	}
	last := report.Checks[len(report.Checks)-1]
	if last.Name != "Overall Status" || last.Status != StatusOK {
		t.Errorf("overall check: got %+v", last)
	}
}

func TestValidateBadXML(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "project.xml", "<project><assembly>")

	report := Validate(dir)
	if report.OK {
		t.Fatalf("expected failing report")
	}
}

func TestValidateOverlap(t *testing.T) {
	xmlData := `<project>
  <assembly id="A" subtype="OT_EO" size="16">
    <uint id="x" offset="0"/>
    <usint id="y" offset="8"/>
  </assembly>
  <assembly id="B" subtype="TO" size="8"><usint id="z" offset="0"/></assembly>
</project>`
	dir := t.TempDir()
	writeSchema(t, dir, "project.xml", xmlData)

	report := Validate(dir)
	if report.OK {
		t.Fatalf("expected overlap to fail validation")
	}
}
