package schema

// Validation report for the `validate` command. Mirrors the check table the
// operators are used to: each step reports OK / FAILED / SKIPPED.

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Check statuses.
const (
	StatusOK      = "OK"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Check is one validation step outcome.
type Check struct {
	Name   string
	Status string
}

// Report is the outcome of validating a schema path.
type Report struct {
	Path   string // resolved file, empty when resolution failed
	Checks []Check
	OK     bool
}

func (r *Report) add(name, status string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status})
}

func failure(err error) string {
	return fmt.Sprintf("%s: %v", StatusFailed, err)
}

// Validate runs every configuration check against the schema path.
func Validate(path string) Report {
	var r Report

	resolved, err := ResolvePath(path)
	if err != nil {
		r.add("Resolve Schema Path", failure(err))
		r.add("Overall Status", StatusFailed)
		return r
	}
	r.Path = resolved
	r.add("Resolve Schema Path", StatusOK)

	if _, err := os.Stat(resolved); err != nil {
		r.add("Schema File Exists", StatusFailed)
	} else {
		r.add("Schema File Exists", StatusOK)
	}

	if strings.EqualFold(filepath.Ext(resolved), ".xml") {
		r.add("File Is XML", StatusOK)
	} else {
		r.add("File Is XML", StatusFailed)
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		r.add("Parse XML", failure(err))
		r.add("Overall Status", StatusFailed)
		return r
	}

	var project xmlProject
	if err := xml.Unmarshal(raw, &project); err != nil {
		r.add("Parse XML", failure(err))
		r.add(fmt.Sprintf("One Assembly With Subtype %q", SubtypeOT), StatusSkipped)
		r.add(fmt.Sprintf("One Assembly With Subtype %q", SubtypeTO), StatusSkipped)
		r.add("Overall Status", StatusFailed)
		return r
	}
	r.add("Parse XML", StatusOK)

	r.add(fmt.Sprintf("One Assembly With Subtype %q", SubtypeOT), checkSubtype(project, SubtypeOT))
	r.add(fmt.Sprintf("One Assembly With Subtype %q", SubtypeTO), checkSubtype(project, SubtypeTO))

	ok := true
	for _, c := range r.Checks {
		if c.Status != StatusOK && c.Status != StatusSkipped {
			ok = false
			break
		}
	}
	r.OK = ok
	if ok {
		r.add("Overall Status", StatusOK)
	} else {
		r.add("Overall Status", StatusFailed)
	}
	return r
}

// checkSubtype verifies exactly one populated assembly of the subtype exists
// and that its layout compiles.
func checkSubtype(project xmlProject, subtype string) string {
	var matches []xmlAssembly
	for _, a := range project.Assemblies {
		if a.Subtype == subtype && len(a.Fields) > 0 {
			matches = append(matches, a)
		}
	}
	if len(matches) != 1 {
		return StatusFailed
	}
	if _, err := compileAssembly(matches[0]); err != nil {
		return failure(err)
	}
	return StatusOK
}
