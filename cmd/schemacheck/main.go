// Command schemacheck validates the entity registry and prints the derived
// per-entity contracts.
//
// Checks:
//   - the CUE declaration satisfies #Entity/#Field
//   - every reference target, display, status and search path resolves
//   - (with -file) an alternative declaration can be checked before it ships
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/matthewbaird/collegeadmin/internal/schema"
)

type entityReport struct {
	Path         string          `json:"path"`
	Contract     schema.Contract `json:"contract"`
	Dependencies []string        `json:"dependencies"`
	ReferencedBy []string        `json:"referenced_by"`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("schemacheck: ")

	file := flag.String("file", "", "CUE registry declaration to check instead of the embedded one")
	asJSON := flag.Bool("json", false, "print contracts as JSON")
	flag.Parse()

	var (
		reg *schema.Registry
		err error
	)
	if *file != "" {
		src, rerr := os.ReadFile(*file)
		if rerr != nil {
			log.Fatalf("reading %s: %v", *file, rerr)
		}
		reg, err = schema.LoadBytes(*file, src)
	} else {
		reg, err = schema.Load()
	}
	if err != nil {
		log.Fatalf("registry invalid: %v", err)
	}

	report := make(map[string]entityReport)
	for _, name := range reg.EntityNames() {
		es := reg.Entity(name)
		var refs []string
		for _, r := range reg.Referrers(name) {
			refs = append(refs, r.Entity+"."+r.Field)
		}
		report[name] = entityReport{
			Path:         es.Path,
			Contract:     es.Contract(),
			Dependencies: reg.Dependencies(name),
			ReferencedBy: refs,
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("encoding: %v", err)
		}
		return
	}

	for _, name := range reg.EntityNames() {
		r := report[name]
		fmt.Printf("%s (/%s)\n", name, r.Path)
		fmt.Printf("  required:  %s\n", strings.Join(r.Contract.RequiredFields, ", "))
		if len(r.Dependencies) > 0 {
			fmt.Printf("  loads:     %s\n", strings.Join(r.Dependencies, ", "))
		}
		if len(r.ReferencedBy) > 0 {
			fmt.Printf("  ref'd by:  %s\n", strings.Join(r.ReferencedBy, ", "))
		}
	}
	fmt.Printf("\nschemacheck: OK, %d entities\n", len(report))
}
