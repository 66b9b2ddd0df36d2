package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"preset-teaching-be/pkg/preset"
	"preset-teaching-be/pkg/teaching"

	"github.com/fatih/color"
)

// inspect_preset prints the addressable nodes of a preset document and,
// with -ops, the outcome of applying a list of operations to it.
//
//	go run ./cmd/inspect_preset -file preset.json -ops ops.json
func main() {
	file := flag.String("file", "", "preset document (JSON)")
	opsFile := flag.String("ops", "", "operations to dry-run (JSON array)")
	showXML := flag.Bool("xml", false, "print the request envelope")
	flag.Parse()

	if *file == "" {
		color.Red("-file is required")
		os.Exit(2)
	}

	var doc preset.Document
	if err := readJSON(*file, &doc); err != nil {
		color.Red("Failed to read preset: %v", err)
		os.Exit(1)
	}

	ix := preset.BuildIndex(doc, preset.DefaultIndexOptions())
	color.Cyan("Preset %q: %d nodes", doc.Name(), ix.Len())
	for _, n := range ix.Nodes {
		fmt.Printf("%4d  %-40s %-10s %s\n", n.Position, color.YellowString(n.ID), n.ValueType, n.Preview)
	}

	if *showXML {
		color.Cyan("\nRequest envelope")
		fmt.Println(teaching.BuildRequestXML(ix, ""))
	}

	if *opsFile == "" {
		return
	}

	var ops []preset.Operation
	if err := readJSON(*opsFile, &ops); err != nil {
		color.Red("Failed to read operations: %v", err)
		os.Exit(1)
	}

	result := preset.ApplyAll(doc, ops)
	color.Cyan("\nDry run: %d applied, %d failed", len(result.Applied), len(result.Failed))
	for _, o := range result.Applied {
		note := ""
		if o.NoopValue {
			note = " (same value)"
		}
		color.Green("  %-7s %s: %s -> %s%s", o.Op, o.Path, preset.FormatScalar(o.Before), preset.FormatScalar(o.After), note)
	}
	for _, o := range result.Failed {
		color.Red("  %-7s %s: %s", o.Op, o.Path, o.Error)
	}
}

func readJSON(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
