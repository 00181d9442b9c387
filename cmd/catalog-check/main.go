// Command catalog-check validates plugin variable declarations against the
// data catalog: every input and output a provider declares must be a
// cataloged variable, every optional input must be a declared input, and a
// weighted pipeline must carry unique weights.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"simcore/internal/config"
	"simcore/internal/core"
	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
	"simcore/plugins/tidal"
)

var exitFunc = os.Exit

func main() {
	configPath := flag.String("config", "", "optional TOML config file")
	verbose := flag.Bool("v", false, "list every provider and its variables")
	flag.Parse()

	if _, err := config.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exitFunc(1)
		return
	}
	logger := core.InitLogger("catalog-check")

	catalog := domain.NewCatalog()
	for _, m := range tidal.Definitions() {
		if err := catalog.Add(m); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			exitFunc(1)
			return
		}
	}

	registry := core.NewRegistry()
	plugins := []pluginapi.Plugin{tidal.New()}
	err := registry.Discover(plugins, core.DiscoverOptions{
		SkipOnFailure: true,
		Warn: func(name string, err error) {
			logger.Warn("skipping provider", "provider", name, "error", err)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exitFunc(1)
		return
	}

	problems := check(catalog, registry, *verbose)
	for _, p := range problems {
		fmt.Fprintf(os.Stderr, "problem: %s\n", p)
	}
	if len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "%d problem(s) found\n", len(problems))
		exitFunc(1)
		return
	}
	fmt.Printf("ok: %d providers, %d variables\n", len(registry.Names()), len(catalog.Identifiers()))
}

func check(catalog *domain.Catalog, registry *core.Registry, verbose bool) []string {
	var problems []string
	weights := make(map[int][]string)
	for _, name := range registry.Names() {
		inputs := registry.Inputs(name)
		outputs := registry.Outputs(name)
		if verbose {
			fmt.Printf("%s: %d inputs, %d outputs\n", name, len(inputs), len(outputs))
		}
		declared := make(map[domain.VariableID]bool, len(inputs))
		for _, id := range inputs {
			declared[id] = true
			if !catalog.Contains(id) {
				problems = append(problems, fmt.Sprintf("%s: input %s not in catalog", name, id))
			}
		}
		for _, id := range registry.OptionalInputs(name) {
			if !declared[id] {
				problems = append(problems, fmt.Sprintf("%s: optional input %s not declared as input", name, id))
			}
		}
		for _, id := range outputs {
			if !catalog.Contains(id) {
				problems = append(problems, fmt.Sprintf("%s: output %s not in catalog", name, id))
			}
		}
		if w, ok := registry.Weight(name); ok {
			weights[w] = append(weights[w], name)
		}
	}
	for w, names := range weights {
		if len(names) > 1 {
			sort.Strings(names)
			problems = append(problems, fmt.Sprintf("weight %d shared by %v", w, names))
		}
	}
	sort.Strings(problems)
	return problems
}
