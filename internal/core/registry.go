package core

import (
	"fmt"
	"sort"
	"strings"

	"simcore/pkg/domain"
	"simcore/pkg/pluginapi"
)

// Registry is the capability socket: it accumulates interface providers
// contributed by plugins and answers discovery queries. Provider names are
// unique across the whole registry.
type Registry struct {
	order     []string
	providers map[string]pluginapi.Provider
	sources   map[string]string
	inputs    map[string][]VariableID
	optional  map[string][]VariableID
	outputs   map[string][]VariableID
	exts      map[string][]string
	weights   map[string]int
}

// NewRegistry constructs an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]pluginapi.Provider),
		sources:   make(map[string]string),
		inputs:    make(map[string][]VariableID),
		optional:  make(map[string][]VariableID),
		outputs:   make(map[string][]VariableID),
		exts:      make(map[string][]string),
		weights:   make(map[string]int),
	}
}

// DiscoverOptions controls how Discover treats providers that fail to
// instantiate during inspection.
type DiscoverOptions struct {
	// SkipOnFailure drops a failing provider with a warning instead of
	// aborting the whole discovery.
	SkipOnFailure bool
	// Warn receives the provider name and failure when SkipOnFailure is set.
	Warn func(name string, err error)
}

// Discover registers every provider of the given plugins, instantiating each
// once to record its declared inputs, outputs, extensions and weight. A
// provider whose constructor fails aborts discovery with ErrImportFailure
// unless SkipOnFailure is set. Re-running Discover with plugins already
// registered is a no-op for the providers they contributed before; a provider
// name already claimed by a different plugin aborts.
func (r *Registry) Discover(plugins []pluginapi.Plugin, opts DiscoverOptions) error {
	for _, p := range plugins {
		for _, prov := range p.Providers() {
			if prov.Name == "" || prov.New == nil {
				return fmt.Errorf("%w: plugin %s contributed an incomplete provider", domain.ErrImportFailure, p.Name())
			}
			if src, exists := r.sources[prov.Name]; exists {
				if src == p.Name() {
					continue
				}
				return fmt.Errorf("%w: provider name %q already claimed by plugin %s",
					domain.ErrImportFailure, prov.Name, src)
			}
			iface, err := prov.New()
			if err != nil {
				if opts.SkipOnFailure {
					if opts.Warn != nil {
						opts.Warn(prov.Name, err)
					}
					continue
				}
				return fmt.Errorf("%w: provider %q: %v", domain.ErrImportFailure, prov.Name, err)
			}
			r.register(p.Name(), prov, iface)
		}
	}
	return nil
}

func (r *Registry) register(source string, prov pluginapi.Provider, iface pluginapi.Interface) {
	name := prov.Name
	r.order = append(r.order, name)
	r.providers[name] = prov
	r.sources[name] = source
	r.inputs[name] = iface.Inputs()
	r.optional[name] = iface.OptionalInputs()
	r.outputs[name] = iface.Outputs()
	if fi, ok := iface.(pluginapi.FileInterface); ok {
		exts := make([]string, 0, len(fi.Extensions()))
		for _, ext := range fi.Extensions() {
			exts = append(exts, strings.ToLower(ext))
		}
		r.exts[name] = exts
	}
	if wi, ok := iface.(pluginapi.WeightedInterface); ok {
		r.weights[name] = wi.Weight()
	}
}

// Names returns registered provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Contains reports whether a provider is registered under the name.
func (r *Registry) Contains(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Get returns a fresh interface instance from the named provider.
func (r *Registry) Get(name string) (pluginapi.Interface, error) {
	prov, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no provider named %q", domain.ErrNotFound, name)
	}
	iface, err := prov.New()
	if err != nil {
		return nil, fmt.Errorf("%w: provider %q: %v", domain.ErrImportFailure, name, err)
	}
	return iface, nil
}

// Inputs returns the declared inputs recorded for a provider.
func (r *Registry) Inputs(name string) []VariableID {
	return append([]VariableID(nil), r.inputs[name]...)
}

// Outputs returns the declared outputs recorded for a provider.
func (r *Registry) Outputs(name string) []VariableID {
	return append([]VariableID(nil), r.outputs[name]...)
}

// OptionalInputs returns the declared optional inputs recorded for a provider.
func (r *Registry) OptionalInputs(name string) []VariableID {
	return append([]VariableID(nil), r.optional[name]...)
}

// Weight returns the scheduling weight of a provider and whether it declared
// one.
func (r *Registry) Weight(name string) (int, bool) {
	w, ok := r.weights[name]
	return w, ok
}

// ByExtension returns the names of file-backed providers that understand the
// given extension, sorted by name. The comparison is case-insensitive and
// tolerates a missing leading dot.
func (r *Registry) ByExtension(ext string) []string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var out []string
	for name, exts := range r.exts {
		for _, e := range exts {
			if e == ext {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ProvidersOf returns the names of providers that declare the variable as an
// output, sorted by name.
func (r *Registry) ProvidersOf(id VariableID) []string {
	var out []string
	for name, ids := range r.outputs {
		for _, v := range ids {
			if v == id {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// ReceiversOf returns the names of providers that declare the variable as an
// input, sorted by name.
func (r *Registry) ReceiversOf(id VariableID) []string {
	var out []string
	for name, ids := range r.inputs {
		for _, v := range ids {
			if v == id {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
