// Package registry maps command identifiers to the handlers that serve them.
//
// A Registry is assembled once through a Builder and is immutable afterwards,
// so it can be shared by any number of concurrently dispatching callers
// without locking.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
	"github.com/morezero/workspace-bus/pkg/semver"
)

const logPrefix = "registry:registry"

// Handler consumes a request payload and produces a response payload.
type Handler interface {
	Invoke(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, payload commsutil.Payload) (commsutil.Payload, error) {
	return f(ctx, payload)
}

// DomainInfo describes a declared command domain.
type DomainInfo struct {
	Domain  command.Domain `json:"domain"`
	Version string         `json:"version"`
}

// Builder collects domain declarations and handler registrations.
type Builder struct {
	domains  map[command.Domain]string
	handlers map[command.ID]Handler
	built    bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		domains:  make(map[command.Domain]string),
		handlers: make(map[command.ID]Handler),
	}
}

// DeclareDomain adds a domain to the closed set of domains the registry accepts.
// Version is a semantic version describing the domain's command surface.
func (b *Builder) DeclareDomain(domain command.Domain, version string) error {
	if b.built {
		return fmt.Errorf("%s - registry already built, cannot declare %s", logPrefix, domain)
	}
	if !semver.ValidateDomainName(string(domain)) {
		return fmt.Errorf("%s - invalid domain name %q", logPrefix, domain)
	}
	if _, ok := b.domains[domain]; ok {
		return cmderr.New(cmderr.KindDuplicateRegistration, "domain %s already declared", domain)
	}
	normalized, err := semver.NormalizeVersion(version)
	if err != nil {
		return fmt.Errorf("%s - domain %s: %w", logPrefix, domain, err)
	}
	b.domains[domain] = normalized
	return nil
}

// Register binds id to h. Each identifier may be registered exactly once, and
// only within a declared domain.
func (b *Builder) Register(id command.ID, h Handler) error {
	if b.built {
		return fmt.Errorf("%s - registry already built, cannot register %s", logPrefix, id)
	}
	if h == nil {
		return fmt.Errorf("%s - nil handler for %s", logPrefix, id)
	}
	if _, ok := b.domains[id.Domain]; !ok {
		return cmderr.New(cmderr.KindUnknownCommand, "domain %s is not declared", id.Domain)
	}
	if !semver.ValidateCommandName(id.Name) {
		return fmt.Errorf("%s - invalid command name %q", logPrefix, id.Name)
	}
	if _, ok := b.handlers[id]; ok {
		return cmderr.New(cmderr.KindDuplicateRegistration, "command %s already registered", id)
	}
	b.handlers[id] = h
	return nil
}

// Build freezes the builder and returns the immutable Registry.
// The builder rejects further changes afterwards.
func (b *Builder) Build() *Registry {
	b.built = true

	r := &Registry{
		domains:  make(map[command.Domain]string, len(b.domains)),
		handlers: make(map[command.ID]Handler, len(b.handlers)),
		ids:      make([]command.ID, 0, len(b.handlers)),
	}
	for d, v := range b.domains {
		r.domains[d] = v
	}
	for id, h := range b.handlers {
		r.handlers[id] = h
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i].String() < r.ids[j].String() })

	slog.Info(fmt.Sprintf("%s - Registry built with %d domains and %d commands", logPrefix, len(r.domains), len(r.ids)))
	return r
}

// Registry is the read-only identifier to handler mapping.
type Registry struct {
	domains  map[command.Domain]string
	handlers map[command.ID]Handler
	ids      []command.ID
}

// Resolve returns the handler bound to id.
func (r *Registry) Resolve(id command.ID) (Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, cmderr.New(cmderr.KindUnknownCommand, "no handler registered for %s", id)
	}
	return h, nil
}

// ResolveRef resolves a "domain.Name@range" reference. When a range is given
// the declared domain version must satisfy it.
func (r *Registry) ResolveRef(ref string) (command.ID, Handler, error) {
	parsed, err := semver.ParseCommandRef(ref)
	if err != nil {
		return command.ID{}, nil, cmderr.New(cmderr.KindUnknownCommand, "%v", err)
	}
	id := command.ID{Domain: command.Domain(parsed.Domain), Name: parsed.Name}

	version, ok := r.domains[id.Domain]
	if !ok {
		return id, nil, cmderr.New(cmderr.KindUnknownCommand, "domain %s is not declared", id.Domain)
	}
	if !semver.SatisfiesRange(version, parsed.Range) {
		return id, nil, cmderr.New(cmderr.KindUnknownCommand, "domain %s version %s does not satisfy %q", id.Domain, version, parsed.Range)
	}

	h, err := r.Resolve(id)
	if err != nil {
		return id, nil, err
	}
	return id, h, nil
}

// Commands returns all registered identifiers sorted by their string form.
func (r *Registry) Commands() []command.ID {
	out := make([]command.ID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Domains returns the declared domains sorted by name.
func (r *Registry) Domains() []DomainInfo {
	out := make([]DomainInfo, 0, len(r.domains))
	for d, v := range r.domains {
		out = append(out, DomainInfo{Domain: d, Version: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// DomainVersion returns the declared version of a domain.
func (r *Registry) DomainVersion(d command.Domain) (string, bool) {
	v, ok := r.domains[d]
	return v, ok
}
