package registry

import (
	"context"
	"testing"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/commsutil"
)

const registryTestPrefix = "registry:registry_test"

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, p commsutil.Payload) (commsutil.Payload, error) {
		return p, nil
	})
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	if err := b.DeclareDomain(command.DomainFolder, "1.2.0"); err != nil {
		t.Fatalf("%s - DeclareDomain folder: %v", registryTestPrefix, err)
	}
	if err := b.DeclareDomain(command.DomainUser, "2"); err != nil {
		t.Fatalf("%s - DeclareDomain user: %v", registryTestPrefix, err)
	}
	return b
}

func TestBuilder_RegisterAndResolve(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.Register(command.GetView, echoHandler()); err != nil {
		t.Fatalf("%s - Register: %v", registryTestPrefix, err)
	}
	reg := b.Build()

	h, err := reg.Resolve(command.GetView)
	if err != nil {
		t.Fatalf("%s - Resolve: %v", registryTestPrefix, err)
	}
	out, err := h.Invoke(context.Background(), commsutil.Payload(`"x"`))
	if err != nil || string(out) != `"x"` {
		t.Errorf("%s - Invoke = %q, %v", registryTestPrefix, out, err)
	}
}

func TestBuilder_DuplicateRegistration(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.Register(command.CreateView, echoHandler()); err != nil {
		t.Fatalf("%s - first Register: %v", registryTestPrefix, err)
	}

	err := b.Register(command.CreateView, echoHandler())
	if cmderr.KindOf(err) != cmderr.KindDuplicateRegistration {
		t.Fatalf("%s - expected DUPLICATE_REGISTRATION, got %v", registryTestPrefix, err)
	}

	err = b.DeclareDomain(command.DomainFolder, "1.0.0")
	if cmderr.KindOf(err) != cmderr.KindDuplicateRegistration {
		t.Errorf("%s - expected DUPLICATE_REGISTRATION for domain, got %v", registryTestPrefix, err)
	}
}

func TestBuilder_UndeclaredDomain(t *testing.T) {
	b := NewBuilder()
	err := b.Register(command.ID{Domain: "billing", Name: "Charge"}, echoHandler())
	if cmderr.KindOf(err) != cmderr.KindUnknownCommand {
		t.Errorf("%s - expected UNKNOWN_COMMAND for undeclared domain, got %v", registryTestPrefix, err)
	}
}

func TestBuilder_RejectsInvalidInput(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"nil handler", func() error { return b.Register(command.GetView, nil) }},
		{"bad name", func() error { return b.Register(command.ID{Domain: command.DomainFolder, Name: "get-view"}, echoHandler()) }},
		{"bad domain", func() error { return b.DeclareDomain("Bad Domain", "1.0.0") }},
		{"bad version", func() error { return b.DeclareDomain("search", "not-a-version") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err == nil {
				t.Errorf("%s - expected error", registryTestPrefix)
			}
		})
	}
}

func TestBuilder_FrozenAfterBuild(t *testing.T) {
	b := newTestBuilder(t)
	reg := b.Build()

	if err := b.Register(command.GetView, echoHandler()); err == nil {
		t.Errorf("%s - expected error registering after Build", registryTestPrefix)
	}
	if err := b.DeclareDomain("search", "1.0.0"); err == nil {
		t.Errorf("%s - expected error declaring after Build", registryTestPrefix)
	}
	if _, err := reg.Resolve(command.GetView); cmderr.KindOf(err) != cmderr.KindUnknownCommand {
		t.Errorf("%s - late registration leaked into registry: %v", registryTestPrefix, err)
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := newTestBuilder(t).Build()

	_, err := reg.Resolve(command.ID{Domain: command.DomainFolder, Name: "Nope"})
	if cmderr.KindOf(err) != cmderr.KindUnknownCommand {
		t.Errorf("%s - expected UNKNOWN_COMMAND, got %v", registryTestPrefix, err)
	}
}

func TestRegistry_ResolveRef(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.Register(command.GetView, echoHandler()); err != nil {
		t.Fatalf("%s - Register: %v", registryTestPrefix, err)
	}
	reg := b.Build()

	tests := []struct {
		ref     string
		wantErr bool
	}{
		{"folder.GetView", false},
		{"folder.GetView@1", false},
		{"folder.GetView@^1.1.0", false},
		{"folder.GetView@1.2.0", false},
		{"folder.GetView@2", true},
		{"folder.GetView@^1.3.0", true},
		{"folder.CreateView", true},
		{"search.Query", true},
		{"garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, h, err := reg.ResolveRef(tt.ref)
			if tt.wantErr {
				if cmderr.KindOf(err) != cmderr.KindUnknownCommand {
					t.Errorf("%s - expected UNKNOWN_COMMAND for %q, got %v", registryTestPrefix, tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - ResolveRef(%q): %v", registryTestPrefix, tt.ref, err)
			}
			if id != command.GetView || h == nil {
				t.Errorf("%s - ResolveRef(%q) = %v, %v", registryTestPrefix, tt.ref, id, h)
			}
		})
	}
}

func TestRegistry_Listing(t *testing.T) {
	b := newTestBuilder(t)
	for _, id := range []command.ID{command.GetView, command.CreateView, command.SignUp} {
		if err := b.Register(id, echoHandler()); err != nil {
			t.Fatalf("%s - Register %s: %v", registryTestPrefix, id, err)
		}
	}
	reg := b.Build()

	cmds := reg.Commands()
	want := []string{"folder.CreateView", "folder.GetView", "user.SignUp"}
	if len(cmds) != len(want) {
		t.Fatalf("%s - Commands() len = %d, want %d", registryTestPrefix, len(cmds), len(want))
	}
	for i, w := range want {
		if cmds[i].String() != w {
			t.Errorf("%s - Commands()[%d] = %s, want %s", registryTestPrefix, i, cmds[i], w)
		}
	}

	domains := reg.Domains()
	if len(domains) != 2 || domains[0].Domain != command.DomainFolder || domains[1].Version != "2.0.0" {
		t.Errorf("%s - Domains() = %+v", registryTestPrefix, domains)
	}
	if v, ok := reg.DomainVersion(command.DomainFolder); !ok || v != "1.2.0" {
		t.Errorf("%s - DomainVersion(folder) = %q, %v", registryTestPrefix, v, ok)
	}
}
