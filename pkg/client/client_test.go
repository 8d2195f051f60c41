package client

import (
	"context"
	"strings"
	"testing"

	"github.com/morezero/workspace-bus/pkg/cmderr"
	"github.com/morezero/workspace-bus/pkg/command"
	"github.com/morezero/workspace-bus/pkg/dispatcher"
	"github.com/morezero/workspace-bus/pkg/registry"
)

var (
	cmdRename = command.ID{Domain: command.DomainFolder, Name: "Rename"}
	cmdList   = command.ID{Domain: command.DomainFolder, Name: "List"}
	cmdTouch  = command.ID{Domain: command.DomainFolder, Name: "Touch"}
	cmdWho    = command.ID{Domain: command.DomainUser, Name: "Who"}
)

type renameReq struct {
	ViewID string `json:"view_id"`
	Name   string `json:"name"`
}

type renameResp struct {
	ViewID string `json:"view_id"`
	Name   string `json:"name"`
}

func newTestClient(t *testing.T, touched chan<- string) (*Client, *dispatcher.Dispatcher) {
	t.Helper()
	b := registry.NewBuilder()
	for _, d := range []command.Domain{command.DomainFolder, command.DomainUser} {
		if err := b.DeclareDomain(d, "1.0.0"); err != nil {
			t.Fatalf("client:client_test - DeclareDomain: %v", err)
		}
	}
	must := func(err error) {
		if err != nil {
			t.Fatalf("client:client_test - Register: %v", err)
		}
	}
	must(b.Register(cmdRename, registry.Typed(func(_ context.Context, req renameReq) (renameResp, error) {
		if req.ViewID == "missing" {
			return renameResp{}, cmderr.NotFound("view %s not found", req.ViewID)
		}
		return renameResp{ViewID: req.ViewID, Name: req.Name}, nil
	})))
	must(b.Register(cmdList, registry.NoInput(func(_ context.Context) ([]string, error) {
		return []string{"v1", "v2"}, nil
	})))
	must(b.Register(cmdTouch, registry.NoOutput(func(_ context.Context, id string) error {
		if id == "" {
			return cmderr.InvalidArgument("id is required")
		}
		if touched != nil {
			touched <- id
		}
		return nil
	})))
	must(b.Register(cmdWho, registry.NoInput(func(ctx context.Context) (string, error) {
		return dispatcher.CallerEmail(ctx), nil
	})))

	d := dispatcher.NewDispatcher(b.Build())
	return New(d, "ann@example.com"), d
}

func TestCall(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	resp, err := Call[renameReq, renameResp](ctx, c, cmdRename, renameReq{ViewID: "v1", Name: "Notes"})
	if err != nil {
		t.Fatalf("client:client_test - Call: %v", err)
	}
	if resp.ViewID != "v1" || resp.Name != "Notes" {
		t.Errorf("client:client_test - resp = %+v", resp)
	}

	_, err = Call[renameReq, renameResp](ctx, c, cmdRename, renameReq{ViewID: "missing"})
	if !cmderr.IsNotFound(err) {
		t.Errorf("client:client_test - expected NOT_FOUND, got %v", err)
	}
}

func TestCall_WrongResponseTypeIsDecodeError(t *testing.T) {
	c, _ := newTestClient(t, nil)

	_, err := Call[renameReq, []int](context.Background(), c, cmdRename, renameReq{ViewID: "v1"})
	if cmderr.KindOf(err) != cmderr.KindDecode {
		t.Fatalf("client:client_test - expected DECODE_ERROR, got %v", err)
	}
	if n := strings.Count(err.Error(), string(cmderr.KindDecode)); n != 1 {
		t.Errorf("client:client_test - kind repeated in %q", err.Error())
	}
	if !strings.Contains(err.Error(), "response of folder.Rename") {
		t.Errorf("client:client_test - message %q should name the command", err.Error())
	}
}

func TestQueryAndExec(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	items, err := Query[[]string](ctx, c, cmdList)
	if err != nil || len(items) != 2 || items[0] != "v1" {
		t.Errorf("client:client_test - Query = %v, %v", items, err)
	}

	if err := Exec(ctx, c, cmdTouch, "v1"); err != nil {
		t.Errorf("client:client_test - Exec: %v", err)
	}
	if err := Exec(ctx, c, cmdTouch, ""); cmderr.CodeOf(err) != cmderr.CodeInvalidArgument {
		t.Errorf("client:client_test - expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newTestClient(t, nil)

	_, err := Query[string](context.Background(), c, command.ID{Domain: command.DomainUser, Name: "Nope"})
	if cmderr.KindOf(err) != cmderr.KindUnknownCommand {
		t.Errorf("client:client_test - expected UNKNOWN_COMMAND, got %v", err)
	}
}

func TestMustVariantsPanicWithCommandError(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		run      func()
		wantCode string
	}{
		{"MustCall", func() { MustCall[renameReq, renameResp](ctx, c, cmdRename, renameReq{ViewID: "missing"}) }, cmderr.CodeNotFound},
		{"MustExec", func() { MustExec(ctx, c, cmdTouch, "") }, cmderr.CodeInvalidArgument},
		{"MustQuery", func() { MustQuery[string](ctx, c, command.ID{Domain: command.DomainUser, Name: "Nope"}) }, string(cmderr.KindUnknownCommand)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				ce, ok := r.(*cmderr.Error)
				if !ok {
					t.Fatalf("client:client_test - expected *cmderr.Error panic, got %v", r)
				}
				if ce.Code != tt.wantCode {
					t.Errorf("client:client_test - code = %s, want %s", ce.Code, tt.wantCode)
				}
			}()
			tt.run()
		})
	}

	if got := MustQuery[[]string](ctx, c, cmdList); len(got) != 2 {
		t.Errorf("client:client_test - MustQuery = %v", got)
	}
}

func TestIdentity(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx := context.Background()

	if who := MustQuery[string](ctx, c, cmdWho); who != "ann@example.com" {
		t.Errorf("client:client_test - caller = %q", who)
	}
	if who := MustQuery[string](ctx, c.As("bob@example.com"), cmdWho); who != "bob@example.com" {
		t.Errorf("client:client_test - As caller = %q", who)
	}

	explicit := dispatcher.WithInvocation(ctx, &dispatcher.InvocationContext{UserEmail: "svc@example.com"})
	if who := MustQuery[string](explicit, c, cmdWho); who != "svc@example.com" {
		t.Errorf("client:client_test - explicit invocation ignored, caller = %q", who)
	}
}

func TestSend(t *testing.T) {
	touched := make(chan string, 1)
	c, d := newTestClient(t, touched)

	if err := c.Send(context.Background(), cmdTouch, "v9"); err != nil {
		t.Fatalf("client:client_test - Send: %v", err)
	}
	d.Wait()

	select {
	case got := <-touched:
		if got != "v9" {
			t.Errorf("client:client_test - touched %q", got)
		}
	default:
		t.Error("client:client_test - fire-and-forget handler did not run")
	}
}
