package folder

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/morezero/workspace-bus/pkg/cmderr"
)

// GatherPublishPayload collects the publishable content of a view and, when
// includeChildren is set, of its live descendants in tree order. A view whose
// layout has nothing to publish contributes no payload of its own. Dangling
// child links and cycles fail with GATHER_FAILED.
func (s *Service) GatherPublishPayload(ctx context.Context, req GatherRequest) ([]PublishPayload, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.memberRecord(ctx, caller, req.ViewID)
	if cmderr.IsNotFound(err) {
		return nil, cmderr.GatherFailed("view %s not found", req.ViewID)
	}
	if err != nil {
		return nil, err
	}
	if rec.Trashed {
		return nil, cmderr.GatherFailed("view %s is in the trash", req.ViewID)
	}

	t, err := s.loadTree(ctx, rec.WorkspaceID)
	if err != nil {
		return nil, err
	}
	out, err := t.gather(ctx, rec.ID, req.IncludeChildren, nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []PublishPayload{}
	}
	return out, nil
}

// gather walks the subtree below id. path holds the ids from the starting
// view down to id's parent.
func (t *tree) gather(ctx context.Context, id string, includeChildren bool, path []string) ([]PublishPayload, error) {
	if slices.Contains(path, id) {
		return nil, cmderr.GatherFailed("cycle in view tree at %s", id)
	}
	rec, ok := t.records[id]
	if !ok {
		return nil, cmderr.GatherFailed("view %s not found", id)
	}
	path = append(slices.Clip(path), id)

	children, err := t.publishChildren(rec)
	if err != nil {
		return nil, err
	}

	var out []PublishPayload
	if !rec.IsRoot() && rec.Layout.Publishable() {
		out = append(out, t.payload(rec, children))
	}
	if !includeChildren || len(children) == 0 {
		return out, nil
	}

	parts := make([][]PublishPayload, len(children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		g.Go(func() error {
			p, err := t.gather(gctx, child.ID, true, path)
			parts[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

// publishChildren returns the live children of rec, failing on dangling links.
func (t *tree) publishChildren(rec *Record) ([]*Record, error) {
	out := make([]*Record, 0, len(rec.Children))
	for _, cid := range rec.Children {
		child, ok := t.records[cid]
		if !ok {
			return nil, cmderr.GatherFailed("view %s links to missing child %s", rec.ID, cid)
		}
		if child.Trashed {
			continue
		}
		out = append(out, child)
	}
	return out, nil
}

func (t *tree) payload(rec *Record, children []*Record) PublishPayload {
	infos := make([]PublishViewInfo, 0, len(children))
	for _, c := range children {
		infos = append(infos, PublishViewInfo{ViewID: c.ID, Name: c.Name, Layout: c.Layout})
	}
	p := PublishPayload{
		ViewID: rec.ID,
		Layout: rec.Layout,
		Meta:   PublishMeta{Name: rec.Name, ChildViews: infos},
		Data:   rec.Data,
	}
	if rec.Icon != nil {
		icon := *rec.Icon
		p.Meta.Icon = &icon
	}
	return p
}
