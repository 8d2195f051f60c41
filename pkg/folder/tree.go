package folder

import (
	"context"
)

// tree is a snapshot of one workspace's records.
type tree struct {
	records map[string]*Record
	order   []string
}

func (s *Service) loadTree(ctx context.Context, workspaceID string) (*tree, error) {
	recs, err := s.store.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	t := &tree{records: make(map[string]*Record, len(recs)), order: make([]string, 0, len(recs))}
	for i := range recs {
		t.records[recs[i].ID] = &recs[i]
		t.order = append(t.order, recs[i].ID)
	}
	return t, nil
}

// liveChildren returns the children of id that exist and are not trashed.
// Dangling child ids are skipped here; gathering reports them.
func (t *tree) liveChildren(id string, withChildren bool) []View {
	parent, ok := t.records[id]
	if !ok {
		return []View{}
	}
	out := make([]View, 0, len(parent.Children))
	for _, cid := range parent.Children {
		child, ok := t.records[cid]
		if !ok || child.Trashed {
			continue
		}
		out = append(out, t.view(child, withChildren))
	}
	return out
}

// view converts rec, adding its live children one level deep when withChildren is set.
func (t *tree) view(rec *Record, withChildren bool) View {
	v := toView(rec)
	if withChildren {
		v.ChildViews = t.liveChildren(rec.ID, false)
	}
	return v
}

func toView(rec *Record) View {
	v := View{
		ID:           rec.ID,
		ParentViewID: rec.ParentViewID,
		Name:         rec.Name,
		Layout:       rec.Layout,
		ChildViews:   []View{},
		Extra:        rec.Extra,
		Thumbnail:    rec.Thumbnail,
		IsFavorite:   rec.IsFavorite,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Icon != nil {
		icon := *rec.Icon
		v.Icon = &icon
	}
	return v
}
