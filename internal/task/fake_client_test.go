package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/kazz187/adotask/internal/ado"
	"github.com/kazz187/adotask/internal/session"
)

type call struct {
	Method string
	ID     string
	Patch  ado.Patch
	IDs    []string
	Fields []string
	Query  string
	Expand bool
}

// fakeClient records every remote call and serves canned work items.
type fakeClient struct {
	calls   []call
	items   map[string]*ado.WorkItem
	query   *ado.QueryResult
	created *ado.WorkItem
	failOn  string
	err     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: map[string]*ado.WorkItem{}}
}

func (f *fakeClient) fail(method string) error {
	if f.failOn == method {
		return f.err
	}
	return nil
}

func (f *fakeClient) OrgURL() string {
	return "https://dev.azure.com/contoso"
}

func (f *fakeClient) GetWorkItem(_ context.Context, id string, expand bool) (*ado.WorkItem, error) {
	f.calls = append(f.calls, call{Method: "GetWorkItem", ID: id, Expand: expand})
	if err := f.fail("GetWorkItem"); err != nil {
		return nil, err
	}
	wi, ok := f.items[id]
	if !ok {
		return nil, &ado.Error{Method: "GET", URL: "/wit/workitems/" + id, StatusCode: 404, Body: "not found"}
	}
	return wi, nil
}

func (f *fakeClient) UpdateWorkItem(_ context.Context, id string, patch ado.Patch) (*ado.WorkItem, error) {
	f.calls = append(f.calls, call{Method: "UpdateWorkItem", ID: id, Patch: patch})
	if err := f.fail("UpdateWorkItem"); err != nil {
		return nil, err
	}
	wi, ok := f.items[id]
	if !ok {
		wi = &ado.WorkItem{Fields: map[string]any{}}
		fmt.Sscan(id, &wi.ID)
	}
	for _, op := range patch {
		if field, ok := strings.CutPrefix(op.Path, "/fields/"); ok {
			wi.Fields[field] = op.Value
		}
	}
	return wi, nil
}

func (f *fakeClient) CreateWorkItem(_ context.Context, workItemType string, patch ado.Patch) (*ado.WorkItem, error) {
	f.calls = append(f.calls, call{Method: "CreateWorkItem", ID: workItemType, Patch: patch})
	if err := f.fail("CreateWorkItem"); err != nil {
		return nil, err
	}
	return f.created, nil
}

func (f *fakeClient) GetWorkItems(_ context.Context, ids []string, fields []string) ([]*ado.WorkItem, error) {
	f.calls = append(f.calls, call{Method: "GetWorkItems", IDs: ids, Fields: fields})
	if err := f.fail("GetWorkItems"); err != nil {
		return nil, err
	}
	var out []*ado.WorkItem
	for _, id := range ids {
		if wi, ok := f.items[id]; ok {
			out = append(out, wi)
		}
	}
	return out, nil
}

func (f *fakeClient) QueryByWIQL(_ context.Context, query string) (*ado.QueryResult, error) {
	f.calls = append(f.calls, call{Method: "QueryByWIQL", Query: query})
	if err := f.fail("QueryByWIQL"); err != nil {
		return nil, err
	}
	if f.query == nil {
		return &ado.QueryResult{}, nil
	}
	return f.query, nil
}

func (f *fakeClient) methods() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Method
	}
	return out
}

type memorySessions struct {
	saved []session.Session
}

func (m *memorySessions) Save(_ context.Context, s *session.Session) error {
	m.saved = append(m.saved, *s)
	return nil
}
