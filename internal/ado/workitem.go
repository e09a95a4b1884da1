package ado

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Field reference names used by the adapter.
const (
	FieldID           = "System.Id"
	FieldTitle        = "System.Title"
	FieldDescription  = "System.Description"
	FieldState        = "System.State"
	FieldAssignedTo   = "System.AssignedTo"
	FieldWorkItemType = "System.WorkItemType"
	FieldParent       = "System.Parent"
	FieldHistory      = "System.History"
)

const TypeTask = "Task"

type WorkItem struct {
	ID        int            `json:"id"`
	Rev       int            `json:"rev,omitempty"`
	Fields    map[string]any `json:"fields"`
	Relations []Relation     `json:"relations,omitempty"`
	URL       string         `json:"url,omitempty"`
}

type WorkItemBatch struct {
	Count int         `json:"count"`
	Value []*WorkItem `json:"value"`
}

type WorkItemReference struct {
	ID  int    `json:"id"`
	URL string `json:"url,omitempty"`
}

type WorkItemLink struct {
	Rel    string             `json:"rel,omitempty"`
	Source *WorkItemReference `json:"source,omitempty"`
	Target *WorkItemReference `json:"target,omitempty"`
}

// QueryResult is the WIQL response. Flat queries fill WorkItems, link
// queries fill WorkItemRelations.
type QueryResult struct {
	QueryType         string              `json:"queryType,omitempty"`
	WorkItems         []WorkItemReference `json:"workItems,omitempty"`
	WorkItemRelations []WorkItemLink      `json:"workItemRelations,omitempty"`
}

func workItemPath(id string) string {
	return "/wit/workitems/" + url.PathEscape(id)
}

func (c *Client) GetWorkItem(ctx context.Context, id string, expandRelations bool) (*WorkItem, error) {
	var query url.Values
	if expandRelations {
		query = url.Values{"$expand": {"relations"}}
	}
	var wi WorkItem
	err := c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   workItemPath(id),
		Query:  query,
	}, &wi)
	if err != nil {
		return nil, err
	}
	return &wi, nil
}

func (c *Client) UpdateWorkItem(ctx context.Context, id string, patch Patch) (*WorkItem, error) {
	var wi WorkItem
	err := c.Do(ctx, &Request{
		Method:      http.MethodPatch,
		Path:        workItemPath(id),
		Body:        patch,
		ContentType: ContentTypeJSONPatch,
	}, &wi)
	if err != nil {
		return nil, err
	}
	return &wi, nil
}

func (c *Client) CreateWorkItem(ctx context.Context, workItemType string, patch Patch) (*WorkItem, error) {
	var wi WorkItem
	err := c.Do(ctx, &Request{
		Method:      http.MethodPost,
		Path:        "/wit/workitems/$" + workItemType,
		Body:        patch,
		ContentType: ContentTypeJSONPatch,
	}, &wi)
	if err != nil {
		return nil, err
	}
	return &wi, nil
}

// GetWorkItems fetches several items in one call, restricted to fields.
func (c *Client) GetWorkItems(ctx context.Context, ids []string, fields []string) ([]*WorkItem, error) {
	var batch WorkItemBatch
	err := c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   "/wit/workitems",
		Query: url.Values{
			"ids":    {strings.Join(ids, ",")},
			"fields": {strings.Join(fields, ",")},
		},
	}, &batch)
	if err != nil {
		return nil, err
	}
	return batch.Value, nil
}

func (c *Client) QueryByWIQL(ctx context.Context, query string) (*QueryResult, error) {
	var result QueryResult
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/wit/wiql",
		Body:   map[string]string{"query": query},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// StringField returns the field as a string, or nil when it is absent or
// null.
func (wi *WorkItem) StringField(name string) *string {
	v, ok := wi.Fields[name]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// IdentityField resolves an identity field such as System.AssignedTo. The
// service returns either an identity object or a bare string.
func (wi *WorkItem) IdentityField(name string) *string {
	switch v := wi.Fields[name].(type) {
	case map[string]any:
		name, ok := v["displayName"].(string)
		if !ok {
			return nil
		}
		return &name
	case string:
		return &v
	default:
		return nil
	}
}
