package task

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kazz187/adotask/internal/ado"
)

var (
	storyTaskFields = []string{ado.FieldID, ado.FieldTitle, ado.FieldState, ado.FieldAssignedTo}
	myTaskFields    = []string{ado.FieldID, ado.FieldTitle, ado.FieldState, ado.FieldAssignedTo, ado.FieldParent}
)

// WIQL returns ids or links only, so both listings query first and then
// fetch the fields of every hit in one batch call.

func (s *Service) listStoryTasks(ctx context.Context, storyID string) ([]*Summary, error) {
	query, err := ado.ChildTasksQuery(storyID)
	if err != nil {
		return nil, err
	}
	result, err := s.client.QueryByWIQL(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.WorkItemRelations))
	for _, link := range result.WorkItemRelations {
		// The story itself comes back as a row without a target.
		if link.Target == nil {
			continue
		}
		ids = append(ids, strconv.Itoa(link.Target.ID))
	}

	tasks := make([]*Summary, 0, len(ids))
	if len(ids) == 0 {
		return tasks, nil
	}
	items, err := s.client.GetWorkItems(ctx, ids, storyTaskFields)
	if err != nil {
		return nil, err
	}
	for _, wi := range items {
		tasks = append(tasks, summarize(wi))
	}
	return tasks, nil
}

func (s *Service) listAssignedTasks(ctx context.Context) ([]*AssignedSummary, error) {
	result, err := s.client.QueryByWIQL(ctx, ado.MyTasksQuery())
	if err != nil {
		return nil, err
	}

	tasks := make([]*AssignedSummary, 0, len(result.WorkItems))
	if len(result.WorkItems) == 0 {
		return tasks, nil
	}
	ids := make([]string, len(result.WorkItems))
	for i, ref := range result.WorkItems {
		ids[i] = strconv.Itoa(ref.ID)
	}
	items, err := s.client.GetWorkItems(ctx, ids, myTaskFields)
	if err != nil {
		return nil, err
	}
	for _, wi := range items {
		tasks = append(tasks, &AssignedSummary{
			Summary:  *summarize(wi),
			ParentID: parentID(wi),
		})
	}
	return tasks, nil
}

func summarize(wi *ado.WorkItem) *Summary {
	return &Summary{
		TaskID: strconv.Itoa(wi.ID),
		Title:  wi.StringField(ado.FieldTitle),
		State:  wi.StringField(ado.FieldState),
		Owner:  wi.IdentityField(ado.FieldAssignedTo),
	}
}

// parentID treats an unset or zero System.Parent as no parent.
func parentID(wi *ado.WorkItem) *string {
	switch v := wi.Fields[ado.FieldParent].(type) {
	case json.Number:
		if v.String() == "0" {
			return nil
		}
		id := v.String()
		return &id
	case float64:
		if v == 0 {
			return nil
		}
		id := strconv.FormatFloat(v, 'f', -1, 64)
		return &id
	case string:
		if v == "" {
			return nil
		}
		return &v
	default:
		return nil
	}
}
