package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/adotask/internal/ado"
	"github.com/kazz187/adotask/internal/session"
	"github.com/kazz187/adotask/pkg/cerr"
)

func story(id int, title, state string) *ado.WorkItem {
	return &ado.WorkItem{ID: id, Fields: map[string]any{
		ado.FieldTitle:        title,
		ado.FieldWorkItemType: "User Story",
		ado.FieldState:        state,
	}}
}

func TestToRemoteState(t *testing.T) {
	want := map[Status]string{
		StatusPending:    "To Do",
		StatusInProgress: "Active",
		StatusCompleted:  "Closed",
		StatusDeleted:    "Removed",
	}
	for status, state := range want {
		got, err := ToRemoteState(status)
		require.NoError(t, err)
		assert.Equal(t, state, got)
	}

	_, err := ToRemoteState("done")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Equal(t, "Unknown status 'done'. Use: pending, in_progress, completed, deleted", cerr.Message(err))
}

func TestStoryNeedsActivation(t *testing.T) {
	for _, state := range []string{"New", "Approved", "Committed", "Design"} {
		assert.True(t, StoryNeedsActivation(state), state)
	}
	for _, state := range []string{"Active", "Resolved", "Closed", "Removed", ""} {
		assert.False(t, StoryNeedsActivation(state), state)
	}
}

func TestSetStoryActivatesNewStory(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.items["42"] = story(42, "Checkout flow", "New")
	sessions := &memorySessions{}
	svc := NewService(client, sessions)

	sess := &session.Session{}
	sel, err := svc.SetStory(ctx, sess, "42")
	require.NoError(t, err)

	assert.Equal(t, &StorySelection{
		StoryID: "42",
		Title:   "Checkout flow",
		Type:    "User Story",
		State:   "Active",
		Message: "Active story set to #42: Checkout flow (moved to Active)",
	}, sel)
	assert.Equal(t, []session.Session{{StoryID: "42"}}, sessions.saved)
	assert.Equal(t, "42", sess.StoryID)
	require.Equal(t, []string{"GetWorkItem", "UpdateWorkItem"}, client.methods())
	assert.Equal(t, ado.Patch{{Op: "add", Path: "/fields/System.State", Value: "Active"}}, client.calls[1].Patch)

	// Already Active: no second transition.
	client.calls = nil
	sel, err = svc.SetStory(ctx, sess, "42")
	require.NoError(t, err)
	assert.Equal(t, "Active", sel.State)
	assert.Equal(t, "Active story set to #42: Checkout flow", sel.Message)
	assert.Equal(t, []string{"GetWorkItem"}, client.methods())
}

func TestSetStoryReactivatesRevertedStory(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.items["42"] = story(42, "Checkout flow", "Committed")
	svc := NewService(client, &memorySessions{})

	_, err := svc.SetStory(ctx, &session.Session{}, "42")
	require.NoError(t, err)

	client.items["42"].Fields[ado.FieldState] = "Approved"
	client.calls = nil
	sel, err := svc.SetStory(ctx, &session.Session{}, "42")
	require.NoError(t, err)
	assert.Equal(t, "Active", sel.State)
	assert.Equal(t, []string{"GetWorkItem", "UpdateWorkItem"}, client.methods())
}

func TestSetStoryKeepsSelectionWhenActivationFails(t *testing.T) {
	client := newFakeClient()
	client.items["42"] = story(42, "Checkout flow", "New")
	client.failOn = "UpdateWorkItem"
	client.err = &ado.Error{Method: "PATCH", URL: "u", StatusCode: 409, Body: "conflict"}
	sessions := &memorySessions{}
	svc := NewService(client, sessions)

	_, err := svc.SetStory(context.Background(), &session.Session{}, "42")
	require.Error(t, err)
	assert.Equal(t, []session.Session{{StoryID: "42"}}, sessions.saved)
}

func TestSetStoryUnknownTitle(t *testing.T) {
	client := newFakeClient()
	client.items["9"] = &ado.WorkItem{ID: 9, Fields: map[string]any{ado.FieldState: "Resolved"}}
	svc := NewService(client, &memorySessions{})

	sel, err := svc.SetStory(context.Background(), &session.Session{}, "9")
	require.NoError(t, err)
	assert.Equal(t, "(unknown)", sel.Title)
	assert.Equal(t, "Resolved", sel.State)
	assert.Equal(t, []string{"GetWorkItem"}, client.methods())
}

func TestCreate(t *testing.T) {
	client := newFakeClient()
	client.created = &ado.WorkItem{ID: 101, Fields: map[string]any{ado.FieldTitle: "Write tests"}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.Create(context.Background(), &session.Session{StoryID: "42"}, "Write tests", "Add unit tests", "")
	require.NoError(t, err)
	assert.Equal(t, &CreatedTask{TaskID: "101", Title: "Write tests", ParentStoryID: "42"}, got)

	require.Len(t, client.calls, 1)
	c := client.calls[0]
	assert.Equal(t, "Task", c.ID)
	assert.Equal(t, ado.Patch{
		{Op: "add", Path: "/fields/System.Title", Value: "Write tests"},
		{Op: "add", Path: "/fields/System.Description", Value: "Add unit tests"},
		{Op: "add", Path: "/relations/-", Value: ado.Relation{
			Rel:        ado.LinkHierarchyReverse,
			URL:        "https://dev.azure.com/contoso/_apis/wit/workitems/42",
			Attributes: map[string]any{"comment": "Child of story"},
		}},
	}, c.Patch)
}

func TestCreateWithActiveForm(t *testing.T) {
	client := newFakeClient()
	client.created = &ado.WorkItem{ID: 5, Fields: map[string]any{}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.Create(context.Background(), &session.Session{StoryID: "42"}, "Run", "desc", "Running tests")
	require.NoError(t, err)
	assert.Equal(t, "Run", got.Title, "falls back to the subject")
	last := client.calls[0].Patch[len(client.calls[0].Patch)-1]
	assert.Equal(t, ado.Operation{Op: "add", Path: "/fields/System.History", Value: "Running tests"}, last)
}

func TestCreateWithoutStory(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	_, err := svc.Create(context.Background(), &session.Session{}, "a", "b", "")
	assert.ErrorIs(t, err, session.ErrNoActiveStory)
	assert.Empty(t, client.calls)
}

func TestUpdate(t *testing.T) {
	client := newFakeClient()
	client.items["7"] = &ado.WorkItem{ID: 7, Fields: map[string]any{ado.FieldTitle: "Old"}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.Update(context.Background(), &session.Session{StoryID: "42"}, "7", UpdateFields{
		Status:  StatusCompleted,
		Subject: "New",
		Owner:   "ada@example.com",
	})
	require.NoError(t, err)
	updated, ok := got.(*UpdatedTask)
	require.True(t, ok)
	assert.Equal(t, "New", *updated.Title)
	assert.Equal(t, "Closed", *updated.State)
	assert.Equal(t, ado.Patch{
		{Op: "add", Path: "/fields/System.State", Value: "Closed"},
		{Op: "add", Path: "/fields/System.Title", Value: "New"},
		{Op: "add", Path: "/fields/System.AssignedTo", Value: "ada@example.com"},
	}, client.calls[0].Patch)
}

func TestUpdateNoFields(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	got, err := svc.Update(context.Background(), &session.Session{StoryID: "42"}, "7", UpdateFields{})
	require.NoError(t, err)
	assert.Equal(t, &NoChanges{TaskID: "7", Message: "No fields to update"}, got)
	assert.Empty(t, client.calls)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"7","message":"No fields to update"}`, string(data))
}

func TestUpdateKeepsMissingFieldsAsNull(t *testing.T) {
	client := newFakeClient()
	client.items["7"] = &ado.WorkItem{ID: 7, Fields: map[string]any{}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.Update(context.Background(), &session.Session{StoryID: "42"}, "7", UpdateFields{Description: "d"})
	require.NoError(t, err)

	// The response carries no title or state.
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"7","title":null,"state":null}`, string(data))
}

func TestOperationsRequireActiveStory(t *testing.T) {
	ctx := context.Background()
	tests := map[string]func(svc *Service, sess *session.Session) error{
		"create": func(svc *Service, sess *session.Session) error {
			_, err := svc.Create(ctx, sess, "a", "b", "")
			return err
		},
		"update": func(svc *Service, sess *session.Session) error {
			_, err := svc.Update(ctx, sess, "7", UpdateFields{Subject: "x"})
			return err
		},
		"update without fields": func(svc *Service, sess *session.Session) error {
			_, err := svc.Update(ctx, sess, "7", UpdateFields{})
			return err
		},
		"list": func(svc *Service, sess *session.Session) error {
			_, err := svc.List(ctx, sess)
			return err
		},
		"get": func(svc *Service, sess *session.Session) error {
			_, err := svc.Get(ctx, sess, "7")
			return err
		},
		"link": func(svc *Service, sess *session.Session) error {
			_, err := svc.Link(ctx, sess, "7", "3")
			return err
		},
		"resolve": func(svc *Service, sess *session.Session) error {
			_, err := svc.ResolveStory(ctx, sess)
			return err
		},
	}
	for name, run := range tests {
		t.Run(name, func(t *testing.T) {
			for _, sess := range []*session.Session{nil, {}} {
				client := newFakeClient()
				err := run(NewService(client, &memorySessions{}), sess)
				require.Error(t, err)
				assert.ErrorIs(t, err, session.ErrNoActiveStory)
				assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
				assert.Empty(t, client.calls)
			}
		})
	}
}

func TestUpdateUnknownStatus(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	_, err := svc.Update(context.Background(), &session.Session{StoryID: "42"}, "7", UpdateFields{Status: "blocked"})
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Empty(t, client.calls)
}

func TestList(t *testing.T) {
	client := newFakeClient()
	client.query = &ado.QueryResult{WorkItemRelations: []ado.WorkItemLink{
		{},
		{Rel: ado.LinkHierarchyForward, Source: &ado.WorkItemReference{ID: 42}, Target: &ado.WorkItemReference{ID: 100}},
		{Rel: ado.LinkHierarchyForward, Source: &ado.WorkItemReference{ID: 42}, Target: &ado.WorkItemReference{ID: 101}},
	}}
	client.items["100"] = &ado.WorkItem{ID: 100, Fields: map[string]any{
		ado.FieldTitle:      "A",
		ado.FieldState:      "To Do",
		ado.FieldAssignedTo: map[string]any{"displayName": "Ada"},
	}}
	client.items["101"] = &ado.WorkItem{ID: 101, Fields: map[string]any{
		ado.FieldTitle:      "B",
		ado.FieldState:      "Active",
		ado.FieldAssignedTo: "grace@example.com",
	}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.List(context.Background(), &session.Session{StoryID: "42"})
	require.NoError(t, err)

	require.Equal(t, []string{"QueryByWIQL", "GetWorkItems"}, client.methods())
	assert.Contains(t, client.calls[0].Query, "[Source].[System.Id] = 42")
	assert.Equal(t, []string{"100", "101"}, client.calls[1].IDs)
	assert.Equal(t, []string{"System.Id", "System.Title", "System.State", "System.AssignedTo"}, client.calls[1].Fields)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"story_id": "42",
		"tasks": [
			{"task_id": "100", "title": "A", "state": "To Do", "owner": "Ada"},
			{"task_id": "101", "title": "B", "state": "Active", "owner": "grace@example.com"}
		]
	}`, string(data))
}

func TestListEmptySkipsBatchFetch(t *testing.T) {
	client := newFakeClient()
	client.query = &ado.QueryResult{WorkItemRelations: []ado.WorkItemLink{{}}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.List(context.Background(), &session.Session{StoryID: "42"})
	require.NoError(t, err)
	assert.Equal(t, []string{"QueryByWIQL"}, client.methods())

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"story_id": "42", "tasks": []}`, string(data))
}

func TestListRejectsNonNumericStory(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	_, err := svc.List(context.Background(), &session.Session{StoryID: "42'"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Empty(t, client.calls)
}

func TestListMine(t *testing.T) {
	client := newFakeClient()
	client.query = &ado.QueryResult{WorkItems: []ado.WorkItemReference{{ID: 200}, {ID: 201}}}
	client.items["200"] = &ado.WorkItem{ID: 200, Fields: map[string]any{
		ado.FieldTitle:  "Mine",
		ado.FieldState:  "Active",
		ado.FieldParent: json.Number("42"),
	}}
	client.items["201"] = &ado.WorkItem{ID: 201, Fields: map[string]any{
		ado.FieldTitle: "Orphan",
		ado.FieldState: "To Do",
	}}
	svc := NewService(client, &memorySessions{})

	got, err := svc.ListMine(context.Background())
	require.NoError(t, err)
	assert.Contains(t, client.calls[0].Query, "@Me")
	assert.Contains(t, client.calls[1].Fields, "System.Parent")

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks": [
		{"task_id": "200", "title": "Mine", "state": "Active", "owner": null, "parent_id": "42"},
		{"task_id": "201", "title": "Orphan", "state": "To Do", "owner": null, "parent_id": null}
	]}`, string(data))
}

func TestListMineEmpty(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	got, err := svc.ListMine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Tasks)
	assert.NotNil(t, got.Tasks)
	assert.Equal(t, []string{"QueryByWIQL"}, client.methods())
}

func TestGet(t *testing.T) {
	client := newFakeClient()
	client.items["7"] = &ado.WorkItem{
		ID: 7,
		Fields: map[string]any{
			ado.FieldTitle:       "T",
			ado.FieldDescription: "<p>d</p>",
			ado.FieldState:       "Active",
		},
		Relations: []ado.Relation{{Rel: ado.LinkDependencyForward, URL: "https://dev.azure.com/contoso/_apis/wit/workitems/3"}},
	}
	svc := NewService(client, &memorySessions{})

	got, err := svc.Get(context.Background(), &session.Session{StoryID: "42"}, "7")
	require.NoError(t, err)
	assert.True(t, client.calls[0].Expand)
	assert.Equal(t, "7", got.TaskID)
	assert.Equal(t, "<p>d</p>", *got.Description)
	assert.Nil(t, got.Owner)
	require.Len(t, got.Relations, 1)
	assert.Equal(t, map[string]any{}, got.Relations[0].Attributes)
}

func TestLink(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	got, err := svc.Link(context.Background(), &session.Session{StoryID: "42"}, "7", "3")
	require.NoError(t, err)
	assert.Equal(t, "Task #7 now depends on #3", got.Message)

	require.Len(t, client.calls, 1)
	assert.Equal(t, "UpdateWorkItem", client.calls[0].Method)
	assert.Equal(t, "7", client.calls[0].ID)
	assert.Equal(t, ado.Patch{{Op: "add", Path: "/relations/-", Value: ado.Relation{
		Rel:        ado.LinkDependencyForward,
		URL:        "https://dev.azure.com/contoso/_apis/wit/workitems/3",
		Attributes: map[string]any{"comment": "Depends on #3"},
	}}}, client.calls[0].Patch)
}

func TestResolveStory(t *testing.T) {
	client := newFakeClient()
	svc := NewService(client, &memorySessions{})

	got, err := svc.ResolveStory(context.Background(), &session.Session{StoryID: "42"})
	require.NoError(t, err)
	assert.Equal(t, &StoryResolution{StoryID: "42", State: "Resolved", Message: "Story #42 marked as Resolved."}, got)
	assert.Equal(t, ado.Patch{{Op: "add", Path: "/fields/System.State", Value: "Resolved"}}, client.calls[0].Patch)

	_, err = svc.ResolveStory(context.Background(), &session.Session{})
	assert.ErrorIs(t, err, session.ErrNoActiveStory)
}

func TestRemoteErrorPropagates(t *testing.T) {
	client := newFakeClient()
	client.failOn = "QueryByWIQL"
	client.err = &ado.Error{Method: "POST", URL: "u", StatusCode: 401, Body: "unauthorized"}
	svc := NewService(client, &memorySessions{})

	_, err := svc.ListMine(context.Background())
	var adoErr *ado.Error
	require.True(t, errors.As(err, &adoErr))
	assert.Equal(t, 401, adoErr.StatusCode)
}
