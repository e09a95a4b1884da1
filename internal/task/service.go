package task

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kazz187/adotask/internal/ado"
	"github.com/kazz187/adotask/internal/session"
)

// WorkItemClient is the subset of the Azure DevOps client the operations
// use.
type WorkItemClient interface {
	OrgURL() string
	GetWorkItem(ctx context.Context, id string, expandRelations bool) (*ado.WorkItem, error)
	UpdateWorkItem(ctx context.Context, id string, patch ado.Patch) (*ado.WorkItem, error)
	CreateWorkItem(ctx context.Context, workItemType string, patch ado.Patch) (*ado.WorkItem, error)
	GetWorkItems(ctx context.Context, ids []string, fields []string) ([]*ado.WorkItem, error)
	QueryByWIQL(ctx context.Context, query string) (*ado.QueryResult, error)
}

type SessionSaver interface {
	Save(ctx context.Context, s *session.Session) error
}

// Service implements the story and task operations. Every task operation
// except ListMine requires an active story in the caller's Session; only
// SetStory changes it.
type Service struct {
	client   WorkItemClient
	sessions SessionSaver
}

func NewService(client WorkItemClient, sessions SessionSaver) *Service {
	return &Service{
		client:   client,
		sessions: sessions,
	}
}

// SetStory selects storyID as the active story and moves it to Active when
// it has not started yet. The selection is saved before the transition, so
// it sticks even if the transition fails.
func (s *Service) SetStory(ctx context.Context, sess *session.Session, storyID string) (*StorySelection, error) {
	wi, err := s.client.GetWorkItem(ctx, storyID, false)
	if err != nil {
		return nil, err
	}
	title := "(unknown)"
	if v := wi.StringField(ado.FieldTitle); v != nil {
		title = *v
	}
	workItemType := deref(wi.StringField(ado.FieldWorkItemType))
	state := deref(wi.StringField(ado.FieldState))

	sess.StoryID = storyID
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	sel := &StorySelection{
		StoryID: storyID,
		Title:   title,
		Type:    workItemType,
		State:   state,
		Message: fmt.Sprintf("Active story set to #%s: %s", storyID, title),
	}
	if !StoryNeedsActivation(state) {
		return sel, nil
	}
	patch := ado.Patch{}.SetField(ado.FieldState, StoryStateActive)
	if _, err := s.client.UpdateWorkItem(ctx, storyID, patch); err != nil {
		return nil, err
	}
	sel.State = StoryStateActive
	sel.Message += " (moved to Active)"
	return sel, nil
}

// Create adds a Task under the active story. activeForm, when set, is
// recorded as a history entry.
func (s *Service) Create(ctx context.Context, sess *session.Session, subject, description, activeForm string) (*CreatedTask, error) {
	storyID, err := sess.ActiveStoryID()
	if err != nil {
		return nil, err
	}
	patch := ado.Patch{}.
		SetField(ado.FieldTitle, subject).
		SetField(ado.FieldDescription, description).
		AddRelation(ado.ChildLink(s.client.OrgURL(), storyID))
	if activeForm != "" {
		patch = patch.SetField(ado.FieldHistory, activeForm)
	}

	wi, err := s.client.CreateWorkItem(ctx, ado.TypeTask, patch)
	if err != nil {
		return nil, err
	}
	title := subject
	if v := wi.StringField(ado.FieldTitle); v != nil {
		title = *v
	}
	return &CreatedTask{
		TaskID:        strconv.Itoa(wi.ID),
		Title:         title,
		ParentStoryID: storyID,
	}, nil
}

// Update patches the supplied fields of a task under the active story. With
// nothing to change it returns NoChanges without calling the service.
func (s *Service) Update(ctx context.Context, sess *session.Session, taskID string, fields UpdateFields) (UpdateResult, error) {
	if _, err := sess.ActiveStoryID(); err != nil {
		return nil, err
	}
	patch := ado.Patch{}
	if fields.Status != "" {
		state, err := ToRemoteState(fields.Status)
		if err != nil {
			return nil, err
		}
		patch = patch.SetField(ado.FieldState, state)
	}
	if fields.Subject != "" {
		patch = patch.SetField(ado.FieldTitle, fields.Subject)
	}
	if fields.Description != "" {
		patch = patch.SetField(ado.FieldDescription, fields.Description)
	}
	if fields.Owner != "" {
		patch = patch.SetField(ado.FieldAssignedTo, fields.Owner)
	}
	if len(patch) == 0 {
		return &NoChanges{TaskID: taskID, Message: "No fields to update"}, nil
	}

	wi, err := s.client.UpdateWorkItem(ctx, taskID, patch)
	if err != nil {
		return nil, err
	}
	return &UpdatedTask{
		TaskID: taskID,
		Title:  wi.StringField(ado.FieldTitle),
		State:  wi.StringField(ado.FieldState),
	}, nil
}

func (s *Service) List(ctx context.Context, sess *session.Session) (*StoryTasks, error) {
	storyID, err := sess.ActiveStoryID()
	if err != nil {
		return nil, err
	}
	tasks, err := s.listStoryTasks(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return &StoryTasks{StoryID: storyID, Tasks: tasks}, nil
}

// ListMine lists Tasks assigned to the authenticated user across the
// project. It does not need an active story.
func (s *Service) ListMine(ctx context.Context) (*AssignedTasks, error) {
	tasks, err := s.listAssignedTasks(ctx)
	if err != nil {
		return nil, err
	}
	return &AssignedTasks{Tasks: tasks}, nil
}

func (s *Service) Get(ctx context.Context, sess *session.Session, taskID string) (*Detail, error) {
	if _, err := sess.ActiveStoryID(); err != nil {
		return nil, err
	}
	wi, err := s.client.GetWorkItem(ctx, taskID, true)
	if err != nil {
		return nil, err
	}
	relations := make([]ado.Relation, 0, len(wi.Relations))
	for _, rel := range wi.Relations {
		if rel.Attributes == nil {
			rel.Attributes = map[string]any{}
		}
		relations = append(relations, rel)
	}
	return &Detail{
		TaskID:      strconv.Itoa(wi.ID),
		Title:       wi.StringField(ado.FieldTitle),
		Description: wi.StringField(ado.FieldDescription),
		State:       wi.StringField(ado.FieldState),
		Owner:       wi.IdentityField(ado.FieldAssignedTo),
		Relations:   relations,
	}, nil
}

// Link makes taskID depend on dependsOnID by appending one relation.
func (s *Service) Link(ctx context.Context, sess *session.Session, taskID, dependsOnID string) (*Dependency, error) {
	if _, err := sess.ActiveStoryID(); err != nil {
		return nil, err
	}
	patch := ado.Patch{}.AddRelation(ado.DependencyLink(s.client.OrgURL(), dependsOnID))
	if _, err := s.client.UpdateWorkItem(ctx, taskID, patch); err != nil {
		return nil, err
	}
	return &Dependency{
		TaskID:      taskID,
		DependsOnID: dependsOnID,
		Message:     fmt.Sprintf("Task #%s now depends on #%s", taskID, dependsOnID),
	}, nil
}

func (s *Service) ResolveStory(ctx context.Context, sess *session.Session) (*StoryResolution, error) {
	storyID, err := sess.ActiveStoryID()
	if err != nil {
		return nil, err
	}
	patch := ado.Patch{}.SetField(ado.FieldState, StoryStateResolved)
	if _, err := s.client.UpdateWorkItem(ctx, storyID, patch); err != nil {
		return nil, err
	}
	return &StoryResolution{
		StoryID: storyID,
		State:   StoryStateResolved,
		Message: fmt.Sprintf("Story #%s marked as Resolved.", storyID),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
