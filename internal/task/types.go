package task

import "github.com/kazz187/adotask/internal/ado"

type StorySelection struct {
	StoryID string `json:"story_id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	State   string `json:"state"`
	Message string `json:"message"`
}

type CreatedTask struct {
	TaskID        string `json:"task_id"`
	Title         string `json:"title"`
	ParentStoryID string `json:"parent_story_id"`
}

// UpdateFields holds the optional task_update arguments. Empty values are
// not sent.
type UpdateFields struct {
	Status      Status
	Subject     string
	Description string
	Owner       string
}

// UpdateResult is either an UpdatedTask or NoChanges.
type UpdateResult interface {
	updateResult()
}

type UpdatedTask struct {
	TaskID string  `json:"task_id"`
	Title  *string `json:"title"`
	State  *string `json:"state"`
}

// NoChanges is returned when an update names no field to change.
type NoChanges struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

func (*UpdatedTask) updateResult() {}
func (*NoChanges) updateResult()   {}

type Summary struct {
	TaskID string  `json:"task_id"`
	Title  *string `json:"title"`
	State  *string `json:"state"`
	Owner  *string `json:"owner"`
}

type StoryTasks struct {
	StoryID string     `json:"story_id"`
	Tasks   []*Summary `json:"tasks"`
}

type AssignedSummary struct {
	Summary
	ParentID *string `json:"parent_id"`
}

type AssignedTasks struct {
	Tasks []*AssignedSummary `json:"tasks"`
}

type Detail struct {
	TaskID      string         `json:"task_id"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	State       *string        `json:"state"`
	Owner       *string        `json:"owner"`
	Relations   []ado.Relation `json:"relations"`
}

type Dependency struct {
	TaskID      string `json:"task_id"`
	DependsOnID string `json:"depends_on_id"`
	Message     string `json:"message"`
}

type StoryResolution struct {
	StoryID string `json:"story_id"`
	State   string `json:"state"`
	Message string `json:"message"`
}
