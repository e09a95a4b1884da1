package tool

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/kazz187/adotask/internal/task"
)

func stringProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func object(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if properties == nil {
		properties = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func statusEnum() []any {
	values := make([]any, len(task.Statuses))
	for i, s := range task.Statuses {
		values[i] = string(s)
	}
	return values
}

var (
	setStorySchema = object(map[string]*jsonschema.Schema{
		"story_id": stringProp("ADO Work Item ID of the User Story"),
	}, "story_id")

	taskCreateSchema = object(map[string]*jsonschema.Schema{
		"subject":     stringProp("Task title"),
		"description": stringProp("Task description (HTML or plain text)"),
		"active_form": stringProp("Present-continuous label (e.g. 'Running tests')"),
	}, "subject", "description")

	taskUpdateSchema = object(map[string]*jsonschema.Schema{
		"task_id": stringProp("ADO Work Item ID of the Task"),
		"status": {
			Type: "string",
			Enum: statusEnum(),
		},
		"subject":     {Type: "string"},
		"description": {Type: "string"},
		"owner":       stringProp("Assignee email or display name"),
	}, "task_id")

	taskGetSchema = object(map[string]*jsonschema.Schema{
		"task_id": stringProp("ADO Work Item ID"),
	}, "task_id")

	taskLinkSchema = object(map[string]*jsonschema.Schema{
		"task_id":       stringProp("The dependent task (successor)"),
		"depends_on_id": stringProp("The task it depends on (predecessor)"),
	}, "task_id", "depends_on_id")
)
