package tool

import (
	"encoding/json"
	"fmt"
)

// ID is a work item id. Clients send it as a string, but a bare number is
// accepted too.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("work item id must be a string or a number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

type setStoryArgs struct {
	StoryID ID `json:"story_id"`
}

type taskCreateArgs struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	ActiveForm  string `json:"active_form"`
}

type taskUpdateArgs struct {
	TaskID      ID     `json:"task_id"`
	Status      string `json:"status"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
}

type taskGetArgs struct {
	TaskID ID `json:"task_id"`
}

type taskLinkArgs struct {
	TaskID      ID `json:"task_id"`
	DependsOnID ID `json:"depends_on_id"`
}

type noArgs struct{}
