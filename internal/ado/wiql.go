package ado

import (
	"fmt"
	"strconv"

	"github.com/kazz187/adotask/pkg/cerr"
)

// ChildTasksQuery selects the Task children of a story through its
// hierarchy links. The result contains one row for the story itself, which
// has no target.
func ChildTasksQuery(storyID string) (string, error) {
	if _, err := strconv.ParseUint(storyID, 10, 64); err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("story id %q is not a work item id", storyID), err)
	}
	return fmt.Sprintf(`SELECT [System.Id], [System.Title], [System.State], [System.AssignedTo]
FROM WorkItemLinks
WHERE [Source].[System.Id] = %s
  AND [System.Links.LinkType] = '%s'
  AND [Target].[System.WorkItemType] = '%s'
MODE (MayContain)`, storyID, LinkHierarchyForward, TypeTask), nil
}

// MyTasksQuery selects the caller's non-removed Tasks, most recently changed
// first.
func MyTasksQuery() string {
	return fmt.Sprintf(`SELECT [System.Id], [System.Title], [System.State], [System.AssignedTo], [System.Parent]
FROM WorkItems
WHERE [System.WorkItemType] = '%s'
  AND [System.AssignedTo] = @Me
  AND [System.State] <> 'Removed'
ORDER BY [System.ChangedDate] DESC`, TypeTask)
}
