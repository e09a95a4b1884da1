package ado

import (
	"net/url"
)

// Link types used by the adapter.
const (
	LinkHierarchyForward  = "System.LinkTypes.Hierarchy-Forward"
	LinkHierarchyReverse  = "System.LinkTypes.Hierarchy-Reverse"
	LinkDependencyForward = "System.LinkTypes.Dependency-Forward"
)

type Relation struct {
	Rel        string         `json:"rel"`
	URL        string         `json:"url"`
	Attributes map[string]any `json:"attributes"`
}

func workItemURL(orgURL, id string) string {
	return orgURL + "/_apis/wit/workitems/" + url.PathEscape(id)
}

// ChildLink points a new task at its parent story.
func ChildLink(orgURL, storyID string) Relation {
	return Relation{
		Rel:        LinkHierarchyReverse,
		URL:        workItemURL(orgURL, storyID),
		Attributes: map[string]any{"comment": "Child of story"},
	}
}

// DependencyLink makes the patched item depend on dependsOnID.
func DependencyLink(orgURL, dependsOnID string) Relation {
	return Relation{
		Rel:        LinkDependencyForward,
		URL:        workItemURL(orgURL, dependsOnID),
		Attributes: map[string]any{"comment": "Depends on #" + dependsOnID},
	}
}
