package ado

// Operation is one JSON-patch entry. The adapter only ever emits "add".
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Patch is an ordered JSON-patch document.
type Patch []Operation

const appendRelationPath = "/relations/-"

func fieldPath(field string) string {
	return "/fields/" + field
}

// SetField appends an "add" for a field value.
func (p Patch) SetField(field string, value any) Patch {
	return append(p, Operation{Op: "add", Path: fieldPath(field), Value: value})
}

// AddRelation appends rel to the item's existing relations. The "-" index
// appends instead of replacing the collection.
func (p Patch) AddRelation(rel Relation) Patch {
	return append(p, Operation{Op: "add", Path: appendRelationPath, Value: rel})
}
