package models

// PatchOp is the kind of change reported for one row
type PatchOp string

const (
	PatchInsert PatchOp = "insert"
	PatchRemove PatchOp = "remove"
	PatchUpdate PatchOp = "update"
)

// FieldChange is one field whose displayed value changed
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Patch is a minimal update for one row of the display
type Patch struct {
	Op      PatchOp       `json:"op"`
	Key     string        `json:"key"`
	Row     *Row          `json:"row,omitempty"`
	Changes []FieldChange `json:"changes,omitempty"`
}

// EventKind tells subscribers how to apply an Event
type EventKind string

const (
	EventReplace EventKind = "replace"
	EventPatch   EventKind = "patch"
	EventError   EventKind = "error"
)

// Event is delivered to session subscribers
type Event struct {
	Kind       EventKind `json:"kind"`
	Generation uint64    `json:"generation"`
	Rows       []Row     `json:"rows,omitempty"`
	Patches    []Patch   `json:"patches,omitempty"`
	Err        error     `json:"-"`
}
