package layout

// Owner is implemented by records that own attachments.
//
// ProjectRef reports the project the record's files belong to. ok is false
// when the project cannot be resolved (nil receiver, unsaved record, missing
// preload). Implementations must be safe to call on a nil receiver.
type Owner interface {
	ProjectRef() (id uint, name string, ok bool)
}

// Ref is a plain (id, name) pair that satisfies Owner, for callers that only
// hold identifiers such as the CLI.
type Ref struct {
	ID   uint
	Name string
}

// ProjectRef implements Owner. A zero ID is unresolvable.
func (r Ref) ProjectRef() (uint, string, bool) {
	return r.ID, r.Name, r.ID != 0
}
