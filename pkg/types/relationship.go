package types

import "time"

// Relationship is a directed, typed edge between two entities. (From, To,
// Type) is unique; re-asserting it updates Description and Chapter in place.
type Relationship struct {
	ID             int64     `json:"id"`
	From           EntityRef `json:"from"`
	To             EntityRef `json:"to"`
	Type           string    `json:"type"`                  // Free-form label (ally, rival, master_of ...)
	Description    string    `json:"description,omitempty"` // Latest description
	Chapter        int       `json:"chapter"`               // Chapter of the latest assertion
	CreatedChapter int       `json:"created_chapter"`       // Chapter of the first assertion
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Other returns the endpoint opposite ref.
func (r Relationship) Other(ref EntityRef) EntityRef {
	if r.From == ref {
		return r.To
	}
	return r.From
}
