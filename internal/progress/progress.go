// Package progress tracks which images have been viewed and which have been
// saved. Appends are idempotent per id.
package progress

import (
	"context"
	"sort"
)

// Status of one image.
type Status int

const (
	Unviewed Status = iota
	Viewed
	Updated
)

func (s Status) String() string {
	switch s {
	case Viewed:
		return "viewed"
	case Updated:
		return "updated"
	default:
		return "unviewed"
	}
}

// Record is the viewed and updated id sets.
type Record struct {
	Viewed  map[string]struct{}
	Updated map[string]struct{}
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{Viewed: map[string]struct{}{}, Updated: map[string]struct{}{}}
}

// Status derives the state of id. Updated wins over viewed.
func (r Record) Status(id string) Status {
	if _, ok := r.Updated[id]; ok {
		return Updated
	}
	if _, ok := r.Viewed[id]; ok {
		return Viewed
	}
	return Unviewed
}

// MarkViewed adds id to the viewed set.
func (r *Record) MarkViewed(id string) {
	if r.Viewed == nil {
		r.Viewed = map[string]struct{}{}
	}
	r.Viewed[id] = struct{}{}
}

// MarkUpdated adds id to the updated set.
func (r *Record) MarkUpdated(id string) {
	if r.Updated == nil {
		r.Updated = map[string]struct{}{}
	}
	r.Updated[id] = struct{}{}
}

// Wire is the JSON form: sorted id lists.
type Wire struct {
	Viewed  []string `json:"viewed"`
	Updated []string `json:"updated"`
}

// ToWire sorts the sets into lists.
func (r Record) ToWire() Wire {
	return Wire{Viewed: sortedKeys(r.Viewed), Updated: sortedKeys(r.Updated)}
}

// FromWire builds a record from lists.
func FromWire(w Wire) Record {
	r := NewRecord()
	for _, id := range w.Viewed {
		r.MarkViewed(id)
	}
	for _, id := range w.Updated {
		r.MarkUpdated(id)
	}
	return r
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tracker persists a Record.
type Tracker interface {
	Load(ctx context.Context) (Record, error)
	MarkViewed(ctx context.Context, id string) error
	MarkUpdated(ctx context.Context, id string) error
	Close() error
}
