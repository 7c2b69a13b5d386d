package storage

import "strings"

// TagLookup maps tag ids to names and back. It is immutable; the
// repository swaps in a new one whenever tags are created.
type TagLookup struct {
	nameByID map[int64]string
	idByName map[string]int64
	order    []int64
}

func newTagLookup(tags []Tag) *TagLookup {
	l := &TagLookup{
		nameByID: make(map[int64]string, len(tags)),
		idByName: make(map[string]int64, len(tags)),
		order:    make([]int64, 0, len(tags)),
	}
	for _, t := range tags {
		l.nameByID[t.ID] = t.Name
		l.idByName[strings.ToLower(t.Name)] = t.ID
		l.order = append(l.order, t.ID)
	}
	return l
}

// Name returns the tag name for id.
func (l *TagLookup) Name(id int64) (string, bool) {
	name, ok := l.nameByID[id]
	return name, ok
}

// ID returns the id of the tag called name, ignoring case.
func (l *TagLookup) ID(name string) (int64, bool) {
	id, ok := l.idByName[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// Names returns every tag name in creation order.
func (l *TagLookup) Names() []string {
	out := make([]string, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.nameByID[id])
	}
	return out
}

func (l *TagLookup) Len() int {
	return len(l.order)
}
