package memory

import "container/list"

// SessionSet is an insertion-ordered set of session IDs.
//
// It is not safe for concurrent use; the Store serializes access.
type SessionSet struct {
	order *list.List
	items map[string]*list.Element
}

// NewSessionSet creates a new session set.
func NewSessionSet() *SessionSet {
	return &SessionSet{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Add appends a session ID. Adding an ID already present keeps its position.
func (s *SessionSet) Add(id string) {
	if _, ok := s.items[id]; ok {
		return
	}
	s.items[id] = s.order.PushBack(id)
}

// Remove removes a session ID from the set.
func (s *SessionSet) Remove(id string) {
	e, ok := s.items[id]
	if !ok {
		return
	}
	s.order.Remove(e)
	delete(s.items, id)
}

// Contains checks if a session ID is in the set.
func (s *SessionSet) Contains(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Len returns the number of items in the set.
func (s *SessionSet) Len() int {
	return len(s.items)
}

// Oldest returns the first-inserted ID.
func (s *SessionSet) Oldest() (string, bool) {
	e := s.order.Front()
	if e == nil {
		return "", false
	}
	return e.Value.(string), true
}

// Items returns the IDs in insertion order.
func (s *SessionSet) Items() []string {
	items := make([]string, 0, len(s.items))
	for e := s.order.Front(); e != nil; e = e.Next() {
		items = append(items, e.Value.(string))
	}
	return items
}

// UserIndex maps a UserID to the ordered set of its SessionIDs.
//
// An ID is present in a user's set iff the Store holds a record with that
// ID owned by that user. Empty sets are dropped.
type UserIndex struct {
	index map[string]*SessionSet
}

// NewUserIndex creates a new user index.
func NewUserIndex() *UserIndex {
	return &UserIndex{
		index: make(map[string]*SessionSet),
	}
}

// Add appends a session to the user's set.
func (i *UserIndex) Add(userID, sessionID string) {
	set, ok := i.index[userID]
	if !ok {
		set = NewSessionSet()
		i.index[userID] = set
	}
	set.Add(sessionID)
}

// Remove removes a session from the user's set.
func (i *UserIndex) Remove(userID, sessionID string) {
	set, ok := i.index[userID]
	if !ok {
		return
	}

	set.Remove(sessionID)

	if set.Len() == 0 {
		delete(i.index, userID)
	}
}

// Oldest returns the first-inserted session of a user.
func (i *UserIndex) Oldest(userID string) (string, bool) {
	set, ok := i.index[userID]
	if !ok {
		return "", false
	}
	return set.Oldest()
}

// Get returns the user's session IDs in insertion order.
func (i *UserIndex) Get(userID string) []string {
	set, ok := i.index[userID]
	if !ok {
		return nil
	}
	return set.Items()
}

// Count returns the number of sessions for a user.
func (i *UserIndex) Count(userID string) int {
	set, ok := i.index[userID]
	if !ok {
		return 0
	}
	return set.Len()
}

// Has reports whether the user has an index entry.
func (i *UserIndex) Has(userID string) bool {
	_, ok := i.index[userID]
	return ok
}

// Users returns the number of users with at least one session.
func (i *UserIndex) Users() int {
	return len(i.index)
}

// Clear removes all sessions for a user.
func (i *UserIndex) Clear(userID string) {
	delete(i.index, userID)
}
