package comm

import (
	"sort"

	"github.com/numbleroot/lwwdict/crdt"
)

// Structs

// Entry is one record of a history in transit.
// Value is nil for removals.
type Entry struct {
	Key       string  `json:"key"`
	Value     *string `json:"value,omitempty"`
	Timestamp float64 `json:"ts"`
}

// StateMsg carries the complete state of the
// dictionary of the sending replica.
type StateMsg struct {
	Replica   string  `json:"replica"`
	Additions []Entry `json:"additions"`
	Removals  []Entry `json:"removals"`
}

// PullReq asks a replica for its state.
type PullReq struct {
	Replica string `json:"replica"`
}

// Conf confirms an applied StateMsg.
type Conf struct {
	Replica string `json:"replica"`
	Changed bool   `json:"changed"`
}

// Functions

// NewStateMsg turns state of replica into a message.
// Entries are sorted by key.
func NewStateMsg(replica string, state crdt.State[string, string]) *StateMsg {

	return &StateMsg{
		Replica:   replica,
		Additions: toEntries(state.Additions),
		Removals:  toEntries(state.Removals),
	}
}

// State turns msg back into a dictionary state. If a key
// appears more than once in a history, the entry with the
// greatest timestamp is used.
func (msg *StateMsg) State() crdt.State[string, string] {

	return crdt.State[string, string]{
		Additions: fromEntries(msg.Additions),
		Removals:  fromEntries(msg.Removals),
	}
}

func toEntries(h map[string]crdt.Record[string]) []Entry {

	entries := make([]Entry, 0, len(h))

	for key, rec := range h {
		entries = append(entries, Entry{
			Key:       key,
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})

	return entries
}

func fromEntries(entries []Entry) map[string]crdt.Record[string] {

	h := make(map[string]crdt.Record[string], len(entries))

	for _, e := range entries {

		if cur, found := h[e.Key]; found && cur.Timestamp > e.Timestamp {
			continue
		}

		h[e.Key] = crdt.Record[string]{Value: e.Value, Timestamp: e.Timestamp}
	}

	return h
}
