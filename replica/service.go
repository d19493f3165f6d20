package replica

import (
	"os"
	"sync"

	"encoding/json"
	"path/filepath"

	"github.com/numbleroot/lwwdict/clock"
	"github.com/numbleroot/lwwdict/crdt"
	"github.com/pkg/errors"
)

// Structs

// Service defines the interface a replica in
// an lwwdict network provides.
type Service interface {

	// Name returns the name of this replica.
	Name() string

	// Now returns a fresh timestamp ordered after all
	// timestamps this replica has written or observed.
	Now() float64

	// Apply executes an add, update or remove
	// operation against the local dictionary.
	Apply(op *crdt.Op)

	// Value looks up the current value of key.
	Value(key string) (string, bool)

	// Merge joins state received from another replica
	// into the local dictionary. It reports whether the
	// local state changed.
	Merge(state crdt.State[string, string]) bool

	// State returns a snapshot of the local dictionary.
	State() crdt.State[string, string]

	// Len returns the number of keys currently present.
	Len() int

	// Save writes the local state to stable storage
	// if it changed since the last Save.
	Save() error
}

type service struct {
	lock      *sync.RWMutex
	name      string
	statePath string
	dirty     bool
	clock     *clock.Clock
	dict      *crdt.Dict[string, string]
}

// Functions

// Open returns a replica named name that persists its
// state at statePath. Existing state at that path is
// loaded. An empty statePath keeps the replica in memory.
func Open(name string, statePath string, clk *clock.Clock) (Service, error) {

	s := &service{
		lock:      new(sync.RWMutex),
		name:      name,
		statePath: statePath,
		clock:     clk,
		dict:      crdt.New[string, string](),
	}

	if statePath == "" {
		return s, nil
	}

	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading replica state from '%s' failed", statePath)
	}

	var state crdt.State[string, string]

	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "decoding replica state from '%s' failed", statePath)
	}

	s.dict = crdt.FromState(state)
	s.clock.Observe(maxTimestamp(state))

	return s, nil
}

// Name returns the name of this replica.
func (s *service) Name() string {
	return s.name
}

// Now returns the next timestamp of the replica clock.
func (s *service) Now() float64 {
	return s.clock.Now()
}

// Apply executes op against the local dictionary.
func (s *service) Apply(op *crdt.Op) {

	s.lock.Lock()
	defer s.lock.Unlock()

	op.Apply(s.dict)
	s.clock.Observe(op.Timestamp)
	s.dirty = true
}

// Value looks up key in the local dictionary.
func (s *service) Value(key string) (string, bool) {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.dict.Value(key)
}

// Merge joins state into the local dictionary. The local
// dictionary is the left operand, thus records of equal
// timestamp already present here are kept.
func (s *service) Merge(state crdt.State[string, string]) bool {

	remote := crdt.FromState(state)

	s.lock.Lock()
	defer s.lock.Unlock()

	merged := s.dict.Merge(remote)
	changed := !merged.Equal(s.dict)

	s.dict = merged
	s.clock.Observe(maxTimestamp(state))

	if changed {
		s.dirty = true
	}

	return changed
}

// State returns a snapshot of the local dictionary.
func (s *service) State() crdt.State[string, string] {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.dict.State()
}

// Len returns the number of present keys.
func (s *service) Len() int {

	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.dict.Len()
}

// Save atomically replaces the state file with the
// current state of the dictionary.
func (s *service) Save() error {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.statePath == "" || !s.dirty {
		return nil
	}

	data, err := json.Marshal(s.dict.State())
	if err != nil {
		return errors.Wrap(err, "encoding replica state failed")
	}

	if err := writeFileAtomic(s.statePath, data); err != nil {
		return err
	}

	s.dirty = false

	return nil
}

// writeFileAtomic writes data to a temporary file next
// to path, syncs it and renames it to path afterwards.
func writeFileAtomic(path string, data []byte) error {

	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, "creating state directory '%s' failed", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temporary state file failed")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temporary state file failed")
	}

	// Make sure to write to stable storage before renaming.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "syncing temporary state file failed")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary state file failed")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "replacing state file failed")
}

// maxTimestamp returns the greatest timestamp in state.
func maxTimestamp(state crdt.State[string, string]) float64 {

	latest := 0.0

	for _, h := range []map[string]crdt.Record[string]{state.Additions, state.Removals} {

		for _, rec := range h {

			if rec.Timestamp > latest {
				latest = rec.Timestamp
			}
		}
	}

	return latest
}
