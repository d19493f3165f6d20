package crdt

// Structs

// Record is one timestamped event recorded for a key.
// Additions carry a value, removals leave Value nil.
type Record[V any] struct {
	Value     *V      `json:"value,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

// history maps each key to its most recent record.
type history[K comparable, V any] map[K]Record[V]

// Dict is a last-write-wins element dictionary. It
// consists of an addition and a removal history, both
// keyed by K. The zero value is an empty dictionary
// ready to use.
type Dict[K comparable, V any] struct {
	additions history[K, V]
	removals  history[K, V]
}

// State is a detached copy of both histories of a Dict,
// suitable for serialization and shipping to replicas.
type State[K comparable, V any] struct {
	Additions map[K]Record[V] `json:"additions"`
	Removals  map[K]Record[V] `json:"removals"`
}

// Functions

// New returns an empty initialized dictionary.
func New[K comparable, V any]() *Dict[K, V] {

	return &Dict[K, V]{
		additions: make(history[K, V]),
		removals:  make(history[K, V]),
	}
}

// FromState builds a fresh dictionary out of supplied
// state. The dictionary does not share memory with it.
func FromState[K comparable, V any](s State[K, V]) *Dict[K, V] {

	return &Dict[K, V]{
		additions: copyHistory(s.Additions),
		removals:  copyHistory(s.Removals),
	}
}

// Add records an addition of value under key at timestamp.
// The new record replaces the stored one unless the stored
// one carries a strictly greater timestamp. On equal
// timestamps the latest call wins.
func (d *Dict[K, V]) Add(key K, value V, timestamp float64) {

	if d.additions == nil {
		d.additions = make(history[K, V])
	}

	assign(d.additions, key, Record[V]{Value: &value, Timestamp: timestamp})
}

// Update replaces the value of an already added key if
// timestamp is at least as recent as the stored addition.
// It never creates a key and leaves removals untouched.
func (d *Dict[K, V]) Update(key K, value V, timestamp float64) {

	cur, found := d.additions[key]
	if !found || !(timestamp >= cur.Timestamp) {
		return
	}

	d.additions[key] = Record[V]{Value: &value, Timestamp: timestamp}
}

// Remove records a removal of key at timestamp, following
// the same overwrite policy as Add.
func (d *Dict[K, V]) Remove(key K, timestamp float64) {

	if d.removals == nil {
		d.removals = make(history[K, V])
	}

	assign(d.removals, key, Record[V]{Timestamp: timestamp})
}

// Value looks up key. It reports false if key was never
// added or if its latest removal is strictly more recent
// than its latest addition.
func (d *Dict[K, V]) Value(key K) (V, bool) {

	var zero V

	if d == nil {
		return zero, false
	}

	added, found := d.additions[key]
	if !found || added.Value == nil {
		return zero, false
	}

	// Additions win ties against removals.
	if removed, found := d.removals[key]; found && !(added.Timestamp >= removed.Timestamp) {
		return zero, false
	}

	return *added.Value, true
}

// Merge joins d and other into a new dictionary. For every
// key in either history the record with the greater timestamp
// is kept. Equal timestamps keep the record of d, the left
// operand. Neither input is modified.
func (d *Dict[K, V]) Merge(other *Dict[K, V]) *Dict[K, V] {

	leftAdds, leftRmvs := d.histories()
	rightAdds, rightRmvs := other.histories()

	return &Dict[K, V]{
		additions: mergeHistories(leftAdds, rightAdds),
		removals:  mergeHistories(leftRmvs, rightRmvs),
	}
}

// Equal reports whether d and other hold the same keys with
// identical timestamps in both of their histories. Values are
// not compared, so this is a convergence check rather than
// full value equality.
func (d *Dict[K, V]) Equal(other *Dict[K, V]) bool {

	leftAdds, leftRmvs := d.histories()
	rightAdds, rightRmvs := other.histories()

	return sameTimestamps(leftAdds, rightAdds) && sameTimestamps(leftRmvs, rightRmvs)
}

// Len returns the number of keys currently present.
func (d *Dict[K, V]) Len() int {

	n := 0

	d.Range(func(K, V) bool {
		n++
		return true
	})

	return n
}

// Range calls fn for every present key and its value in
// no particular order. It stops as soon as fn returns false.
func (d *Dict[K, V]) Range(fn func(key K, value V) bool) {

	if d == nil {
		return
	}

	for key := range d.additions {

		value, ok := d.Value(key)
		if !ok {
			continue
		}

		if !fn(key, value) {
			return
		}
	}
}

// State returns a deep copy of both histories of d.
func (d *Dict[K, V]) State() State[K, V] {

	adds, rmvs := d.histories()

	return State[K, V]{
		Additions: copyHistory(adds),
		Removals:  copyHistory(rmvs),
	}
}

// histories returns both histories of d. A nil
// dictionary yields two nil, and thus empty, maps.
func (d *Dict[K, V]) histories() (history[K, V], history[K, V]) {

	if d == nil {
		return nil, nil
	}

	return d.additions, d.removals
}

// assign stores rec at key unless the record already
// in place is strictly more recent.
func assign[K comparable, V any](h history[K, V], key K, rec Record[V]) {

	if cur, found := h[key]; found && cur.Timestamp > rec.Timestamp {
		return
	}

	h[key] = rec
}

// mergeHistories builds the union of left and right,
// preferring the more recent record per key and left
// on equal timestamps.
func mergeHistories[K comparable, V any](left history[K, V], right history[K, V]) history[K, V] {

	merged := make(history[K, V], len(left))

	for key, rec := range left {
		merged[key] = rec.clone()
	}

	for key, rec := range right {

		if cur, found := merged[key]; found && cur.Timestamp >= rec.Timestamp {
			continue
		}

		merged[key] = rec.clone()
	}

	return merged
}

// sameTimestamps compares two histories by key
// set and timestamp per key.
func sameTimestamps[K comparable, V any](a history[K, V], b history[K, V]) bool {

	if len(a) != len(b) {
		return false
	}

	for key, recA := range a {

		recB, found := b[key]
		if !found || recA.Timestamp != recB.Timestamp {
			return false
		}
	}

	return true
}

// copyHistory deep-copies h into a fresh map.
func copyHistory[K comparable, V any](h map[K]Record[V]) history[K, V] {

	c := make(history[K, V], len(h))

	for key, rec := range h {
		c[key] = rec.clone()
	}

	return c
}

// clone returns a copy of r that does not share
// its value with r.
func (r Record[V]) clone() Record[V] {

	if r.Value == nil {
		return r
	}

	value := *r.Value

	return Record[V]{Value: &value, Timestamp: r.Timestamp}
}
