package crdt

import (
	"math"
	"testing"
)

// Functions

// TestUpdateNothing executes a white-box unit test
// on Update() against a key that was never added.
func TestUpdateNothing(t *testing.T) {

	d := New[string, string]()

	d.Update("key", "value", 10)

	if value, ok := d.Value("key"); ok {
		t.Fatalf("[crdt.TestUpdateNothing] Expected 'key' to be absent after Update() on empty dictionary but found '%s'.\n", value)
	}

	if len(d.additions) != 0 {
		t.Fatalf("[crdt.TestUpdateNothing] Expected addition history to stay empty but len(d.additions) returned %d\n", len(d.additions))
	}
}

// TestZeroValue makes sure an uninitialized
// dictionary can be used right away.
func TestZeroValue(t *testing.T) {

	var d Dict[string, int]

	if _, ok := d.Value("a"); ok {
		t.Fatalf("[crdt.TestZeroValue] Expected 'a' to be absent in zero dictionary.\n")
	}

	d.Update("a", 1, 1)
	d.Remove("a", 1)
	d.Add("a", 2, 1)

	if value, ok := d.Value("a"); !ok || value != 2 {
		t.Fatalf("[crdt.TestZeroValue] Expected 2 for 'a' but got (%d, %v).\n", value, ok)
	}

	var nilDict *Dict[string, int]

	if _, ok := nilDict.Value("a"); ok {
		t.Fatalf("[crdt.TestZeroValue] Expected nil dictionary to hold no keys.\n")
	}

	if nilDict.Len() != 0 {
		t.Fatalf("[crdt.TestZeroValue] Expected nil dictionary to have length 0 but got %d.\n", nilDict.Len())
	}

	if !nilDict.Equal(New[string, int]()) {
		t.Fatalf("[crdt.TestZeroValue] Expected nil dictionary to equal an empty one.\n")
	}

	merged := nilDict.Merge(&d)
	if value, ok := merged.Value("a"); !ok || value != 2 {
		t.Fatalf("[crdt.TestZeroValue] Expected merge of nil and d to contain 'a' = 2 but got (%d, %v).\n", value, ok)
	}
}

// TestMergeWithSelf checks idempotence of Merge().
func TestMergeWithSelf(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Remove("1", 10)
	d.Add("2", "20", 5)
	d.Remove("3", 7)

	merged := d.Merge(d)

	if !d.Equal(merged) {
		t.Fatalf("[crdt.TestMergeWithSelf] Expected merge of dictionary with itself to equal the dictionary.\n")
	}

	for _, key := range []string{"1", "2", "3"} {

		want, wantOK := d.Value(key)
		got, gotOK := merged.Value(key)

		if want != got || wantOK != gotOK {
			t.Fatalf("[crdt.TestMergeWithSelf] Expected ('%s', %v) for key '%s' but got ('%s', %v).\n", want, wantOK, key, got, gotOK)
		}
	}
}

// TestMerge runs the end-to-end merge scenario
// on two independently built dictionaries.
func TestMerge(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("1", "10", 10)
	d1.Add("1", "5", 10)
	d1.Add("3", "100", 100)
	d1.Remove("3", 50)

	d2.Add("1", "50", 50)
	d2.Add("2", "20", 10)
	d2.Add("3", "10", 10)
	d2.Remove("3", 200)

	merged := d1.Merge(d2)

	if value, ok := merged.Value("1"); !ok || value != "50" {
		t.Fatalf("[crdt.TestMerge] Expected '50' for key '1' but got ('%s', %v).\n", value, ok)
	}

	if value, ok := merged.Value("2"); !ok || value != "20" {
		t.Fatalf("[crdt.TestMerge] Expected '20' for key '2' but got ('%s', %v).\n", value, ok)
	}

	if value, ok := merged.Value("3"); ok {
		t.Fatalf("[crdt.TestMerge] Expected key '3' to be removed but found '%s'.\n", value)
	}

	if !merged.Equal(d2.Merge(d1)) {
		t.Fatalf("[crdt.TestMerge] Expected merge(d1, d2) to equal merge(d2, d1).\n")
	}
}

// TestMergeLeavesInputsUntouched makes sure Merge()
// is a pure function of its operands.
func TestMergeLeavesInputsUntouched(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("a", "old", 1)
	d2.Add("a", "new", 2)
	d2.Remove("b", 3)

	before1 := d1.State()
	before2 := d2.State()

	merged := d1.Merge(d2)
	merged.Add("a", "newest", 5)
	merged.Add("c", "c", 5)

	if !d1.Equal(FromState(before1)) || !d2.Equal(FromState(before2)) {
		t.Fatalf("[crdt.TestMergeLeavesInputsUntouched] Expected inputs of Merge() to remain unchanged.\n")
	}

	if value, _ := d1.Value("a"); value != "old" {
		t.Fatalf("[crdt.TestMergeLeavesInputsUntouched] Expected 'old' in d1 but got '%s'.\n", value)
	}

	if value, _ := d2.Value("a"); value != "new" {
		t.Fatalf("[crdt.TestMergeLeavesInputsUntouched] Expected 'new' in d2 but got '%s'.\n", value)
	}
}

// TestMergeTieKeepsLeft documents that equal timestamps
// keep the record of the left operand, while equality
// still reports both merge orders as converged.
func TestMergeTieKeepsLeft(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("k", "left", 7)
	d2.Add("k", "right", 7)

	m12 := d1.Merge(d2)
	m21 := d2.Merge(d1)

	if value, _ := m12.Value("k"); value != "left" {
		t.Fatalf("[crdt.TestMergeTieKeepsLeft] Expected 'left' in merge(d1, d2) but got '%s'.\n", value)
	}

	if value, _ := m21.Value("k"); value != "right" {
		t.Fatalf("[crdt.TestMergeTieKeepsLeft] Expected 'right' in merge(d2, d1) but got '%s'.\n", value)
	}

	if !m12.Equal(m21) {
		t.Fatalf("[crdt.TestMergeTieKeepsLeft] Expected timestamp-only equality to hold for both merge orders.\n")
	}
}

// TestAdditionsAndRemovalsWithIdenticalTimestamp checks
// that the latest Add() wins exact ties and that additions
// win exact ties against removals.
func TestAdditionsAndRemovalsWithIdenticalTimestamp(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Add("1", "5", 10)

	d.Add("2", "20", 10)
	d.Remove("2", 10)

	if value, ok := d.Value("1"); !ok || value != "5" {
		t.Fatalf("[crdt.TestAdditionsAndRemovalsWithIdenticalTimestamp] Expected '5' for key '1' but got ('%s', %v).\n", value, ok)
	}

	if value, ok := d.Value("2"); !ok || value != "20" {
		t.Fatalf("[crdt.TestAdditionsAndRemovalsWithIdenticalTimestamp] Expected '20' for key '2' but got ('%s', %v).\n", value, ok)
	}

	d.Add("3", "5", 10)
	d.Add("3", "20", 10)

	if value, _ := d.Value("3"); value != "20" {
		t.Fatalf("[crdt.TestAdditionsAndRemovalsWithIdenticalTimestamp] Expected last call to win and yield '20' but got '%s'.\n", value)
	}
}

// TestRemoveAddRace merges an addition and a removal of
// equal timestamp from two replicas in both orders.
func TestRemoveAddRace(t *testing.T) {

	adder := New[string, string]()
	remover := New[string, string]()

	adder.Add("k", "v", 42)
	remover.Remove("k", 42)

	for name, merged := range map[string]*Dict[string, string]{
		"adder+remover": adder.Merge(remover),
		"remover+adder": remover.Merge(adder),
	} {

		if value, ok := merged.Value("k"); !ok || value != "v" {
			t.Fatalf("[crdt.TestRemoveAddRace] %s: Expected addition to win tie and yield 'v' but got ('%s', %v).\n", name, value, ok)
		}
	}
}

// TestUpdateWithOlderTimestamp makes sure stale
// updates are ignored.
func TestUpdateWithOlderTimestamp(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Add("1", "5", 5)

	d.Update("1", "20", 1)

	if value, ok := d.Value("1"); !ok || value != "10" {
		t.Fatalf("[crdt.TestUpdateWithOlderTimestamp] Expected '10' for key '1' but got ('%s', %v).\n", value, ok)
	}
}

// TestSuccessfulAddition executes a white-box
// unit test on Add().
func TestSuccessfulAddition(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Add("1", "5", 5)

	if value, _ := d.Value("1"); value != "10" {
		t.Fatalf("[crdt.TestSuccessfulAddition] Expected older Add() to be rejected and '10' to remain but got '%s'.\n", value)
	}

	d.Add("1", "20", 20)

	if value, ok := d.Value("1"); !ok || value != "20" {
		t.Fatalf("[crdt.TestSuccessfulAddition] Expected '20' for key '1' but got ('%s', %v).\n", value, ok)
	}

	if rec := d.additions["1"]; rec.Timestamp != 20 {
		t.Fatalf("[crdt.TestSuccessfulAddition] Expected stored timestamp 20 but found %v.\n", rec.Timestamp)
	}
}

// TestSuccessfulUpdate executes a white-box
// unit test on Update().
func TestSuccessfulUpdate(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Add("1", "5", 5)

	d.Update("1", "20", 20)

	if value, ok := d.Value("1"); !ok || value != "20" {
		t.Fatalf("[crdt.TestSuccessfulUpdate] Expected '20' for key '1' but got ('%s', %v).\n", value, ok)
	}

	// Ties overwrite as well.
	d.Update("1", "30", 20)

	if value, _ := d.Value("1"); value != "30" {
		t.Fatalf("[crdt.TestSuccessfulUpdate] Expected Update() with equal timestamp to yield '30' but got '%s'.\n", value)
	}

	if len(d.removals) != 0 {
		t.Fatalf("[crdt.TestSuccessfulUpdate] Expected Update() not to touch removal history.\n")
	}
}

// TestUpdateOnRemovedKey shows that Update() acts on
// the addition history only and can revive a key.
func TestUpdateOnRemovedKey(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Remove("1", 15)

	if _, ok := d.Value("1"); ok {
		t.Fatalf("[crdt.TestUpdateOnRemovedKey] Expected '1' to be removed.\n")
	}

	d.Update("1", "20", 20)

	if value, ok := d.Value("1"); !ok || value != "20" {
		t.Fatalf("[crdt.TestUpdateOnRemovedKey] Expected '20' after Update() newer than removal but got ('%s', %v).\n", value, ok)
	}
}

// TestSuccessfulRemoval executes a white-box
// unit test on Remove().
func TestSuccessfulRemoval(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "10", 10)
	d.Add("1", "5", 5)

	d.Remove("1", 20)

	if value, ok := d.Value("1"); ok {
		t.Fatalf("[crdt.TestSuccessfulRemoval] Expected '1' to be removed but found '%s'.\n", value)
	}

	if rec := d.removals["1"]; rec.Value != nil {
		t.Fatalf("[crdt.TestSuccessfulRemoval] Expected removal record without value.\n")
	}

	// Older removals do not replace newer ones.
	d.Remove("1", 1)

	if rec := d.removals["1"]; rec.Timestamp != 20 {
		t.Fatalf("[crdt.TestSuccessfulRemoval] Expected removal timestamp to stay at 20 but found %v.\n", rec.Timestamp)
	}
}

// TestTwoNonEqualDictionaries checks that differing
// removal timestamps break equality.
func TestTwoNonEqualDictionaries(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("1", "10", 100)
	d1.Add("1", "5", 5)
	d1.Add("1", "1", 1)

	d2.Add("1", "1", 1)
	d2.Add("1", "5", 5)
	d2.Add("1", "10", 10)

	d1.Remove("1", 10)
	d1.Remove("1", 1)
	d1.Remove("1", 100)

	d2.Remove("1", 10)
	d2.Remove("1", 1)
	d2.Remove("1", 20)

	if d1.Equal(d2) {
		t.Fatalf("[crdt.TestTwoNonEqualDictionaries] Expected d1 and d2 not to be equal.\n")
	}

	d3 := New[string, string]()
	d3.Add("1", "10", 100)
	d3.Remove("1", 100)
	d3.Add("2", "2", 2)

	if d1.Equal(d3) || d3.Equal(d1) {
		t.Fatalf("[crdt.TestTwoNonEqualDictionaries] Expected dictionaries with different key sets not to be equal.\n")
	}
}

// TestTwoEqualDictionaries checks that insertion order
// does not matter for equality.
func TestTwoEqualDictionaries(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("1", "10", 10)
	d1.Add("1", "5", 5)
	d1.Add("1", "1", 1)

	d2.Add("1", "1", 1)
	d2.Add("1", "5", 5)
	d2.Add("1", "10", 10)

	d1.Remove("1", 10)
	d1.Remove("1", 1)
	d1.Remove("1", 20)

	d2.Remove("1", 10)
	d2.Remove("1", 1)
	d2.Remove("1", 20)

	if !d1.Equal(d2) {
		t.Fatalf("[crdt.TestTwoEqualDictionaries] Expected d1 and d2 to be equal.\n")
	}

	// Values do not take part in equality.
	d2.Update("1", "other", 10)

	if !d1.Equal(d2) {
		t.Fatalf("[crdt.TestTwoEqualDictionaries] Expected equality to ignore values.\n")
	}
}

// TestOutOfOrderTimestamps feeds events in
// non-monotonic timestamp order.
func TestOutOfOrderTimestamps(t *testing.T) {

	d := New[string, string]()

	d.Add("1", "5", 5)
	d.Add("1", "10", 10)
	d.Add("1", "1", 1)

	d.Add("2", "1", 10)
	d.Remove("2", 300)
	d.Add("2", "1", 1)

	if value, ok := d.Value("1"); !ok || value != "10" {
		t.Fatalf("[crdt.TestOutOfOrderTimestamps] Expected '10' for key '1' but got ('%s', %v).\n", value, ok)
	}

	if value, ok := d.Value("2"); ok {
		t.Fatalf("[crdt.TestOutOfOrderTimestamps] Expected key '2' to be removed but found '%s'.\n", value)
	}
}

// TestConvergence builds two dictionaries with the
// same events in different order.
func TestConvergence(t *testing.T) {

	d1 := New[string, string]()
	d2 := New[string, string]()

	d1.Add("1", "foo", 1)
	d1.Remove("1", 1)

	d2.Remove("1", 1)
	d2.Add("1", "foo", 1)

	v1, ok1 := d1.Value("1")
	v2, ok2 := d2.Value("1")

	if v1 != v2 || ok1 != ok2 {
		t.Fatalf("[crdt.TestConvergence] Expected both replicas to agree on key '1' but got ('%s', %v) and ('%s', %v).\n", v1, ok1, v2, ok2)
	}

	if !d1.Equal(d2) {
		t.Fatalf("[crdt.TestConvergence] Expected d1 and d2 to be equal.\n")
	}
}

// TestMergeCommutativeAndAssociative merges three
// replicas with strictly ordered timestamps per key
// in several orders.
func TestMergeCommutativeAndAssociative(t *testing.T) {

	a := New[string, string]()
	b := New[string, string]()
	c := New[string, string]()

	a.Add("x", "a", 1)
	b.Add("x", "b", 2)
	c.Remove("x", 3)

	a.Add("y", "a", 5)
	b.Remove("y", 4)

	b.Add("z", "b", 1)
	c.Add("z", "c", 9)

	ab := a.Merge(b)
	ba := b.Merge(a)

	if !ab.Equal(ba) {
		t.Fatalf("[crdt.TestMergeCommutativeAndAssociative] Expected merge(a, b) to equal merge(b, a).\n")
	}

	left := ab.Merge(c)
	right := a.Merge(b.Merge(c))

	if !left.Equal(right) {
		t.Fatalf("[crdt.TestMergeCommutativeAndAssociative] Expected merge to be associative.\n")
	}

	for key, want := range map[string]string{"y": "a", "z": "c"} {

		l, _ := left.Value(key)
		r, _ := right.Value(key)

		if l != want || r != want {
			t.Fatalf("[crdt.TestMergeCommutativeAndAssociative] Expected '%s' for key '%s' but got '%s' and '%s'.\n", want, key, l, r)
		}
	}

	if _, ok := left.Value("x"); ok {
		t.Fatalf("[crdt.TestMergeCommutativeAndAssociative] Expected key 'x' to be removed.\n")
	}
}

// TestLenAndRange executes a white-box unit
// test on the read-only iteration helpers.
func TestLenAndRange(t *testing.T) {

	d := New[string, int]()

	d.Add("a", 1, 1)
	d.Add("b", 2, 1)
	d.Add("c", 3, 1)
	d.Remove("b", 2)
	d.Remove("d", 2)

	if d.Len() != 2 {
		t.Fatalf("[crdt.TestLenAndRange] Expected 2 present keys but Len() returned %d.\n", d.Len())
	}

	seen := make(map[string]int)
	d.Range(func(key string, value int) bool {
		seen[key] = value
		return true
	})

	if len(seen) != 2 || seen["a"] != 1 || seen["c"] != 3 {
		t.Fatalf("[crdt.TestLenAndRange] Expected Range() to visit a=1 and c=3 but visited %v.\n", seen)
	}

	visits := 0
	d.Range(func(string, int) bool {
		visits++
		return false
	})

	if visits != 1 {
		t.Fatalf("[crdt.TestLenAndRange] Expected Range() to stop after first visit but it visited %d entries.\n", visits)
	}
}

// TestState checks that State() and FromState()
// produce detached copies.
func TestState(t *testing.T) {

	d := New[string, string]()

	d.Add("a", "1", 1)
	d.Remove("a", 0.5)
	d.Remove("b", 2)

	s := d.State()

	if len(s.Additions) != 1 || len(s.Removals) != 2 {
		t.Fatalf("[crdt.TestState] Expected 1 addition and 2 removals but got %d and %d.\n", len(s.Additions), len(s.Removals))
	}

	// Mutating the returned state must not leak into d.
	*s.Additions["a"].Value = "changed"

	if value, _ := d.Value("a"); value != "1" {
		t.Fatalf("[crdt.TestState] Expected '1' in d after mutating its state copy but got '%s'.\n", value)
	}

	restored := FromState(d.State())

	if !restored.Equal(d) {
		t.Fatalf("[crdt.TestState] Expected dictionary restored from state to equal original.\n")
	}

	if value, ok := restored.Value("a"); !ok || value != "1" {
		t.Fatalf("[crdt.TestState] Expected '1' for key 'a' in restored dictionary but got ('%s', %v).\n", value, ok)
	}

	// Additions without value are treated as absent.
	broken := FromState(State[string, string]{
		Additions: map[string]Record[string]{"x": {Timestamp: 1}},
	})

	if _, ok := broken.Value("x"); ok {
		t.Fatalf("[crdt.TestState] Expected value-less addition to be reported absent.\n")
	}
}

// TestNaNTimestamps makes sure that unordered
// timestamps never cause a panic.
func TestNaNTimestamps(t *testing.T) {

	d := New[string, string]()

	d.Add("a", "1", math.NaN())
	d.Update("a", "2", math.NaN())
	d.Remove("a", math.NaN())

	_, _ = d.Value("a")
	_ = d.Merge(d)
	_ = d.Equal(d)
}
