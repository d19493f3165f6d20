// Package clock provides a timestamp source for writes against
// lwwdict replicas. Timestamps are Unix seconds with a fractional
// part, strictly increasing per Clock, and can be pushed forward
// by timestamps observed from other replicas.
package clock
