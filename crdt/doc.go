/*
Package crdt implements the state-based last-write-wins element dictionary
(LWW-Element-Dictionary) upon that all replicas of lwwdict are built.

A dictionary keeps two histories, one of additions and one of removals, each
holding at most the most recent timestamped record per key. A key is present
if its addition is at least as recent as its removal, so additions win on
equal timestamps. Merging two dictionaries takes the more recent record per
key and history and never loses information, which makes independently
updated replicas converge regardless of merge order.

CAUTION! Consider these two requirements:
* Timestamps are supplied by callers. This package treats them as opaque,
  totally ordered numbers and does not guard against clock skew between
  replicas. Package clock provides one suitable source.
* Access to the functions this package provides is expected to be synchronized
  explicitly by some outside measures, e.g. by wrapping calls to this package
  with a mutex lock if concurrent access is possible. This package does not(!)
  synchronize access by itself. Package replica does exactly that.

Removal records (tombstones) are never garbage collected.
*/
package crdt
