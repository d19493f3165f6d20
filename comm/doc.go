/*
Package comm implements synchronization of lwwdict replicas over gRPC. Each
replica runs a Receiver that accepts the full dictionary state of a peer and
merges it into the local one (Push), or hands out its own state (Pull). A
Sender periodically performs one push-pull round against every configured
peer. Since merging is commutative, associative and idempotent, messages may
be lost, duplicated or reordered without harm: the next round repairs it.
Messages travel JSON-encoded and gzip-compressed.
*/
package comm
