/*
Package replica wraps a crdt.Dict with string keys and values into a service
that is safe for concurrent use by the HTTP API and the synchronization
routines of one node. It owns the node's timestamp source and persists the
dictionary state to a JSON file so that a restarted node resumes from where
it stopped. Logging and metrics are layered on top as middlewares.
*/
package replica
