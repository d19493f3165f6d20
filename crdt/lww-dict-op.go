package crdt

import (
	"fmt"
	"strconv"
	"strings"

	"encoding/base64"
)

// Constants

// Operations an update message can carry.
const (
	OpAdd    = "add"
	OpUpdate = "upd"
	OpRemove = "rmv"
)

// Structs

// Op represents one update event on a dictionary with
// string keys and values, ready to be written to a log
// or handed to another replica.
type Op struct {
	Operation string
	Key       string
	Value     string
	Timestamp float64
}

// Functions

// String turns op into its marshalled version. Key and
// value are base64-encoded so that they may contain the
// '|' delimiter. Removals do not carry a value field.
func (op *Op) String() string {

	ts := strconv.FormatFloat(op.Timestamp, 'g', -1, 64)
	key := base64.StdEncoding.EncodeToString([]byte(op.Key))

	if op.Operation == OpRemove {
		return fmt.Sprintf("%s|%s|%s", op.Operation, key, ts)
	}

	value := base64.StdEncoding.EncodeToString([]byte(op.Value))

	return fmt.Sprintf("%s|%s|%s|%s", op.Operation, key, value, ts)
}

// ParseOp takes in a marshalled version of an Op and
// turns it back into the struct representation.
func ParseOp(msgRaw string) (*Op, error) {

	// Split message at pipe delimiters.
	parts := strings.Split(msgRaw, "|")

	// The shortest valid message is a removal:
	// operation|key|timestamp.
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid CRDT update message found during parsing")
	}

	op := &Op{
		Operation: parts[0],
	}

	switch op.Operation {
	case OpAdd, OpUpdate:
		if len(parts) != 4 {
			return nil, fmt.Errorf("expected 4 fields in '%s' message but found %d", op.Operation, len(parts))
		}
	case OpRemove:
		if len(parts) != 3 {
			return nil, fmt.Errorf("expected 3 fields in '%s' message but found %d", op.Operation, len(parts))
		}
	default:
		return nil, fmt.Errorf("unsupported update operation specified in CRDT message")
	}

	key, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding key of CRDT message failed: %v", err)
	}
	op.Key = string(key)

	if op.Operation != OpRemove {

		value, err := base64.StdEncoding.DecodeString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("decoding value of CRDT message failed: %v", err)
		}
		op.Value = string(value)
	}

	op.Timestamp, err = strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp in CRDT message: %v", err)
	}

	return op, nil
}

// Apply executes op on d.
func (op *Op) Apply(d *Dict[string, string]) {

	switch op.Operation {
	case OpAdd:
		d.Add(op.Key, op.Value, op.Timestamp)
	case OpUpdate:
		d.Update(op.Key, op.Value, op.Timestamp)
	case OpRemove:
		d.Remove(op.Key, op.Timestamp)
	}
}
