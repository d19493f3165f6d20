package comm

import (
	"encoding/json"
)

// Structs

// Codec marshals gRPC messages of this package as JSON.
// It is forced on both ends of a connection, see
// ReceiverOptions and SenderOptions.
type Codec struct{}

// Functions

// Marshal fulfills the Marshal() part of
// the gRPC encoding.Codec interface.
func (c Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal fulfills the Unmarshal() part of
// the gRPC encoding.Codec interface.
func (c Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name fulfills the Name() part of the gRPC
// encoding.Codec interface.
func (c Codec) Name() string {
	return "json"
}
