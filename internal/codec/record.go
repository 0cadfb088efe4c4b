package codec

import "github.com/vmihailenco/msgpack/v5"

// CallRecord is what the client sends down the control channel: which
// registered callable to run and its arguments. msgpack stands in for the
// original system's cloudpickle - Go has no code-bearing serializer, so the
// call record only ever carries data, never a function body; the receiving
// worker resolves the callable by name against its own registry instead.
type CallRecord struct {
	Callable   string
	Positional []any
	Named      map[string]any
}

// Reply is what the worker sends back. Status is one of "OK" (Value holds
// the result), "SHM" (the result is a shared-memory array described by
// SHMName/Shape/Dtype), or "ERR" (the call failed; ErrMessage/Traceback
// describe why).
type Reply struct {
	Status     string
	Value      any    `msgpack:",omitempty"`
	SHMName    string `msgpack:",omitempty"`
	Shape      []int  `msgpack:",omitempty"`
	Dtype      string `msgpack:",omitempty"`
	ErrMessage string `msgpack:",omitempty"`
	Traceback  string `msgpack:",omitempty"`
}

// EncodeCall and DecodeCall serialize/deserialize a CallRecord.
func EncodeCall(rec CallRecord) ([]byte, error) {
	return msgpack.Marshal(rec)
}

func DecodeCall(b []byte) (CallRecord, error) {
	var rec CallRecord
	err := msgpack.Unmarshal(b, &rec)
	return rec, err
}

// EncodeReply and DecodeReply serialize/deserialize a Reply.
func EncodeReply(rep Reply) ([]byte, error) {
	return msgpack.Marshal(rep)
}

func DecodeReply(b []byte) (Reply, error) {
	var rep Reply
	err := msgpack.Unmarshal(b, &rep)
	return rep, err
}
