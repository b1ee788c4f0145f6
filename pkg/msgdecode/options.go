package msgdecode

import (
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/actionset"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/timestamp"
)

// Options configures the decoders applied after a message is decoded.
type Options struct {
	// ActionTable names the bits of the ActionSetField bitset. Both must be
	// set for actions to be decoded.
	ActionTable    *actionset.Table
	ActionSetField string
	// Timestamp names the fields combined into Result.Timestamp. The zero
	// value disables the timestamp.
	Timestamp timestamp.Fields
}

// DefaultOptions enables the timestamp with the usual field names.
func DefaultOptions() Options {
	return Options{
		ActionSetField: "ACTION_SET",
		Timestamp:      timestamp.DefaultFields(),
	}
}
