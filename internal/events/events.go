// Package events declares the payloads published by the engine through the
// event bus. Subscribers (tracing, metrics, tests) consume them without
// coupling to engine internals.
package events

// ExecutionStart is published once per Execute call, before the first level.
type ExecutionStart struct {
	Roots int
}

// ExecutionFinish is published when an execution returns. Err is the fatal
// abort error, nil for normal completion (isolated field errors do not
// count as fatal).
type ExecutionFinish struct {
	Errors int
	Err    error
}

// LevelStart is published before a level's batches are formed.
type LevelStart struct {
	Depth    int
	Entities int
}

// LevelFinish is published after a level's pending results drained.
type LevelFinish struct {
	Depth int
}

// BatchStart is published before a single resolver dispatch. Kind is
// "field" or "link". Size counts the deduplicated identifiers in the batch.
type BatchStart struct {
	BatchID int64
	Node    string
	Member  string
	Kind    string
	Size    int
}

// BatchFinish is published when a resolver dispatch returns. Err is the
// whole-batch failure, nil when the call itself succeeded.
type BatchFinish struct {
	BatchID int64
	Node    string
	Member  string
	Kind    string
	Size    int
	Err     error
}
