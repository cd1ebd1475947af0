// Package engine executes validated queries against a graph breadth-first,
// batching resolver work per level.
//
// # Execution model
//
// Execution proceeds level by level, one level per link hop. At each level
// the engine walks every entity and every query branch and groups requested
// members by batch key: (node, field) or (node, link). Each batch key is
// dispatched exactly once per level, covering all sibling entities that
// requested it, no matter how many branches they came from. This is the
// central invariant that keeps resolver traffic proportional to query depth
// rather than entity count.
//
// Resolvers may return values immediately or return promises settled from
// worker goroutines. The engine adopts every promise into a per-execution
// scheduler and drains it to fixpoint before forming the next level's
// batches, so resolver latency never scatters sibling calls across levels.
//
// # Failure policy
//
// A resolver that fails its whole batch marks only the corresponding slot
// of every participating entity; other members and ancestors are
// unaffected. Per-element failures mark a single entity's slot. An errored
// to-many link yields an empty list with an attached error marker, so "no
// children" and "resolution failed" stay distinguishable. Only contract
// violations abort the execution, because their results cannot be trusted:
// wrong arity, malformed link elements, and missing resolvers.
package engine
