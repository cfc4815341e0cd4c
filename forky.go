// Package forky manages AI assistant conversations as persistent, versioned
// directed acyclic graphs with git-style branching and a semantic three-way
// merge.
//
// A conversation is a DAG of role-tagged message nodes rooted at a single
// system node. Appending messages extends the current branch, forking records
// a named branching point, and merging joins two divergent branches by
// summarizing both sides against their lowest common ancestor, diffing the
// summaries, classifying conflicts, and asking a model for the merged turn.
//
// The packages compose as follows:
//
//   - graph holds the in-memory DAG and its traversal algorithms
//   - store persists conversations in SQLite with atomic per-conversation writes
//   - llm defines the model client capability and message types
//   - merge implements state summarization, semantic diff, and the merge pipeline
//   - service is the façade front-ends call
package forky

var Version = "0.1.0"
