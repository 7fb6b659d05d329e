// Package pipeline runs one review of a pull request end to end.
//
// The [Orchestrator] is a state machine:
//
//	Validating -> Clustering -> Reviewing(i) -> Filtering -> Posting -> Done
//
// with Failed reachable from every state. It owns the append-only shared
// state, binds each stage to the capabilities its id is granted, checks the
// post-conditions after every stage and turns every failure, including a
// panic inside a stage, into exactly one [Error]. [Assemble] converts the
// terminal [Outcome] into the [Result] printed by the CLI.
package pipeline
