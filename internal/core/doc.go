// Package core runs external commands for the sweep.
//
// # Core Types
//
// Invocation: one external command, its argument list and the file that
// receives its standard output.
//
// ExecutionResult: what the command did, including its exit status. A
// non-zero exit is data, not an error; callers decide what it means.
//
// Executor: runs Invocations, one blocking process at a time per call.
// Executors hold no per-call state and are safe for concurrent use.
package core
