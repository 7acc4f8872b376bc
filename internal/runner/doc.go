// Package runner executes the engine as a child process.
//
// A Runner keeps at most one live process per logical task name: starting a
// task again terminates the previous process tree first. The first Spawn
// blocks until the engine install has finished (see binary.Ready); later
// calls start immediately. The environment handed to the engine is rebuilt
// on every call so token and settings changes apply to the next run.
package runner
