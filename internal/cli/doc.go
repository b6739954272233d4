// Package cli implements the simvue command-line interface.
//
// Each Cobra command parses flags and delegates to a xxxCommand function
// taking explicit writers, which is what the tests call. Commands build an
// app (config, service client, run cache) through newApp.
//
// # Command Structure
//
//	simvue monitor                 - Stream tabular stdin into run metrics
//	simvue run create|close|abort  - Run lifecycle
//	simvue run log.metrics|log.event|metadata
//	simvue run list|json|remove    - Inspect and delete runs
//	simvue config server.url|server.token
//	simvue ping|whoami|about|version
//	simvue doctor [--fix]          - Diagnose config, server and cache
//	simvue purge                   - Remove local simvue files
//
// # Output
//
// Human output goes through internal/ui and honors --plain. With --json
// every command writes a single JSONEnvelope to stdout and nothing else;
// errors are mapped to stable codes by ErrorToJSON.
//
// # Exit Codes
//
// Commands return errors instead of exiting. run converts them to an exit
// status: 0 on success, 1 on any failure. An exitError lets a command that
// already reported its failure (such as a JSON envelope) set the status
// without printing again.
package cli
