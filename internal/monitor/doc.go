// Package monitor turns a live, delimited text stream into metric updates
// for an active run.
//
// The first non-blank line of the stream names the metrics. Every later line
// is split on the same delimiter, coerced field by field (integer, then float,
// then raw string) and sent to the run as one update tagged with the receipt
// time and a step number.
//
// # Components
//
//	Tokenize       - splits a line into trimmed fields
//	ResolveHeader  - captures the first line as the unique metric names
//	Coerce         - converts a single field to int64, float64 or string
//	Emitter        - sends one row through a MetricSender
//	Session        - the read loop and its state machine
//
// # State machine
//
//	AWAITING_HEADER --header--> STREAMING --EOF--> CLOSED
//	       |                        |
//	       +--EOF--> CLOSED         +--send error--> FAILED
//	       +--duplicate name--> FAILED
//
// Malformed rows (wrong field count, invalid UTF-8) are logged and counted.
// They never consume a step and never end the session.
//
// The session reads one line at a time, so it keeps pace with a producer
// that writes a line every few seconds. Sends are synchronous: the next line
// is not read until the previous update has been accepted or has failed.
// Cancelling the context ends the session even while no line is arriving;
// a line read after the cancel is not sent.
package monitor
