// Package ui provides terminal output components for the simvue CLI.
//
// Styling uses Lip Gloss with an ANSI palette so output works on any
// terminal. SetPlain switches every style to uncolored text for --plain or
// when output is piped.
//
// # Components Overview
//
//	RenderSimpleTable - Bubbles table rendered once, for run listings
//	FitColumns        - Column sizing against the terminal width
//	RenderRunStatus   - Colored run status with a status symbol
//	RunWithSpinner    - Bubble Tea spinner shown while a request is in flight
//
// # Color Scheme
//
//	ColorSuccess   (green)  - Successful operations, completed runs
//	ColorError     (red)    - Failures, failed or lost runs
//	ColorWarning   (yellow) - Warnings, terminated runs
//	ColorInfo      (cyan)   - Running runs, keys
//	ColorMuted     (gray)   - Secondary text
//	ColorSecondary (blue)   - In-progress indicators
package ui
