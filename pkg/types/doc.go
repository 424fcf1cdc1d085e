// Package types contains the shared data model for the tagd daemon:
// source locations, symbols, buffer states, and the process-wide path table
// mapping file paths to stable numeric ids.
package types
