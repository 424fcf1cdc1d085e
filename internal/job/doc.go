// Package job models the unit of indexing work: one source file with its
// argument-equivalent compile variants, a priority derived from editor and
// include-graph state, and the binary payload handed to the out-of-process
// parser. The active-job registry lives here too, enforcing at-most-one
// in-flight job per source key.
package job
