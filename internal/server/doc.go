// Package server ties the daemon together: it owns the options, the path
// table, the per-project state, the editor buffer classifications and the
// dispatch loop that hands encoded jobs to the external parser in priority
// order. It implements job.Env, the view of daemon state jobs score and
// encode against.
package server
