// Package source models one compiler invocation for a source file: the
// argument list, preprocessor defines, include paths and working directory.
// Variants are immutable once attached to a job; argument-list equality is
// the deduplication key for equivalent compile variants.
package source
