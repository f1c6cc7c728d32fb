// Package sds implements a single-producer/multi-consumer shared data
// stream: a circular buffer of fixed-size words that one writer produces
// into and up to maxReaders readers consume from concurrently.
//
// A stream's metadata (header, per-reader cursors, per-reader close
// indices, per-reader enabled flags) and its data area live in one
// contiguous []byte region so that several Stream handles can attach to
// the same region and cooperate. The package does not define a wire
// format and never persists a region across process restarts; it only
// specifies the contract a region layout must satisfy.
package sds
