// Package attachment wraps a single-producer/single-consumer sds.Stream
// as a named, managed binary payload -- the shape directive-bound audio
// and synthesized-speech content takes when handed between capability
// agents. A Manager tracks attachments by ID and expires ones nobody has
// opened in a while.
package attachment
