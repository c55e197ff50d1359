// Package configpipeline merges layered configuration sources into immutable,
// versioned snapshots and watches the layers for changes.
//
// Layers are ordered from lowest to highest precedence. A key present in a
// later layer overrides the same key from earlier layers; keys absent from a
// layer fall through. Values are flat strings; nested structures are not
// deep-merged.
//
// A scan re-reads every layer on a fixed interval and reports a ChangeEvent
// only when the merged result differs from the last published snapshot.
package configpipeline
