// Package types defines the data model shared by the poe resolution
// pipeline: config nodes, task definitions, environment entries, path
// frames, the merged project model, and the standard error values.
//
// Values in this package are produced by the parser and the include
// resolver and are treated as immutable once a ProjectModel is built.
package types
