// Package runtime provides the per invocation context handed from the
// command line layer to actions: the logger, the repository and the merged
// configuration values.
package runtime
