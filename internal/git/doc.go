// Package git provides the repository handle used by every gbp command.
//
// It wraps git command execution and provides a Go-friendly interface for:
//   - Branch and tag management (create, delete, move, checkout)
//   - Commit construction (trees from arbitrary directories, commit-tree, update-ref)
//   - Repo state queries (refs, commit metadata, tree listings, diffs)
//   - Patch application
//
// Mutations go through the git command line, reads through go-git. This
// package should be the only place where direct git commands are executed.
package git
