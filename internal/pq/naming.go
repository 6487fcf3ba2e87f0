package pq

import "strings"

// BranchPrefix starts the name of every patch-queue branch
const BranchPrefix = "patch-queue/"

// IsPQBranch reports whether branch is a patch-queue branch
func IsPQBranch(branch string) bool {
	return strings.HasPrefix(branch, BranchPrefix)
}

// BranchName returns the patch-queue branch of base. A name that already is
// a patch-queue branch is returned unchanged.
func BranchName(base string) string {
	if IsPQBranch(base) {
		return base
	}
	return BranchPrefix + base
}

// BranchBase returns the base branch of a patch-queue branch. ok is false
// for names that are not patch-queue branches.
func BranchBase(branch string) (base string, ok bool) {
	if !IsPQBranch(branch) {
		return "", false
	}
	return strings.TrimPrefix(branch, BranchPrefix), true
}
