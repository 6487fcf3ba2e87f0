package pq

import (
	"context"
	"fmt"

	"github.com/agx/git-buildpackage-sub001/internal/git"
)

// State is the patch-queue state of a base branch
type State int

const (
	// NoQueue means the patch-queue branch does not exist
	NoQueue State = iota
	// QueueSynced means the queue is built on the current base branch tip
	QueueSynced
	// QueueDiverged means the queue exists but the base branch moved on
	QueueDiverged
)

func (s State) String() string {
	switch s {
	case NoQueue:
		return "no queue"
	case QueueSynced:
		return "synced"
	case QueueDiverged:
		return "diverged"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// QueueState computes the state of base's patch queue. It is derived from
// the refs every time and never stored.
func QueueState(ctx context.Context, repo *git.Repository, base string) (State, error) {
	pqBranch := BranchName(base)
	if !repo.HasBranch(ctx, pqBranch) {
		return NoQueue, nil
	}
	baseTip, err := repo.BranchTip(ctx, base)
	if err != nil {
		return NoQueue, err
	}
	pqTip, err := repo.BranchTip(ctx, pqBranch)
	if err != nil {
		return NoQueue, err
	}
	synced, err := repo.IsAncestor(ctx, baseTip, pqTip)
	if err != nil {
		return NoQueue, err
	}
	if synced {
		return QueueSynced, nil
	}
	return QueueDiverged, nil
}
