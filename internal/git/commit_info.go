package git

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// PatchDateFormat is the layout of the Date header of exported patches
const PatchDateFormat = time.RFC1123Z

// CommitInfo is the metadata of a single commit
type CommitInfo struct {
	ID     string
	Author Identity
	When   time.Time
	// Subject is the first paragraph of the message joined into one line
	Subject string
	// Body is everything after the first paragraph
	Body string
	// PatchName is the subject sanitized the way git format-patch names files
	PatchName string
	Parents   []string
}

// CommitInfo reads the metadata of rev, peeling tags
func (r *Repository) CommitInfo(ctx context.Context, rev string) (*CommitInfo, error) {
	sha, err := r.ResolveCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", sha, err)
	}

	subject, body := splitMessage(commit.Message)
	info := &CommitInfo{
		ID: sha,
		Author: Identity{
			Name:  commit.Author.Name,
			Email: commit.Author.Email,
			Date:  commit.Author.When.Format(PatchDateFormat),
		},
		When:      commit.Author.When,
		Subject:   subject,
		Body:      body,
		PatchName: SanitizeSubject(subject),
	}
	for _, p := range commit.ParentHashes {
		info.Parents = append(info.Parents, p.String())
	}
	return info, nil
}

// splitMessage separates the subject paragraph from the body
func splitMessage(msg string) (string, string) {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.TrimLeft(msg, "\n")
	subject, body, _ := strings.Cut(msg, "\n\n")
	lines := strings.Split(strings.TrimSpace(subject), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " "), strings.TrimLeft(body, "\n")
}

// SanitizeSubject turns a subject line into a file name the way git
// format-patch does: runs of characters outside [A-Za-z0-9._] become a single
// dash, repeated dots collapse and trailing dots and dashes are dropped.
func SanitizeSubject(subject string) string {
	var b strings.Builder
	space := false
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		switch {
		case isTitleChar(c):
			if space && b.Len() > 0 {
				b.WriteByte('-')
			}
			space = false
			b.WriteByte(c)
			if c == '.' {
				for i+1 < len(subject) && subject[i+1] == '.' {
					i++
				}
			}
		default:
			space = true
		}
	}
	return strings.TrimRight(b.String(), ".-")
}

func isTitleChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '_'
}
