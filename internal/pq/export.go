package pq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
	"github.com/agx/git-buildpackage-sub001/internal/git"
	"github.com/agx/git-buildpackage-sub001/internal/patch"
	"github.com/agx/git-buildpackage-sub001/internal/rollback"
)

// maxPatchFileName is the longest generated patch file name
const maxPatchFileName = 63

var (
	nameSpecialRe  = regexp.MustCompile(`[,.@()\[\]\\:;]`)
	numberPrefixRe = regexp.MustCompile(`^\d+-`)
)

// ExportResult describes the refreshed patch series
type ExportResult struct {
	// Patches are the new series entries in order
	Patches []string
	// Added and Removed compare Patches to the series committed on the base branch
	Added   []string
	Removed []string
	// Message is the commit message describing the change
	Message   string
	Committed bool
	Dropped   bool
}

// Export writes one patch per queue commit to debian/patches of the base
// branch, rewrites the series file and optionally commits and drops.
func (q *Queue) Export(ctx context.Context) (*ExportResult, error) {
	current, branch, err := q.currentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if current != branch {
		q.log.Info("On '%s', switching to '%s'", current, branch)
		if err := q.repo.Checkout(ctx, branch); err != nil {
			return nil, err
		}
	}
	pqBranch := BranchName(branch)
	if !q.repo.HasBranch(ctx, pqBranch) {
		return nil, gbperrors.NewGbpError("No patch queue branch '%s' found - nothing to export", pqBranch)
	}
	start, err := q.basePoint(ctx, branch)
	if err != nil {
		return nil, err
	}

	patchDir := filepath.Join(q.repo.Path(), filepath.FromSlash(PatchDir))
	comments, err := patch.ReadSeriesCommentsFile(filepath.Join(patchDir, patch.SeriesFile))
	if err != nil {
		return nil, err
	}
	if err := removePatchFiles(patchDir); err != nil {
		return nil, err
	}
	names, err := q.generatePatches(ctx, start, pqBranch, patchDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		q.log.Info("No patches on '%s' - nothing to export.", pqBranch)
	}
	if len(names) > 0 || len(comments) > 0 {
		if err := patch.WriteSeriesFile(patchDir, names, comments); err != nil {
			return nil, fmt.Errorf("failed to write series: %w", err)
		}
	}

	oldNames, err := q.committedSeries(ctx, branch)
	if err != nil {
		return nil, err
	}
	added, removed := patch.CompareSeries(oldNames, names)
	result := &ExportResult{
		Patches: names,
		Added:   added,
		Removed: removed,
		Message: SeriesDiffMessage(added, removed),
	}

	if q.opts.Commit {
		committed, err := q.commitPatches(ctx, branch, result.Message)
		if err != nil {
			return nil, err
		}
		result.Committed = committed
		q.logSeriesChange(added, removed)
	}
	if q.opts.Drop {
		if err := q.dropQueue(ctx, branch); err != nil {
			return nil, err
		}
		result.Dropped = true
	}
	return result, nil
}

func (q *Queue) logSeriesChange(added, removed []string) {
	plural := func(n int) string {
		if n > 1 {
			return "patches"
		}
		return "patch"
	}
	if len(added) > 0 {
		q.log.Info("Added %s %s to patch series", plural(len(added)), strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		q.log.Info("Dropped %s %s from patch series", plural(len(removed)), strings.Join(removed, ", "))
	}
	if len(added) == 0 && len(removed) == 0 {
		q.log.Info("Updated existing patches.")
	}
}

// committedSeries reads the series file as committed on branch
func (q *Queue) committedSeries(ctx context.Context, branch string) ([]string, error) {
	content, err := q.repo.ShowFile(ctx, branch, SeriesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	series, err := patch.ReadSeries(strings.NewReader(content), PatchDir)
	if err != nil {
		return nil, err
	}
	return series.Names(), nil
}

// commitPatches commits debian/patches on branch when it changed
func (q *Queue) commitPatches(ctx context.Context, branch, msg string) (bool, error) {
	clean, err := q.repo.IsClean(ctx, PatchDir)
	if err != nil {
		return false, err
	}
	if clean {
		return false, nil
	}
	journal := rollback.New(q.repo, q.log)
	if err := journal.Record(ctx, branch, rollback.Branch, rollback.Reset); err != nil {
		return false, err
	}
	err = q.repo.AddFiles(ctx, []string{PatchDir}, true)
	if err == nil {
		err = q.repo.CommitStaged(ctx, msg)
	}
	if err != nil {
		return false, errors.Join(err, journal.Rollback(context.WithoutCancel(ctx)))
	}
	journal.Discard()
	return true, nil
}

// removePatchFiles deletes the patches listed in the series file of
// patchDir together with the series file and emptied topic directories
func removePatchFiles(patchDir string) error {
	seriesFile := filepath.Join(patchDir, patch.SeriesFile)
	series, err := patch.ReadSeriesFile(seriesFile)
	if err != nil {
		return err
	}
	for _, p := range series {
		if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		for dir := filepath.Dir(p.Path); dir != patchDir && strings.HasPrefix(dir, patchDir); dir = filepath.Dir(dir) {
			if os.Remove(dir) != nil {
				break
			}
		}
	}
	if err := os.Remove(seriesFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// generatePatches writes a patch for every commit in start..end, oldest
// first, and returns their series names
func (q *Queue) generatePatches(ctx context.Context, start, end, outDir string) ([]string, error) {
	if !q.repo.HasTreeish(ctx, start) || !q.repo.HasTreeish(ctx, end) {
		return nil, gbperrors.NewGbpError("Start commit '%s' or end commit '%s' not found", start, end)
	}
	commits, err := q.repo.RevList(ctx, git.RevListOptions{Range: start + ".." + end, Reverse: true})
	if err != nil {
		return nil, err
	}

	var names []string
	for _, id := range commits {
		info, err := q.repo.CommitInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		cmds, body := ParseCommands(q.log, id, info.Body)
		if cmds.Ignore {
			q.log.Info("Ignoring commit %s", id)
			continue
		}
		name, err := q.formatPatch(ctx, outDir, info, body, cmds, names)
		if err != nil {
			return nil, err
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// patchFileName picks the series name of the next patch
func (q *Queue) patchFileName(info *git.CommitInfo, cmds Commands, series []string) string {
	num := ""
	var base, suffix string
	maxLen := 0
	if cmds.Name != "" {
		name := cmds.Name
		if q.opts.Renumber {
			num = fmt.Sprintf(q.opts.PatchNumFormat, len(series)+1)
			name = numberPrefixRe.ReplaceAllString(name, "")
		}
		ext := path.Ext(name)
		base, suffix = strings.TrimSuffix(name, ext), ext
	} else {
		if q.opts.PatchNumbers {
			num = fmt.Sprintf(q.opts.PatchNumFormat, len(series)+1)
		}
		suffix = ".patch"
		maxLen = maxPatchFileName - len(num) - len(suffix)
		base = truncate(info.PatchName, maxLen)
		if base == "" {
			base = "patch"
		}
	}

	name := path.Join(cmds.Topic, num+base+suffix)
	if containsName(series, name) {
		presuffix := fmt.Sprintf("-%d", len(series))
		if maxLen > 0 {
			base = truncate(base, maxLen-len(presuffix))
		}
		name = path.Join(cmds.Topic, num+base+presuffix+suffix)
	}
	return name
}

// formatPatch writes the patch of a single commit. It returns an empty name
// for commits without changes.
func (q *Queue) formatPatch(ctx context.Context, outDir string, info *git.CommitInfo, body string, cmds Commands, series []string) (string, error) {
	name := q.patchFileName(info, cmds, series)
	if len(info.Parents) == 0 {
		return "", gbperrors.NewGbpError("Can't export root commit %s", info.ID)
	}
	diff, err := q.repo.Diff(ctx, info.Parents[0], info.ID, git.DiffOptions{Abbrev: q.opts.Abbrev, Stat: true})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(diff) == "" {
		q.log.Debug("I won't generate empty diff %s", name)
		return "", nil
	}

	file := filepath.Join(outDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return "", err
	}
	if err := os.WriteFile(file, []byte(patchContent(info, body, diff)), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	q.log.Debug("Wrote %s", file)
	return name, nil
}

// patchContent renders a commit as a mail style patch
func patchContent(info *git.CommitInfo, body, diff string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", formatAddress(info.Author.Name, info.Author.Email))
	fmt.Fprintf(&b, "Date: %s\n", info.When.Format(git.PatchDateFormat))
	fmt.Fprintf(&b, "Subject: %s\n", mime.QEncoding.Encode("utf-8", info.Subject))
	b.WriteString("\n")
	if body != "" {
		b.WriteString(body)
	}
	b.WriteString("---\n")
	b.WriteString(diff)
	return b.String()
}

func formatAddress(name, email string) string {
	encoded := mime.QEncoding.Encode("utf-8", name)
	if encoded == name && nameSpecialRe.MatchString(name) {
		encoded = `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
	}
	return fmt.Sprintf("%s <%s>", encoded, email)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
