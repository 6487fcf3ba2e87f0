package importer

import (
	"context"
	"fmt"
	"sort"

	debversion "github.com/knqyf263/go-deb-version"

	"github.com/agx/git-buildpackage-sub001/internal/dsc"
)

type versioned struct {
	src     *dsc.Descriptor
	version debversion.Version
}

// ImportAll imports several source packages into one repository, oldest
// version first. It stops at the first failure and returns the outcomes
// so far, the failed one included. Skipped versions do not stop the run.
func (im *Importer) ImportAll(ctx context.Context, paths []string) ([]*Outcome, error) {
	items := make([]versioned, 0, len(paths))
	for _, path := range paths {
		src, err := dsc.ParseFile(path)
		if err != nil {
			return nil, err
		}
		v, err := debversion.NewVersion(src.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q in %s: %w", src.Version, path, err)
		}
		items = append(items, versioned{src: src, version: v})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].version.LessThan(items[j].version)
	})

	target := im.opts.Repo
	outcomes := make([]*Outcome, 0, len(items))
	for _, item := range items {
		im.log.Info("Importing %s", item.src)
		out, err := im.importSource(ctx, item.src, target)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, err
		}
		if out.Kind == Skipped {
			im.log.Info("Skipping %s: %s", item.src, out.Reason)
		}
		if target == "" {
			target = out.RepoPath
		}
	}
	return outcomes, nil
}
