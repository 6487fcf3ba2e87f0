package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"

	"github.com/agx/git-buildpackage-sub001/internal/archive"
	"github.com/agx/git-buildpackage-sub001/internal/dsc"
	"github.com/agx/git-buildpackage-sub001/internal/git"
)

// sources are the unpacked trees of one source package
type sources struct {
	// upstream holds the upstream tarball plus one subdirectory per component
	upstream string
	// packaging is upstream with the packaging delta applied. Native
	// packages have a single tree.
	packaging string
}

// unpack extracts src below work
func (im *Importer) unpack(ctx context.Context, src *dsc.Descriptor, work string) (*sources, error) {
	upstream, err := archive.Unpack(ctx, im.log, src.Tarball, filepath.Join(work, "upstream"))
	if err != nil {
		return nil, err
	}
	for _, name := range src.ComponentNames() {
		if err := im.unpackComponent(ctx, name, src.Components[name], upstream, work); err != nil {
			return nil, err
		}
	}
	if src.Native {
		return &sources{upstream: upstream, packaging: upstream}, makeRulesExecutable(upstream)
	}

	packaging := filepath.Join(work, "packaging")
	if err := cp.Copy(upstream, packaging); err != nil {
		return nil, fmt.Errorf("failed to copy upstream sources: %w", err)
	}
	switch {
	case src.DebianTarball != "":
		err = overlayDebian(ctx, src.DebianTarball, packaging)
	case src.Diff != "":
		err = applyDiff(ctx, src.Diff, packaging, work)
	}
	if err != nil {
		return nil, err
	}
	return &sources{upstream: upstream, packaging: packaging}, makeRulesExecutable(packaging)
}

// unpackComponent puts the content of a component tarball into the
// subdirectory of upstream named after the component
func (im *Importer) unpackComponent(ctx context.Context, name, tarball, upstream, work string) error {
	root, err := archive.Unpack(ctx, im.log, tarball, filepath.Join(work, "component-"+name))
	if err != nil {
		return err
	}
	target := filepath.Join(upstream, name)
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	if err := cp.Copy(root, target); err != nil {
		return fmt.Errorf("failed to copy component %s: %w", name, err)
	}
	return nil
}

// overlayDebian replaces the debian directory of dir with the content of a
// packaging tarball
func overlayDebian(ctx context.Context, tarball, dir string) error {
	if err := os.RemoveAll(filepath.Join(dir, "debian")); err != nil {
		return err
	}
	f, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := archive.NewReader(f, archive.CompressionOf(tarball))
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", filepath.Base(tarball), err)
	}
	defer r.Close()
	if err := archive.Untar(ctx, r, dir); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", filepath.Base(tarball), err)
	}
	return nil
}

// applyDiff applies a compressed packaging diff to dir
func applyDiff(ctx context.Context, diff, dir, work string) error {
	f, err := os.Open(diff)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := archive.NewReader(f, archive.CompressionOf(diff))
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", filepath.Base(diff), err)
	}
	defer r.Close()

	plain := filepath.Join(work, "packaging.diff")
	out, err := os.Create(plain)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to decompress %s: %w", filepath.Base(diff), err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return git.ApplyPatchInDir(ctx, dir, plain, git.ApplyOptions{Strip: 1})
}

func makeRulesExecutable(dir string) error {
	err := os.Chmod(filepath.Join(dir, "debian", "rules"), 0755)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// readChangelog returns the top changelog entry of an unpacked package
func readChangelog(dir string) (*dsc.ChangelogEntry, error) {
	f, err := os.Open(filepath.Join(dir, "debian", "changelog"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dsc.ReadChangelog(f)
}
