package testhelpers

import (
	"archive/tar"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// Default identity of generated changelog entries
const (
	MaintainerName  = "Jane Doe"
	MaintainerEmail = "jane@example.com"
	ChangelogDate   = "Tue, 03 Oct 2023 10:00:00 +0200"
)

// SourcePackage describes a source package fixture
type SourcePackage struct {
	Name string
	// Version is the full Debian version, e.g. "2.8-1"
	Version string
	// Format defaults to "3.0 (quilt)", or "3.0 (native)" for versions without revision
	Format string
	// Upstream holds the files of the upstream tarball
	Upstream map[string]string
	// Debian holds the files below debian/. A changelog and control file
	// are generated unless given.
	Debian map[string]string
	// Components maps component names to the files of their tarballs
	Components map[string]map[string]string
}

func (p SourcePackage) noEpoch() string {
	if i := strings.Index(p.Version, ":"); i >= 0 {
		return p.Version[i+1:]
	}
	return p.Version
}

func (p SourcePackage) upstreamVersion() string {
	v := p.noEpoch()
	if i := strings.LastIndex(v, "-"); i >= 0 {
		return v[:i]
	}
	return v
}

func (p SourcePackage) native() bool {
	switch p.Format {
	case "3.0 (native)":
		return true
	case "", "1.0":
		return !strings.Contains(p.noEpoch(), "-")
	}
	return false
}

func (p SourcePackage) debianFiles() map[string]string {
	files := map[string]string{
		"changelog": fmt.Sprintf("%s (%s) unstable; urgency=medium\n\n  * New release.\n\n -- %s <%s>  %s\n",
			p.Name, p.Version, MaintainerName, MaintainerEmail, ChangelogDate),
		"control": fmt.Sprintf("Source: %s\nMaintainer: %s <%s>\n\nPackage: %s\nArchitecture: any\n",
			p.Name, MaintainerName, MaintainerEmail, p.Name),
		"rules": "#!/usr/bin/make -f\n%:\n\tdh $@\n",
	}
	for name, content := range p.Debian {
		files[name] = content
	}
	return files
}

// BuildSourcePackage writes the tarballs, delta and .dsc of pkg into dir and
// returns the path of the .dsc
func BuildSourcePackage(t *testing.T, dir string, pkg SourcePackage) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0750))

	upstream := pkg.upstreamVersion()
	noEpoch := pkg.noEpoch()
	srcDir := fmt.Sprintf("%s-%s", pkg.Name, upstream)
	format := pkg.Format
	var files []string

	switch {
	case pkg.native():
		if format == "" {
			format = "3.0 (native)"
		}
		content := copyFiles(pkg.Upstream)
		for name, c := range pkg.debianFiles() {
			content["debian/"+name] = c
		}
		name := fmt.Sprintf("%s_%s.tar.gz", pkg.Name, noEpoch)
		writeTarball(t, filepath.Join(dir, name), srcDir, content)
		files = append(files, name)
	case format == "1.0":
		orig := fmt.Sprintf("%s_%s.orig.tar.gz", pkg.Name, upstream)
		writeTarball(t, filepath.Join(dir, orig), srcDir+".orig", pkg.Upstream)
		diff := fmt.Sprintf("%s_%s.diff.gz", pkg.Name, noEpoch)
		writeDebianDiff(t, filepath.Join(dir, diff), srcDir, pkg.debianFiles())
		files = append(files, orig, diff)
	default:
		if format == "" {
			format = "3.0 (quilt)"
		}
		orig := fmt.Sprintf("%s_%s.orig.tar.gz", pkg.Name, upstream)
		writeTarball(t, filepath.Join(dir, orig), srcDir, pkg.Upstream)
		files = append(files, orig)
		names := make([]string, 0, len(pkg.Components))
		for name := range pkg.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, comp := range names {
			tarball := fmt.Sprintf("%s_%s.orig-%s.tar.gz", pkg.Name, upstream, comp)
			writeTarball(t, filepath.Join(dir, tarball), comp, pkg.Components[comp])
			files = append(files, tarball)
		}
		debian := fmt.Sprintf("%s_%s.debian.tar.xz", pkg.Name, noEpoch)
		writeTarball(t, filepath.Join(dir, debian), "debian", pkg.debianFiles())
		files = append(files, debian)
	}

	var dsc strings.Builder
	fmt.Fprintf(&dsc, "Format: %s\nSource: %s\nBinary: %s\nVersion: %s\nMaintainer: %s <%s>\nFiles:\n",
		format, pkg.Name, pkg.Name, pkg.Version, MaintainerName, MaintainerEmail)
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		sum := md5.Sum(data)
		fmt.Fprintf(&dsc, " %s %d %s\n", hex.EncodeToString(sum[:]), len(data), name)
	}
	dscPath := filepath.Join(dir, fmt.Sprintf("%s_%s.dsc", pkg.Name, noEpoch))
	require.NoError(t, os.WriteFile(dscPath, []byte(dsc.String()), 0600))
	return dscPath
}

func copyFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// writeTarball writes files below prefix/ into a tarball whose compression
// follows the file extension (.gz or .xz)
func writeTarball(t *testing.T, path, prefix string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var compressed io.WriteCloser
	if strings.HasSuffix(path, ".xz") {
		compressed, err = xz.NewWriter(f)
		require.NoError(t, err)
	} else {
		compressed = gzip.NewWriter(f)
	}

	tw := tar.NewWriter(compressed)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: prefix + "/", Typeflag: tar.TypeDir, Mode: 0755}))
	for _, name := range sortedNames(files) {
		content := files[name]
		mode := int64(0644)
		if strings.HasSuffix(name, "rules") {
			mode = 0755
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     prefix + "/" + name,
			Typeflag: tar.TypeReg,
			Mode:     mode,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, compressed.Close())
}

// writeDebianDiff writes a gzipped unified diff creating every file below
// srcDir/debian
func writeDebianDiff(t *testing.T, path, srcDir string, files map[string]string) {
	t.Helper()
	var diff strings.Builder
	for _, name := range sortedNames(files) {
		content := files[name]
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		fmt.Fprintf(&diff, "--- /dev/null\n+++ %s/debian/%s\n@@ -0,0 +1,%d @@\n", srcDir, name, len(lines))
		for _, line := range lines {
			diff.WriteString("+" + line + "\n")
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(diff.String()))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}
