// Package dsc parses Debian source package descriptors (.dsc files).
package dsc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"pault.ag/go/debian/control"
	"pault.ag/go/debian/version"

	gbperrors "github.com/agx/git-buildpackage-sub001/internal/errors"
)

// Source formats understood by the importer
const (
	Format10      = "1.0"
	Format3Quilt  = "3.0 (quilt)"
	Format3Native = "3.0 (native)"
)

// ErrMalformed is returned for descriptors lacking required fields or files
var ErrMalformed = errors.New("malformed source package descriptor")

var (
	origRe      = regexp.MustCompile(`\.orig\.tar\.[a-z0-9]+$`)
	componentRe = regexp.MustCompile(`\.orig-([a-z0-9][a-z0-9-]*)\.tar\.[a-z0-9]+$`)
	debianTarRe = regexp.MustCompile(`\.debian\.tar\.[a-z0-9]+$`)
	diffRe      = regexp.MustCompile(`\.diff\.gz$`)
	nativeRe    = regexp.MustCompile(`\.tar\.[a-z0-9]+$`)
)

// control paragraph fields read from the .dsc
type paragraph struct {
	Format          string
	Source          string
	Version         string
	Maintainer      string
	Files           string
	ChecksumsSha256 string `control:"Checksums-Sha256"`
}

// Descriptor is a parsed source package descriptor. All file paths are
// absolute.
type Descriptor struct {
	Path       string
	Package    string
	Maintainer string
	Format     string
	Native     bool

	// Version is the full version including epoch and revision
	Version         string
	Epoch           uint
	UpstreamVersion string
	DebianVersion   string

	// Tarball is the upstream tarball, or the only tarball of a native package
	Tarball string
	// DebianTarball is the packaging overlay of 3.0 (quilt) packages
	DebianTarball string
	// Diff is the packaging delta of 1.0 non-native packages
	Diff string
	// Components maps component names to their additional tarballs
	Components map[string]string
}

// ComponentNames returns the component names sorted
func (d *Descriptor) ComponentNames() []string {
	names := make([]string, 0, len(d.Components))
	for name := range d.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tarballs returns the upstream tarball followed by the component tarballs
func (d *Descriptor) Tarballs() []string {
	tarballs := []string{d.Tarball}
	for _, name := range d.ComponentNames() {
		tarballs = append(tarballs, d.Components[name])
	}
	return tarballs
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %s", d.Package, d.Version)
}

// ParseFile parses the descriptor at path
func ParseFile(path string) (*Descriptor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, abs)
}

// Parse parses a descriptor read from r. File names are resolved relative
// to the directory of path.
func Parse(r io.Reader, path string) (*Descriptor, error) {
	dec, err := control.NewDecoder(r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var p paragraph
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	p.Source = strings.TrimSpace(p.Source)
	p.Version = strings.TrimSpace(p.Version)
	p.Format = strings.TrimSpace(p.Format)
	if p.Source == "" || p.Version == "" {
		return nil, fmt.Errorf("%w: %s lacks Source or Version", ErrMalformed, path)
	}
	if p.Format == "" {
		p.Format = Format10
	}

	v, err := version.Parse(p.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid version %q: %v", ErrMalformed, p.Version, err)
	}

	d := &Descriptor{
		Path:       path,
		Package:    p.Source,
		Maintainer: strings.TrimSpace(p.Maintainer),
		Format:     p.Format,
		Version:    p.Version,
		Epoch:      v.Epoch,
		Components: map[string]string{},
	}

	dir := filepath.Dir(path)
	files := fileNames(p.Files)
	if len(files) == 0 {
		files = fileNames(p.ChecksumsSha256)
	}
	var native string
	for _, name := range files {
		full := filepath.Join(dir, name)
		switch {
		case componentRe.MatchString(name):
			d.Components[componentRe.FindStringSubmatch(name)[1]] = full
		case origRe.MatchString(name):
			d.Tarball = full
		case debianTarRe.MatchString(name):
			d.DebianTarball = full
		case diffRe.MatchString(name):
			d.Diff = full
		case nativeRe.MatchString(name):
			native = full
		}
	}

	switch d.Format {
	case Format10:
		d.Native = d.Diff == ""
	case Format3Quilt:
		if d.DebianTarball == "" {
			return nil, fmt.Errorf("%w: %s lists no debian tarball", ErrMalformed, path)
		}
	case Format3Native:
		d.Native = true
	default:
		return nil, gbperrors.NewGbpErrorKind(gbperrors.ErrUnsupportedFormat,
			"Importing %s source format not yet supported.", d.Format)
	}

	if d.Native {
		if d.Tarball == "" {
			d.Tarball = native
		}
		d.UpstreamVersion = v.Version
		if v.Revision != "" {
			d.UpstreamVersion += "-" + v.Revision
		}
		d.Diff, d.DebianTarball = "", ""
	} else {
		d.UpstreamVersion = v.Version
		d.DebianVersion = v.Revision
	}
	if d.Tarball == "" {
		return nil, fmt.Errorf("%w: %s lists no tarball", ErrMalformed, path)
	}
	return d, nil
}

// fileNames extracts the file names from a Files or Checksums field. Each
// line is "<checksum> <size> <name>".
func fileNames(field string) []string {
	var names []string
	for _, line := range strings.Split(field, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		names = append(names, fields[len(fields)-1])
	}
	return names
}

// SplitVersion splits a full Debian version into its upstream and
// packaging parts. The split happens at the last hyphen; the epoch is
// dropped. A native version has an empty packaging part.
func SplitVersion(full string) (upstream, debian string, err error) {
	v, err := version.Parse(full)
	if err != nil {
		return "", "", fmt.Errorf("invalid version %q: %w", full, err)
	}
	return v.Version, v.Revision, nil
}
