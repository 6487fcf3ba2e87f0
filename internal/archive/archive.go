// Package archive unpacks the tarballs of a source package.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/agx/git-buildpackage-sub001/internal/output"
)

// Compression is the compression of a tarball
type Compression string

const (
	None  Compression = ""
	Gzip  Compression = "gzip"
	Bzip2 Compression = "bzip2"
	XZ    Compression = "xz"
	LZMA  Compression = "lzma"
	Zstd  Compression = "zstd"
)

// ErrUnsafePath is returned for archive members escaping the target directory
var ErrUnsafePath = errors.New("archive member escapes target directory")

// CompressionOf guesses the compression from a file name
func CompressionOf(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".tgz":
		return Gzip
	case ".bz2", ".tbz2":
		return Bzip2
	case ".xz", ".txz":
		return XZ
	case ".lzma":
		return LZMA
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// NewReader wraps r in a decompressor for c
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case XZ:
		reader, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	case LZMA:
		reader, err := lzma.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(reader), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}

// Unpack extracts tarball below dest and returns the directory holding the
// sources: the single top level directory of the archive when there is one,
// dest otherwise.
func Unpack(ctx context.Context, log output.Logger, tarball, dest string) (string, error) {
	f, err := os.Open(tarball)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := NewReader(f, CompressionOf(tarball))
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", filepath.Base(tarball), err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0750); err != nil {
		return "", err
	}
	log.Debug("Unpacking %s to %s", tarball, dest)
	if err := Untar(ctx, r, dest); err != nil {
		return "", fmt.Errorf("failed to unpack %s: %w", filepath.Base(tarball), err)
	}
	return TopDir(dest)
}

// TopDir returns the only entry of dir if it is a directory, dir otherwise
func TopDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// Untar expands a tar archive into the given path.
func Untar(ctx context.Context, r io.Reader, path string) error {
	path = filepath.Clean(path)
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		case header == nil:
			continue
		}

		target, err := resolve(path, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := removeSymlink(target); err != nil {
				return err
			}
			if err := writeFile(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(path, target, header); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			if _, err := safeJoin(path, header.Linkname); err != nil {
				return err
			}
			source, err := securejoin.SecureJoin(path, header.Linkname)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return err
			}
		}
	}
}

func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, name)
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// within reports whether p is root or lexically below it
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve maps an archive member to its location below root. Symlinks
// already unpacked are followed, but never out of root. The last path
// element is not resolved so a member can replace an existing link.
func resolve(root, name string) (string, error) {
	if _, err := safeJoin(root, name); err != nil {
		return "", err
	}
	clean := filepath.Clean(string(filepath.Separator) + name)
	parent, err := securejoin.SecureJoin(root, filepath.Dir(clean))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsafePath, name, err)
	}
	return filepath.Join(parent, filepath.Base(clean)), nil
}

// checkLink rejects symlinks pointing outside root
func checkLink(root, target string, header *tar.Header) error {
	if filepath.IsAbs(header.Linkname) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
	}
	if !within(root, filepath.Join(filepath.Dir(target), header.Linkname)) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
	}
	return nil
}

func removeSymlink(target string) error {
	fi, err := os.Lstat(target)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(target)
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return err
	}
	// owner must always be able to read and replace what was unpacked
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile applies the umask, Chmod keeps executable bits intact
	return os.Chmod(target, mode|0600)
}
