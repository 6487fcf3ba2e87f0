package patch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SeriesFile is the name of the quilt series file inside the patch directory
const SeriesFile = "series"

// Series is an ordered list of patches. Order is the order of application.
type Series []*Patch

var commentRe = regexp.MustCompile(`(^|\s+)#.*$`)

// ParseSeriesLine parses one line of a series file. It returns nil for blank
// lines and comments.
func ParseSeriesLine(line, patchDir string) *Patch {
	line = strings.TrimSpace(commentRe.ReplaceAllString(line, ""))
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	name := fields[0]
	strip := DefaultStrip
	if len(fields) > 1 && strings.HasPrefix(fields[1], "-p") {
		if n, err := strconv.Atoi(strings.TrimPrefix(fields[1], "-p")); err == nil {
			strip = n
		}
	}
	topic := path.Dir(name)
	if topic == "." {
		topic = ""
	}
	return &Patch{
		Path:  filepath.Join(patchDir, filepath.FromSlash(name)),
		Name:  name,
		Topic: topic,
		Strip: strip,
	}
}

// ReadSeries parses a series listing patches relative to patchDir
func ReadSeries(r io.Reader, patchDir string) (Series, error) {
	var series Series
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if p := ParseSeriesLine(scanner.Text(), patchDir); p != nil {
			series = append(series, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series: %w", err)
	}
	return series, nil
}

// ReadSeriesFile reads a series file. A missing file is an empty series.
func ReadSeriesFile(seriesPath string) (Series, error) {
	f, err := os.Open(seriesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Series{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSeries(f, filepath.Dir(seriesPath))
}

// Names returns the series entries as they appear in the series file
func (s Series) Names() []string {
	names := make([]string, 0, len(s))
	for _, p := range s {
		names = append(names, p.Name)
	}
	return names
}

// SeriesComment is a run of comment lines of a series file together with
// the entry following it. Before is empty for comments closing the file.
type SeriesComment struct {
	Before string
	Lines  []string
}

// ReadSeriesComments collects the whole-line comments of a series verbatim
func ReadSeriesComments(r io.Reader) ([]SeriesComment, error) {
	var comments []SeriesComment
	var pending []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			pending = append(pending, line)
			continue
		}
		if p := ParseSeriesLine(line, ""); p != nil && len(pending) > 0 {
			comments = append(comments, SeriesComment{Before: p.Name, Lines: pending})
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read series: %w", err)
	}
	if len(pending) > 0 {
		comments = append(comments, SeriesComment{Lines: pending})
	}
	return comments, nil
}

// ReadSeriesCommentsFile reads the comments of a series file. A missing
// file has none.
func ReadSeriesCommentsFile(seriesPath string) ([]SeriesComment, error) {
	f, err := os.Open(seriesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSeriesComments(f)
}

// WriteSeries writes one patch name per line. Each comment goes in front of
// the entry it preceded before; comments whose entry is gone go last.
func WriteSeries(w io.Writer, names []string, comments []SeriesComment) error {
	listed := make(map[string]bool, len(names))
	for _, name := range names {
		listed[name] = true
	}
	writeLines := func(lines []string) error {
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		for _, c := range comments {
			if c.Before == name {
				if err := writeLines(c.Lines); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	for _, c := range comments {
		if !listed[c.Before] {
			if err := writeLines(c.Lines); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteSeriesFile writes the series file in patchDir
func WriteSeriesFile(patchDir string, names []string, comments []SeriesComment) error {
	if err := os.MkdirAll(patchDir, 0750); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(patchDir, SeriesFile))
	if err != nil {
		return err
	}
	if err := WriteSeries(f, names, comments); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// CompareSeries returns the entries only in updated (added) and only in
// old (removed), each in series order
func CompareSeries(old, updated []string) (added, removed []string) {
	inOld := make(map[string]bool, len(old))
	for _, name := range old {
		inOld[name] = true
	}
	inNew := make(map[string]bool, len(updated))
	for _, name := range updated {
		inNew[name] = true
		if !inOld[name] {
			added = append(added, name)
		}
	}
	for _, name := range old {
		if !inNew[name] {
			removed = append(removed, name)
		}
	}
	return added, removed
}
