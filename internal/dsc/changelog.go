package dsc

import (
	"bufio"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"pault.ag/go/debian/changelog"
	"pault.ag/go/debian/control"
)

// ChangelogEntry is the top entry of a debian/changelog
type ChangelogEntry struct {
	Source string
	// Version is the full version, UpstreamVersion excludes epoch and revision
	Version         string
	UpstreamVersion string
	AuthorName      string
	AuthorEmail     string
	When            time.Time
}

// ReadChangelog parses the top entry of a changelog
func ReadChangelog(r io.Reader) (*ChangelogEntry, error) {
	entry, err := changelog.ParseOne(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to parse changelog: %w", err)
	}
	name, email := splitMaintainer(entry.ChangedBy)
	return &ChangelogEntry{
		Source:          entry.Source,
		Version:         entry.Version.String(),
		UpstreamVersion: entry.Version.Version,
		AuthorName:      name,
		AuthorEmail:     email,
		When:            entry.When,
	}, nil
}

// sourceParagraph is the first paragraph of debian/control
type sourceParagraph struct {
	Source     string
	Maintainer string
}

// ReadMaintainer returns the Maintainer of the source paragraph of a
// debian/control file
func ReadMaintainer(r io.Reader) (name, email string, err error) {
	dec, err := control.NewDecoder(r, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to read control file: %w", err)
	}
	var src sourceParagraph
	if err := dec.Decode(&src); err != nil {
		return "", "", fmt.Errorf("failed to parse control file: %w", err)
	}
	name, email = splitMaintainer(src.Maintainer)
	return name, email, nil
}

// splitMaintainer splits "Name <email>"
func splitMaintainer(value string) (string, string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}
	if addr, err := mail.ParseAddress(value); err == nil {
		return addr.Name, addr.Address
	}
	name, rest, ok := strings.Cut(value, "<")
	if !ok {
		return value, ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), ">"))
}
