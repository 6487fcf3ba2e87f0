// Package patch reads patch headers and quilt series files.
package patch

import (
	"bufio"
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultStrip means no strip level was given and git's default applies
const DefaultStrip = -1

// Extensions recognised as patch files
var Extensions = []string{"diff", "patch"}

// Patch is a single patch file, optionally enriched with the metadata found
// in its header.
type Patch struct {
	// Path is the location of the file on disk
	Path string
	// Name is the path relative to the patch directory as listed in a series
	Name  string
	Topic string
	Strip int

	Author   string
	Email    string
	Date     string
	Subject  string
	LongDesc string
}

// New creates a patch for the file at path
func New(path string) *Patch {
	return &Patch{Path: path, Name: filepath.Base(path), Strip: DefaultStrip}
}

func (p *Patch) String() string {
	return p.Name
}

// SubjectFromFilename derives a subject from the file name, dropping the
// patch extension and any number prefix
func (p *Patch) SubjectFromFilename() string {
	subject := filepath.Base(p.Path)
	if base, ext, ok := cutLast(subject, "."); ok {
		for _, e := range Extensions {
			if ext == e {
				subject = base
				break
			}
		}
	}
	if trimmed := strings.TrimLeft(subject, "0123456789-"); trimmed != "" {
		return trimmed
	}
	return subject
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// ReadInfo fills the metadata fields from the patch header. Patches in git
// format-patch (mbox) form and DEP-3 headers are understood. A missing
// subject is taken from the file name.
func (p *Patch) ReadInfo() error {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return fmt.Errorf("failed to read patch %s: %w", p.Path, err)
	}
	if !p.readMailHeader(data) {
		p.readDep3Header(data)
	}
	if p.Subject == "" {
		p.Subject = p.SubjectFromFilename()
	}
	return nil
}

var (
	headerLineRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*:`)
	patchPrefixRe  = regexp.MustCompile(`^\s*\[[^\]]*PATCH[^\]]*\]\s*`)
	dep3AuthorKeys = []string{"author", "from"}
	dep3DescKeys   = []string{"description", "subject"}
	wordDecoder    = new(mime.WordDecoder)
)

// isDiffStart reports whether line starts the diff part of a patch
func isDiffStart(line string) bool {
	return line == "---" || strings.HasPrefix(line, "--- ") ||
		strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "Index: ")
}

// readMailHeader parses an RFC 2822 style header as written by git
// format-patch. It returns false when the patch has none.
func (p *Patch) readMailHeader(data []byte) bool {
	lines := splitLines(data)
	if len(lines) > 0 && strings.HasPrefix(lines[0], "From ") {
		lines = lines[1:]
	}

	end := 0
	for end < len(lines) && lines[end] != "" {
		line := lines[end]
		if !headerLineRe.MatchString(line) && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			return false
		}
		end++
	}
	if end == 0 {
		return false
	}

	msg, err := mail.ReadMessage(strings.NewReader(strings.Join(lines[:end], "\n") + "\n\n"))
	if err != nil {
		return false
	}
	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")
	if from == "" && subject == "" {
		return false
	}

	if from != "" {
		p.Author, p.Email = parseAddress(from)
	}
	p.Date = msg.Header.Get("Date")
	if decoded, err := wordDecoder.DecodeHeader(subject); err == nil {
		subject = decoded
	}
	p.Subject = stripPatchPrefix(unfold(subject))

	var body []string
	for _, line := range lines[min(end+1, len(lines)):] {
		if isDiffStart(line) {
			break
		}
		body = append(body, line)
	}
	p.LongDesc = strings.Trim(strings.Join(body, "\n"), "\n")
	if p.LongDesc != "" {
		p.LongDesc += "\n"
	}
	return true
}

// readDep3Header parses the DEP-3 fields in front of the diff
func (p *Patch) readDep3Header(data []byte) {
	var key string
	var desc []string
	for _, line := range splitLines(data) {
		if isDiffStart(line) || strings.HasPrefix(line, "@@") {
			break
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if key == "description" || key == "subject" {
				cont := strings.TrimSpace(line)
				if cont == "." {
					cont = ""
				}
				desc = append(desc, cont)
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !headerLineRe.MatchString(line) {
			key = ""
			continue
		}
		key = strings.ToLower(name)
		value = strings.TrimSpace(value)
		switch {
		case contains(dep3AuthorKeys, key) && p.Author == "":
			p.Author, p.Email = parseAddress(value)
		case contains(dep3DescKeys, key) && p.Subject == "":
			p.Subject = value
		default:
			if !contains(dep3DescKeys, key) {
				key = ""
			}
		}
	}
	if len(desc) > 0 {
		p.LongDesc = strings.Trim(strings.Join(desc, "\n"), "\n") + "\n"
	}
}

// parseAddress splits "Name <email>" leniently
func parseAddress(value string) (string, string) {
	if addr, err := mail.ParseAddress(value); err == nil {
		return addr.Name, addr.Address
	}
	if i := strings.Index(value, "<"); i >= 0 {
		name := strings.Trim(strings.TrimSpace(value[:i]), `"`)
		email := strings.TrimSuffix(strings.TrimSpace(value[i+1:]), ">")
		return name, email
	}
	return strings.TrimSpace(value), ""
}

func stripPatchPrefix(subject string) string {
	for {
		stripped := patchPrefixRe.ReplaceAllString(subject, "")
		if stripped == subject {
			return strings.TrimSpace(subject)
		}
		subject = stripped
	}
}

func unfold(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
