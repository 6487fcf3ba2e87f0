package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agx/git-buildpackage-sub001/internal/git"
)

// Patch queue base selection
const (
	PQFromDebian = "DEBIAN"
	PQFromTag    = "TAG"
)

// Defaults shared by every command
const (
	DefaultDebianBranch      = "master"
	DefaultUpstreamBranch    = "upstream"
	DefaultPristineTarBranch = "pristine-tar"
	DefaultDebianTag         = "debian/%(version)s"
	DefaultUpstreamTag       = "upstream/%(version)s"
	DefaultPatchNumFormat    = "%04d-"
)

// Common holds the options every gbp command understands
type Common struct {
	DebianBranch      string
	UpstreamBranch    string
	PristineTarBranch string
	DebianTag         string
	UpstreamTag       string
	PristineTar       bool
	SignTags          bool
	KeyID             string
	Verbose           bool
}

// ImportDsc holds the options of import-dsc and import-dscs
type ImportDsc struct {
	Common
	CreateMissingBranches     bool
	AllowSameVersion          bool
	AuthorIsCommitter         bool
	AuthorDateIsCommitterDate bool
	SkipDebianTag             bool
	Bare                      bool
	// Repo is the target repository. Empty means the current directory,
	// or a new directory named after the package.
	Repo string
}

// PQ holds the options of the pq command
type PQ struct {
	Common
	TimeMachine    int
	PQFrom         string
	Commit         bool
	Drop           bool
	Force          bool
	PatchNumbers   bool
	PatchNumFormat string
	Renumber       bool
	Abbrev         int
	Topic          string
}

// boolOption binds a config key to a bool field
type boolOption struct {
	key string
	dst *bool
	def bool
}

func readBools(v Values, opts []boolOption) error {
	var errs []error
	for _, o := range opts {
		b, err := v.Bool(o.key, o.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*o.dst = b
	}
	return errors.Join(errs...)
}

// NewCommon builds and validates the common options
func NewCommon(v Values) (Common, error) {
	c := Common{
		DebianBranch:      v.Get("debian-branch", DefaultDebianBranch),
		UpstreamBranch:    v.Get("upstream-branch", DefaultUpstreamBranch),
		PristineTarBranch: v.Get("pristine-tar-branch", DefaultPristineTarBranch),
		DebianTag:         v.Get("debian-tag", DefaultDebianTag),
		UpstreamTag:       v.Get("upstream-tag", DefaultUpstreamTag),
		KeyID:             v.Get("keyid", ""),
	}
	if err := readBools(v, []boolOption{
		{"pristine-tar", &c.PristineTar, false},
		{"sign-tags", &c.SignTags, false},
		{"verbose", &c.Verbose, false},
	}); err != nil {
		return Common{}, err
	}
	return c, c.Validate()
}

// Validate checks the branch names and tag formats
func (c Common) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DebianBranch) == "" {
		errs = append(errs, errors.New("debian-branch must not be empty"))
	}
	if strings.TrimSpace(c.UpstreamBranch) == "" {
		errs = append(errs, errors.New("upstream-branch must not be empty"))
	}
	if c.DebianBranch != "" && c.DebianBranch == c.UpstreamBranch {
		errs = append(errs, fmt.Errorf("debian-branch and upstream-branch must differ, both are '%s'", c.DebianBranch))
	}
	for key, tagFormat := range map[string]string{"debian-tag": c.DebianTag, "upstream-tag": c.UpstreamTag} {
		if err := validateTagFormat(tagFormat); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func validateTagFormat(tagFormat string) error {
	if !strings.Contains(tagFormat, "%(version") && !strings.Contains(tagFormat, "%(hversion)s") {
		return fmt.Errorf("tag format '%s' must contain %%(version)s or %%(hversion)s", tagFormat)
	}
	_, err := git.VersionToTag(tagFormat, "0")
	return err
}

// NewImportDsc builds and validates the import-dsc options
func NewImportDsc(v Values) (ImportDsc, error) {
	common, err := NewCommon(v)
	if err != nil {
		return ImportDsc{}, err
	}
	c := ImportDsc{Common: common, Repo: v.Get("repo", "")}
	if err := readBools(v, []boolOption{
		{"create-missing-branches", &c.CreateMissingBranches, false},
		{"allow-same-version", &c.AllowSameVersion, false},
		{"author-is-committer", &c.AuthorIsCommitter, false},
		{"author-date-is-committer-date", &c.AuthorDateIsCommitterDate, false},
		{"skip-debian-tag", &c.SkipDebianTag, false},
		{"bare", &c.Bare, false},
	}); err != nil {
		return ImportDsc{}, err
	}
	return c, nil
}

// NewPQ builds and validates the pq options
func NewPQ(v Values) (PQ, error) {
	common, err := NewCommon(v)
	if err != nil {
		return PQ{}, err
	}
	c := PQ{
		Common:         common,
		PQFrom:         strings.ToUpper(v.Get("pq-from", PQFromDebian)),
		PatchNumFormat: v.Get("patch-num-format", DefaultPatchNumFormat),
		Topic:          v.Get("topic", ""),
	}
	if err := readBools(v, []boolOption{
		{"commit", &c.Commit, false},
		{"drop", &c.Drop, false},
		{"force", &c.Force, false},
		{"patch-numbers", &c.PatchNumbers, false},
		{"renumber", &c.Renumber, false},
	}); err != nil {
		return PQ{}, err
	}
	if c.TimeMachine, err = v.Int("time-machine", 1); err != nil {
		return PQ{}, err
	}
	if c.Abbrev, err = v.Int("abbrev", 7); err != nil {
		return PQ{}, err
	}
	return c, c.Validate()
}

// Validate checks the pq specific options
func (c PQ) Validate() error {
	var errs []error
	if c.PQFrom != PQFromDebian && c.PQFrom != PQFromTag {
		errs = append(errs, fmt.Errorf("invalid pq-from '%s', must be %s or %s", c.PQFrom, PQFromDebian, PQFromTag))
	}
	if c.TimeMachine < 1 {
		errs = append(errs, fmt.Errorf("time-machine must be at least 1, got %d", c.TimeMachine))
	}
	if c.Abbrev < 0 {
		errs = append(errs, fmt.Errorf("abbrev must not be negative, got %d", c.Abbrev))
	}
	if !strings.Contains(c.PatchNumFormat, "%") {
		errs = append(errs, fmt.Errorf("patch-num-format '%s' must contain a number verb", c.PatchNumFormat))
	}
	return errors.Join(errs...)
}
