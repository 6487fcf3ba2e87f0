package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	format "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/spf13/pflag"
)

// ConfFilesEnv overrides the list of configuration files (colon separated)
const ConfFilesEnv = "GBP_CONF_FILES"

// DefaultSection holds options shared by all commands
const DefaultSection = "DEFAULT"

// Values is the merged key/value view of the configuration of one command.
// Keys are lower case option names such as "debian-branch".
type Values map[string]string

// Files returns the configuration files to read for a repository, lowest
// precedence first. repoDir and gitDir may be empty outside a repository.
func Files(repoDir, gitDir string) []string {
	if env := os.Getenv(ConfFilesEnv); env != "" {
		return filepath.SplitList(env)
	}
	files := []string{"/etc/git-buildpackage/gbp.conf"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".gbp.conf"))
	}
	if repoDir != "" {
		files = append(files,
			filepath.Join(repoDir, ".gbp.conf"),
			filepath.Join(repoDir, "debian", "gbp.conf"))
	}
	if gitDir != "" {
		files = append(files, filepath.Join(gitDir, "gbp.conf"))
	}
	return files
}

// sections maps lower case section names to their options
type sections map[string]map[string]string

func (s sections) merge(cfg *format.Config) {
	for _, sec := range cfg.Sections {
		name := strings.ToLower(sec.Name)
		if s[name] == nil {
			s[name] = map[string]string{}
		}
		for _, opt := range sec.Options {
			s[name][strings.ToLower(opt.Key)] = opt.Value
		}
	}
}

func readFile(path string) (*format.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg := format.New()
	if err := format.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads files (missing ones are skipped) and flattens the options that
// apply to command: [DEFAULT], then the legacy [git-<command>] and
// [gbp-<command>] sections, then [<command>]. Later files win over earlier
// ones within a section.
func Load(files []string, command string) (Values, error) {
	merged := sections{}
	for _, path := range files {
		cfg, err := readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.merge(cfg)
	}

	values := Values{}
	order := []string{strings.ToLower(DefaultSection)}
	if command != "" {
		order = append(order, "git-"+command, "gbp-"+command, command)
	}
	for _, name := range order {
		for k, v := range merged[name] {
			values[k] = v
		}
	}
	return values, nil
}

// ApplyFlags overrides values with every flag that was set explicitly on the
// command line
func (v Values) ApplyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		v[f.Name] = f.Value.String()
	})
}

// Get returns the value of key or def when unset
func (v Values) Get(key, def string) string {
	if value, ok := v[key]; ok {
		return value
	}
	return def
}

// Bool parses key as a boolean. true/yes/on/1 and false/no/off/0 are
// accepted in any case.
func (v Values) Bool(key string, def bool) (bool, error) {
	value, ok := v[key]
	if !ok {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value '%s' for option '%s'", value, key)
	}
}

// Int parses key as an integer
func (v Values) Int(key string, def int) (int, error) {
	value, ok := v[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for option '%s'", value, key)
	}
	return n, nil
}
