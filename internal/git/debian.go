package git

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var versionMangleRe = regexp.MustCompile(`%\(version%([^%])%((?:[^%]|\\%)+)\)s`)

var formatKeyRe = regexp.MustCompile(`%\(([a-z]+)\)s|%%`)

// SanitizeVersion makes a Debian version usable inside a ref name
func SanitizeVersion(version string) string {
	v := strings.ReplaceAll(version, "~", "_")
	v = strings.ReplaceAll(v, ":", "%")
	v = strings.ReplaceAll(v, "..", ".#.")
	if strings.HasSuffix(v, ".lock") {
		v = strings.TrimSuffix(v, ".lock") + ".#lock"
	}
	return v
}

// VersionToTag expands a tag format such as "debian/%(version)s" for
// version. Besides %(version)s the format may use %(hversion)s (dots
// replaced by dashes) and %(version%A%B)s (every A replaced by B).
func VersionToTag(format, version string) (string, error) {
	if m := versionMangleRe.FindStringSubmatch(format); m != nil {
		format = versionMangleRe.ReplaceAllLiteralString(format, "%(version)s")
		version = strings.ReplaceAll(version, m[1], strings.ReplaceAll(m[2], `\%`, "%"))
	}
	sanitized := SanitizeVersion(version)
	values := map[string]string{
		"version":  sanitized,
		"hversion": strings.ReplaceAll(sanitized, ".", "-"),
	}

	var unknown string
	tag := formatKeyRe.ReplaceAllStringFunc(format, func(match string) string {
		if match == "%%" {
			return "%"
		}
		key := formatKeyRe.FindStringSubmatch(match)[1]
		v, ok := values[key]
		if !ok && unknown == "" {
			unknown = key
		}
		return v
	})
	if unknown != "" {
		return "", fmt.Errorf("unknown key '%s' in tag format '%s'", unknown, format)
	}
	return tag, nil
}

// FindVersion looks up the tag format expands to for version and returns
// the commit it points to
func (r *Repository) FindVersion(ctx context.Context, format, version string) (string, bool, error) {
	tag, err := VersionToTag(format, version)
	if err != nil {
		return "", false, err
	}
	if !r.HasTag(ctx, tag) {
		return "", false, nil
	}
	sha, err := r.ResolveCommit(ctx, TagRef(tag))
	if err != nil {
		return "", false, err
	}
	return sha, true, nil
}
