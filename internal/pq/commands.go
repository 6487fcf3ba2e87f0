package pq

import (
	"regexp"
	"strings"

	"github.com/agx/git-buildpackage-sub001/internal/output"
)

var (
	gbpCommandRe = regexp.MustCompile(`(?i)^(gbp|gbp-pq):\s*([a-z-]+)(\s+(\S.*))?`)
	oldTopicRe   = regexp.MustCompile(`(?i)^gbp-pq-topic:\s*(\S.*)`)
)

// Commands are the export directives found in a commit message
type Commands struct {
	Ignore bool
	Topic  string
	Name   string
}

// ParseCommands extracts the Gbp: and Gbp-Pq: directives from a commit body
// and returns the body with the topic and name directives removed. Unknown
// directives and directives missing their argument are kept and warned
// about.
func ParseCommands(log output.Logger, commit, body string) (Commands, string) {
	var cmds Commands
	var kept []string
	for _, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		if m := oldTopicRe.FindStringSubmatch(line); m != nil {
			cmds.Topic = strings.TrimSpace(m[1])
			log.Warn("Deprecated 'gbp-pq-topic: <topic>' in %s, please use 'Gbp[-Pq]: Topic <topic>'", commit)
			continue
		}
		m := gbpCommandRe.FindStringSubmatch(line)
		if m == nil {
			kept = append(kept, line)
			continue
		}
		cmd, arg := strings.ToLower(m[2]), strings.TrimSpace(m[4])
		switch cmd {
		case "ignore":
			cmds.Ignore = true
		case "topic", "name":
			if arg == "" {
				log.Warn("Ignoring gbp-command '%s' in commit %s: missing cmd arguments", line, commit)
			} else if cmd == "topic" {
				cmds.Topic = arg
			} else {
				cmds.Name = arg
			}
			continue
		default:
			log.Warn("Ignoring unknown gbp-command '%s' in commit %s", line, commit)
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	if strings.TrimSpace(out) == "" {
		return cmds, ""
	}
	return cmds, strings.TrimRight(out, "\n") + "\n"
}
