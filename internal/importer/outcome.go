package importer

import "fmt"

// Kind is the result class of importing one source package
type Kind int

const (
	// Imported means the version is now tagged in the repository
	Imported Kind = iota
	// Skipped means the version was already imported and nothing changed
	Skipped
	// Failed means the import was aborted and rolled back
	Failed
)

func (k Kind) String() string {
	switch k {
	case Imported:
		return "imported"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome reports what happened to one source package
type Outcome struct {
	Kind    Kind
	Package string
	Version string
	// Tag is the packaging tag of the version (the only tag of native packages)
	Tag string
	// UpstreamTag is empty for native packages
	UpstreamTag string
	// Commit is the new packaging branch tip of an imported version
	Commit   string
	RepoPath string
	// Reason explains a skip
	Reason string
	Err    error
}

func (o *Outcome) String() string {
	switch o.Kind {
	case Skipped:
		return fmt.Sprintf("%s %s skipped: %s", o.Package, o.Version, o.Reason)
	case Failed:
		return fmt.Sprintf("%s %s failed: %v", o.Package, o.Version, o.Err)
	default:
		return fmt.Sprintf("%s %s imported as %s", o.Package, o.Version, o.Tag)
	}
}
