package update

import "github.com/isp-insoft-gmbh/memate-launcher/internal/descriptor"

// Change is one descriptor field that differs between installed and latest.
type Change struct {
	Field     string `json:"field" yaml:"field"`
	Installed string `json:"installed" yaml:"installed"`
	Latest    string `json:"latest" yaml:"latest"`
}

// Plan says which components of an installation are stale.
type Plan struct {
	ClientNeedsUpdate  bool     `json:"client_needs_update" yaml:"client_needs_update"`
	RuntimeNeedsUpdate bool     `json:"runtime_needs_update" yaml:"runtime_needs_update"`
	FirstRun           bool     `json:"first_run" yaml:"first_run"`
	Changes            []Change `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// UpToDate reports whether nothing needs fetching according to the descriptors.
func (p Plan) UpToDate() bool {
	return !p.ClientNeedsUpdate && !p.RuntimeNeedsUpdate
}

// Decide compares the installed descriptor with the latest one. A nil installed
// descriptor means nothing is installed yet and both components are stale.
//
// The client is stale when the build versions differ. The runtime is stale when
// any of its URL, signature or folder name differ. Versions are compared for
// equality only, so a rollback to an older build is an update too.
func Decide(installed *descriptor.Descriptor, latest descriptor.Descriptor) Plan {
	if installed == nil {
		return Plan{
			ClientNeedsUpdate:  true,
			RuntimeNeedsUpdate: true,
			FirstRun:           true,
			Changes:            diff(descriptor.Descriptor{}, latest),
		}
	}

	return Plan{
		ClientNeedsUpdate: installed.BuildVersion != latest.BuildVersion,
		RuntimeNeedsUpdate: installed.RuntimeURL != latest.RuntimeURL ||
			installed.RuntimeSignature != latest.RuntimeSignature ||
			installed.RuntimeFolderName != latest.RuntimeFolderName,
		Changes: diff(*installed, latest),
	}
}

func diff(installed, latest descriptor.Descriptor) []Change {
	was, now := installed.Fields(), latest.Fields()

	var changes []Change
	for _, key := range descriptor.Keys {
		if was[key] != now[key] {
			changes = append(changes, Change{Field: key, Installed: was[key], Latest: now[key]})
		}
	}
	return changes
}
