// Package descriptor defines the version descriptor shared by the release
// resolver, the update decider and the installed-state store.
package descriptor

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Property keys used in version.properties and installedVersions.properties.
const (
	KeyBuildVersion      = "build_version"
	KeyRuntimeURL        = "jre_URL_Win64"
	KeyRuntimeSignature  = "jre_SHA256_Signature_Win64"
	KeyRuntimeFolderName = "jre_FolderName_Win64"
)

// Keys lists the property keys in the order they are written.
var Keys = []string{KeyBuildVersion, KeyRuntimeURL, KeyRuntimeSignature, KeyRuntimeFolderName}

// ErrInvalid is wrapped by every construction failure.
var ErrInvalid = errors.New("invalid version descriptor")

// Descriptor describes one build of the client and the runtime bundle it ships with.
// Values are only produced by New or FromProperties, so a Descriptor is always fully populated.
type Descriptor struct {
	BuildVersion      string `json:"build_version" yaml:"build_version"`
	RuntimeURL        string `json:"runtime_url" yaml:"runtime_url"`
	RuntimeSignature  string `json:"runtime_signature" yaml:"runtime_signature"`
	RuntimeFolderName string `json:"runtime_folder_name" yaml:"runtime_folder_name"`
}

// New validates the fields and returns a Descriptor.
func New(buildVersion, runtimeURL, runtimeSignature, runtimeFolderName string) (Descriptor, error) {
	d := Descriptor{
		BuildVersion:      strings.TrimSpace(buildVersion),
		RuntimeURL:        strings.TrimSpace(runtimeURL),
		RuntimeSignature:  strings.TrimSpace(runtimeSignature),
		RuntimeFolderName: strings.TrimSpace(runtimeFolderName),
	}
	if err := d.validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func (d Descriptor) validate() error {
	var result *multierror.Error

	fields := map[string]string{
		KeyBuildVersion:      d.BuildVersion,
		KeyRuntimeURL:        d.RuntimeURL,
		KeyRuntimeSignature:  d.RuntimeSignature,
		KeyRuntimeFolderName: d.RuntimeFolderName,
	}
	for _, key := range Keys {
		if fields[key] == "" {
			result = multierror.Append(result, fmt.Errorf("%s is missing", key))
		}
	}

	if d.RuntimeURL != "" {
		if err := validateURL(d.RuntimeURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", KeyRuntimeURL, err))
		}
	}

	if d.RuntimeFolderName != "" {
		if err := validateFolderName(d.RuntimeFolderName); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", KeyRuntimeFolderName, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// validateFolderName requires a single path element, the folder name is joined
// onto the installation root.
func validateFolderName(name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("%q is not a folder name", name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || filepath.VolumeName(name) != "" {
		return fmt.Errorf("%q must be a single path element", name)
	}
	return nil
}

// Equal reports whether all four fields match.
func (d Descriptor) Equal(other Descriptor) bool {
	return d == other
}

// String returns a short human-readable form.
func (d Descriptor) String() string {
	return fmt.Sprintf("build %s, runtime %s (%s)", d.BuildVersion, d.RuntimeFolderName, d.RuntimeURL)
}

// Fields returns the descriptor as key/value pairs keyed by the property names.
func (d Descriptor) Fields() map[string]string {
	return map[string]string{
		KeyBuildVersion:      d.BuildVersion,
		KeyRuntimeURL:        d.RuntimeURL,
		KeyRuntimeSignature:  d.RuntimeSignature,
		KeyRuntimeFolderName: d.RuntimeFolderName,
	}
}
