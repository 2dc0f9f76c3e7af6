package update

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Direction describes how a latest build relates to the installed one.
type Direction string

const (
	DirectionSame      Direction = "same"
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	// DirectionChanged is used when either build is not a comparable version.
	DirectionChanged Direction = "changed"
	DirectionInstall Direction = "install"
)

// CompareVersions compares two version strings
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := goversion.NewVersion(strings.TrimSpace(v1))
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	ver2, err := goversion.NewVersion(strings.TrimSpace(v2))
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return ver1.Compare(ver2), nil
}

// Describe classifies the move from installed to latest for diagnostics.
// It never influences Decide, which compares builds for equality only.
func Describe(installed, latest string) Direction {
	if installed == "" {
		return DirectionInstall
	}
	if installed == latest {
		return DirectionSame
	}

	cmp, err := CompareVersions(latest, installed)
	if err != nil {
		return DirectionChanged
	}
	switch {
	case cmp > 0:
		return DirectionUpgrade
	case cmp < 0:
		return DirectionDowngrade
	}
	return DirectionChanged
}
