package semver

import (
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// NormalizeVersion parses a version string and returns its canonical form (e.g. "1" -> "1.0.0").
func NormalizeVersion(version string) (string, error) {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return sv.String(), nil
}

// SatisfiesRange checks if a version string satisfies a range. An empty range matches any valid version.
func SatisfiesRange(version, rangeStr string) bool {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}

	if rangeStr == "" {
		return true
	}

	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}

	if IsExactVersion(rangeStr) {
		want, err := masterminds.NewVersion(rangeStr)
		if err != nil {
			return false
		}
		return sv.Equal(want)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}

	return constraint.Check(sv)
}
