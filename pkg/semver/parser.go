// Package semver provides command reference parsing and domain version matching.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedCommandRef holds the parsed components of a command reference string.
type ParsedCommandRef struct {
	// Domain of the command (e.g., "folder")
	Domain string
	// Name within the domain (e.g., "CreateView")
	Name string
	// Version range if specified (e.g., "^1.2.0", "1", ""); empty string means any version
	Range string
	// Raw input string
	Raw string
}

// ID returns the "domain.Name" part of the reference.
func (p *ParsedCommandRef) ID() string {
	return p.Domain + "." + p.Name
}

var (
	commandNameRegex  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	domainNameRegex   = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseCommandRef parses a command reference string.
//
// Supported formats:
//   - folder.CreateView           (no version)
//   - folder.CreateView@1         (major only)
//   - folder.CreateView@1.2.0     (exact version)
//   - folder.CreateView@^1.2.0    (caret range)
//   - folder.CreateView@>=1.0.0   (comparison range)
func ParseCommandRef(input string) (*ParsedCommandRef, error) {
	raw := strings.TrimSpace(input)

	ref, rangeStr, _ := strings.Cut(raw, "@")

	domain, name, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, fmt.Errorf("%s - invalid command reference, missing domain: %s", logPrefix, raw)
	}
	if !ValidateDomainName(domain) {
		return nil, fmt.Errorf("%s - invalid domain %q in %s", logPrefix, domain, raw)
	}
	if !ValidateCommandName(name) {
		return nil, fmt.Errorf("%s - invalid command name %q in %s", logPrefix, name, raw)
	}
	if strings.Contains(raw, "@") && strings.TrimSpace(rangeStr) == "" {
		return nil, fmt.Errorf("%s - empty version range in %s", logPrefix, raw)
	}

	return &ParsedCommandRef{
		Domain: domain,
		Name:   name,
		Range:  strings.TrimSpace(rangeStr),
		Raw:    raw,
	}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// ValidateCommandName validates a command name (PascalCase identifiers, digits and underscores allowed).
func ValidateCommandName(name string) bool {
	return commandNameRegex.MatchString(name)
}

// ValidateDomainName validates a domain name (lowercase, alphanumeric, hyphens).
func ValidateDomainName(domain string) bool {
	return domainNameRegex.MatchString(domain)
}
