// Package validate implements the field-level validation rules voyager
// applies to manifest entries and fetched package.json metadata.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// ReverseDomain validates that id is in reverse-domain notation: at
// least two dot-separated parts, each using only lowercase
// alphanumerics, hyphens, or underscores.
func ReverseDomain(id string) error {
	if id == "" {
		return voyerr.InvalidPackageId("invalid package ID %q: must be in reverse domain notation (e.g., 'com.example.package')", id)
	}

	parts := strings.Split(id, ".")
	if len(parts) < 2 {
		return voyerr.InvalidPackageId("invalid package ID %q: must be in reverse domain notation (e.g., 'com.example.package')", id)
	}

	for _, part := range parts {
		if part == "" {
			return voyerr.InvalidPackageId("invalid package ID %q: must be in reverse domain notation (e.g., 'com.example.package')", id)
		}
		for _, c := range part {
			if !isLowerAlphaNum(c) && c != '-' && c != '_' {
				return voyerr.InvalidPackageId("invalid package ID %q: must be in reverse domain notation (e.g., 'com.example.package')", id)
			}
		}
	}
	return nil
}

func isLowerAlphaNum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// PackageIdPrefix validates that packageId is namespaced under vpmId.
func PackageIdPrefix(packageId, vpmId string) error {
	expected := vpmId + "."
	if !strings.HasPrefix(packageId, expected) {
		return voyerr.InvalidPackageId("%q must start with VPM ID prefix %q", packageId, vpmId)
	}
	return nil
}

// URL validates that rawURL is a well-formed http(s) URL with a host.
func URL(rawURL string) error {
	if rawURL == "" {
		return voyerr.InvalidUrl(rawURL, "URL is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return voyerr.InvalidUrl(rawURL, fmt.Sprintf("invalid URL format: %s", err))
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return voyerr.InvalidUrl(rawURL, "URL must start with http:// or https://")
	}

	if parsed.Host == "" {
		return voyerr.InvalidUrl(rawURL, "URL must include a host")
	}

	return nil
}

// ZipURL validates that rawURL points at a ZIP archive, or is an
// extensionless signed download URL.
func ZipURL(rawURL string) error {
	if err := URL(rawURL); err != nil {
		return err
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return voyerr.InvalidUrl(rawURL, fmt.Sprintf("invalid URL format: %s", err))
	}

	path := parsed.Path
	segments := strings.Split(path, "/")
	fileName := segments[len(segments)-1]
	hasExtension := strings.Contains(fileName, ".")

	if hasExtension && !strings.HasSuffix(strings.ToLower(fileName), ".zip") {
		return voyerr.InvalidUrl(rawURL, "URL must point to a .zip file")
	}

	return nil
}

// UnityVersion validates a "MAJOR.MINOR" Unity version string.
func UnityVersion(version string) error {
	fail := func() error {
		return voyerr.ConfigValidation("Unity version %q must be in MAJOR.MINOR format (e.g. \"2022.3\")", version)
	}

	parts := strings.Split(version, ".")
	if len(parts) != 2 {
		return fail()
	}
	for _, part := range parts {
		if part == "" {
			return fail()
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return fail()
			}
		}
	}
	return nil
}

// UnityRelease validates a Unity release suffix in
// "<digits><lowercase-letter><digits>" form, e.g. "0b4" or "22f1".
func UnityRelease(release string) error {
	fail := func() error {
		return voyerr.ConfigValidation("Unity release %q must be in <UPDATE><RELEASE> format (e.g. \"0b4\", \"22f1\")", release)
	}

	chars := []rune(release)
	if len(chars) == 0 {
		return fail()
	}

	idx := 0
	for idx < len(chars) && chars[idx] >= '0' && chars[idx] <= '9' {
		idx++
	}
	if idx == 0 || idx >= len(chars) {
		return fail()
	}

	channel := chars[idx]
	if channel < 'a' || channel > 'z' {
		return fail()
	}
	idx++

	if idx >= len(chars) {
		return fail()
	}
	for _, c := range chars[idx:] {
		if c < '0' || c > '9' {
			return fail()
		}
	}

	return nil
}

// UnityDependencyVersion validates that version is an exact SemVer
// version with no range operators, as required for "dependencies" entries.
func UnityDependencyVersion(version string) error {
	if _, err := semver.NewVersion(version); err != nil {
		return voyerr.ConfigValidation("Unity dependency version %q must be a valid SemVer version", version)
	}
	return nil
}

// VpmDependencyRange validates a "vpmDependencies" range expression,
// which may use full SemVer range syntax including OR clauses ("||")
// and hyphen ranges ("1.2.3 - 2.0.0").
func VpmDependencyRange(rangeExpr string) error {
	trimmed := strings.TrimSpace(rangeExpr)
	if trimmed == "" {
		return voyerr.ConfigValidation("VPM dependency range must not be empty")
	}

	for _, clause := range strings.Split(trimmed, "||") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return voyerr.ConfigValidation("VPM dependency range %q contains an empty OR clause", rangeExpr)
		}

		if isValidHyphenRange(clause) {
			continue
		}

		normalized := normalizeVpmClause(clause)
		if _, err := semver.NewConstraint(normalized); err == nil {
			continue
		}

		commaJoined := strings.Join(strings.Fields(normalized), ", ")
		if commaJoined != "" {
			if _, err := semver.NewConstraint(commaJoined); err == nil {
				continue
			}
		}

		return voyerr.ConfigValidation("VPM dependency range %q is invalid", rangeExpr)
	}

	return nil
}

func isValidHyphenRange(clause string) bool {
	left, right, ok := strings.Cut(clause, " - ")
	if !ok {
		return false
	}

	left = normalizeVpmVersionToken(strings.TrimSpace(left))
	right = normalizeVpmVersionToken(strings.TrimSpace(right))
	if left == "" || right == "" {
		return false
	}

	_, err := semver.NewConstraint(fmt.Sprintf(">=%s, <=%s", left, right))
	return err == nil
}

func normalizeVpmClause(clause string) string {
	segments := strings.Split(clause, ",")
	for i, segment := range segments {
		tokens := strings.Fields(segment)
		for j, token := range tokens {
			tokens[j] = normalizeComparatorToken(token)
		}
		segments[i] = strings.Join(tokens, " ")
	}
	return strings.Join(segments, ",")
}

func normalizeComparatorToken(token string) string {
	splitIndex := len(token)
	for i, c := range token {
		if c == '<' || c == '>' || c == '=' || c == '~' || c == '^' {
			continue
		}
		splitIndex = i
		break
	}

	operator, version := token[:splitIndex], token[splitIndex:]
	if version == "" {
		return token
	}
	return operator + normalizeVpmVersionToken(version)
}

func normalizeVpmVersionToken(token string) string {
	parts := strings.Split(token, ".")
	for i, part := range parts {
		if strings.EqualFold(part, "x") {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, ".")
}
