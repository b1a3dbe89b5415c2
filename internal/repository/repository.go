// Package repository holds the "owner/repo" GitHub repository identifier
// used throughout the manifest and lockfile.
package repository

import (
	"strings"

	"github.com/voyager-vpm/voyager/internal/voyerr"
)

// Repository identifies a GitHub repository by owner and name.
type Repository struct {
	Owner string
	Repo  string
}

// Parse validates and parses an "owner/repo" string.
func Parse(s string) (Repository, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Repository{}, voyerr.InvalidRepository(s)
	}

	owner, repo := parts[0], parts[1]
	if owner == "" || repo == "" {
		return Repository{}, voyerr.InvalidRepository(s)
	}
	if !isValidOwner(owner) || !isValidRepo(repo) {
		return Repository{}, voyerr.InvalidRepository(s)
	}

	return Repository{Owner: owner, Repo: repo}, nil
}

func isValidOwner(owner string) bool {
	if len(owner) > 39 {
		return false
	}
	if strings.HasPrefix(owner, "-") || strings.HasSuffix(owner, "-") {
		return false
	}
	for _, c := range owner {
		if !isAlphaNumeric(c) && c != '-' {
			return false
		}
	}
	return true
}

func isValidRepo(repo string) bool {
	for _, c := range repo {
		if !isAlphaNumeric(c) && c != '-' && c != '_' && c != '.' {
			return false
		}
	}
	return true
}

func isAlphaNumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// String formats the repository back into "owner/repo" form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Repo
}

// MarshalText implements encoding.TextMarshaler so Repository can be
// serialized directly as a TOML/JSON string.
func (r Repository) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Repository) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
