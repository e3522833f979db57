package backend

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Role marks a target as the preferred deployment or a fallback.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Target identifies one backend deployment. Lower priority values are preferred.
type Target struct {
	name     string
	url      *url.URL
	role     Role
	priority int
}

// DefaultName names an unnamed target by host and base path, so two
// deployments behind one host stay distinct.
func DefaultName(u *url.URL) string {
	return u.Host + strings.TrimRight(u.EscapedPath(), "/")
}

// New creates a Target. An empty name defaults to DefaultName(u).
func New(name string, u *url.URL, role Role, priority int) Target {
	if name == "" {
		name = DefaultName(u)
	}
	if role == "" {
		role = RoleSecondary
	}

	clone := *u
	return Target{
		name:     name,
		url:      &clone,
		role:     role,
		priority: priority,
	}
}

// Parse builds a Target from a raw URL.
func Parse(name, rawURL string, role Role, priority int) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("parse backend url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("backend url %q must use http or https", rawURL)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("backend url %q has no host", rawURL)
	}
	return New(name, u, role, priority), nil
}

func (t Target) Name() string { return t.name }

// URL returns a copy of the base URL.
func (t Target) URL() *url.URL {
	if t.url == nil {
		return &url.URL{}
	}
	clone := *t.url
	return &clone
}

func (t Target) Role() Role    { return t.role }
func (t Target) Priority() int { return t.priority }

// IsZero reports whether t was never initialised.
func (t Target) IsZero() bool { return t.url == nil }

func (t Target) String() string {
	if t.url == nil {
		return t.name
	}
	return t.url.String()
}

// Resolve joins the request path onto the target's base path and attaches params.
func (t Target) Resolve(requestPath string, params url.Values) *url.URL {
	u := t.URL()
	joined := path.Join("/", u.Path, requestPath)
	if strings.HasSuffix(requestPath, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	u.Path = joined
	u.RawPath = ""
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	} else {
		u.RawQuery = ""
	}
	return u
}

// SortByPriority orders targets by priority, then primaries first, then name.
// The input slice is not modified.
func SortByPriority(targets []Target) []Target {
	sorted := make([]Target, len(targets))
	copy(sorted, targets)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.role != b.role {
			return a.role == RolePrimary
		}
		return a.name < b.name
	})

	return sorted
}
