// Package cohortsync creates a PostHog cohort the first time a tracked person
// property is seen with a given value.
package cohortsync

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Substitution tokens understood by the naming convention.
const (
	PropertyNameToken  = "<property_name>"
	PropertyValueToken = "<property_value>"
)

// ErrInvalidNamingConvention is returned by Setup when the naming convention
// lacks PropertyValueToken.
var ErrInvalidNamingConvention = errors.New("invalid naming convention")

// PluginConfig is the raw hook configuration as supplied by the operator.
type PluginConfig struct {
	PropertiesToTrack string // comma separated
	PosthogHost       string // scheme optional
	PosthogAPIKey     string
	NamingConvention  string
}

// Settings is the validated, immutable form of PluginConfig. It is built once
// by Setup and shared by every event invocation.
type Settings struct {
	propertiesToTrack map[string]struct{}
	host              string
	headers           http.Header
	namingConvention  string
}

// Setup validates cfg and derives the settings used while handling events.
func Setup(cfg PluginConfig) (*Settings, error) {
	if !strings.Contains(cfg.NamingConvention, PropertyValueToken) {
		return nil, fmt.Errorf("%w: make sure to include %s", ErrInvalidNamingConvention, PropertyValueToken)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.PosthogAPIKey)
	headers.Set("Content-Type", "application/json")

	tracked := map[string]struct{}{}
	for _, p := range strings.Split(cfg.PropertiesToTrack, ",") {
		tracked[p] = struct{}{}
	}

	return &Settings{
		propertiesToTrack: tracked,
		host:              NormalizeHost(cfg.PosthogHost),
		headers:           headers,
		namingConvention:  cfg.NamingConvention,
	}, nil
}

// NormalizeHost prefixes https:// unless the host already names an http scheme.
func NormalizeHost(host string) string {
	if strings.Contains(host, "http") {
		return host
	}
	return "https://" + host
}

// Host is the normalized PostHog base URL.
func (s *Settings) Host() string { return s.host }

// Headers returns a copy of the headers sent with every cohort request.
func (s *Settings) Headers() http.Header { return s.headers.Clone() }

// Tracks reports whether property is one of the tracked properties.
func (s *Settings) Tracks(property string) bool {
	_, ok := s.propertiesToTrack[property]
	return ok
}

// TrackedProperties lists the tracked property names in sorted order.
func (s *Settings) TrackedProperties() []string {
	out := make([]string, 0, len(s.propertiesToTrack))
	for p := range s.propertiesToTrack {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// CohortName fills the naming convention. Only the first occurrence of each
// token is replaced, name before value.
func (s *Settings) CohortName(property string, value any) string {
	name := strings.Replace(s.namingConvention, PropertyNameToken, property, 1)
	return strings.Replace(name, PropertyValueToken, FormatValue(value), 1)
}
