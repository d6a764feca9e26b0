package file

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Policy constrains uploads for one purpose. Nil or empty fields are unrestricted.
type Policy struct {
	MaxSize          *int64     `yaml:"maxSize"`
	AllowedMimeTypes []string   `yaml:"allowedMimeTypes"`
	Visibility       Visibility `yaml:"visibility"`
}

// Policies maps a purpose label to its upload policy.
type Policies map[string]Policy

// PolicyViolationError is returned when an upload does not satisfy its
// purpose's policy. It is a client error; nothing has been stored.
type PolicyViolationError struct {
	Reason string
}

func (e *PolicyViolationError) Error() string { return e.Reason }

// Policy violation messages.
const (
	ReasonUnknownPurpose = "purpose not supported"
	ReasonTooLarge       = "file size exceeds the maximum allowed size"
	ReasonMimeType       = "file type not allowed"
)

// Check validates an upload against the purpose's policy and returns the
// policy with its visibility defaulted.
func (p Policies) Check(purpose string, size int64, mimeType string) (Policy, error) {
	policy, ok := p[purpose]
	if !ok {
		return Policy{}, &PolicyViolationError{Reason: ReasonUnknownPurpose}
	}
	if policy.MaxSize != nil && size > *policy.MaxSize {
		return Policy{}, &PolicyViolationError{Reason: ReasonTooLarge}
	}
	if len(policy.AllowedMimeTypes) > 0 && !slices.Contains(policy.AllowedMimeTypes, mimeType) {
		return Policy{}, &PolicyViolationError{Reason: ReasonMimeType}
	}
	if policy.Visibility == "" {
		policy.Visibility = VisibilityPrivate
	}
	return policy, nil
}

// Purposes returns the configured purpose labels, sorted.
func (p Policies) Purposes() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate rejects unknown visibilities and negative size limits.
func (p Policies) Validate() error {
	for purpose, policy := range p {
		if purpose == "" {
			return fmt.Errorf("policy: empty purpose label")
		}
		if _, err := ParseVisibility(string(policy.Visibility)); err != nil {
			return fmt.Errorf("policy %q: %w", purpose, err)
		}
		if policy.MaxSize != nil && *policy.MaxSize < 0 {
			return fmt.Errorf("policy %q: negative maxSize", purpose)
		}
	}
	return nil
}

// LoadPolicies reads a YAML policy table from path:
//
//	avatar:
//	  maxSize: 5242880
//	  allowedMimeTypes: [image/png, image/jpeg]
//	  visibility: public
func LoadPolicies(path string) (Policies, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p Policies
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPolicies is used when no policy file is configured.
func DefaultPolicies() Policies {
	avatarMax := int64(5 << 20)
	documentMax := int64(25 << 20)
	return Policies{
		"avatar": {
			MaxSize:          &avatarMax,
			AllowedMimeTypes: []string{"image/png", "image/jpeg", "image/webp", "image/gif"},
			Visibility:       VisibilityPublic,
		},
		"document": {
			MaxSize:    &documentMax,
			Visibility: VisibilityPrivate,
		},
	}
}
