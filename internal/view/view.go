// Package view decides which console affordances an identity may see.
// Visibility is a pure function over a static role table; nothing here
// enforces authorization on the upstream API, it only gates what the
// console renders.
package view

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/campushq/registra/internal/model"
)

// Affordance names for the console surface.
const (
	AffordanceInboxView       = "inbox.view"
	AffordanceComposeDirect   = "compose.direct"
	AffordanceComposeRole     = "compose.broadcast"
	AffordanceDirectorySearch = "directory.search"
	AffordanceRoleCatalog     = "roles.list"
	AffordanceManageProfile   = "profile.manage"
	AffordanceManageEnrollees = "enrollees.manage"
)

// Policy maps affordance names to the roles allowed to see them.
type Policy struct {
	table map[string]map[model.Role]bool
}

// DefaultPolicy returns the built-in visibility table: every
// authenticated role sees the inbox and their own profile; composing,
// directory search, the role catalog, and enrollee management are
// admin-only.
func DefaultPolicy() *Policy {
	return &Policy{table: map[string]map[model.Role]bool{
		AffordanceInboxView: {
			model.RoleStudent: true,
			model.RoleFaculty: true,
			model.RoleAdmin:   true,
		},
		AffordanceManageProfile: {
			model.RoleStudent: true,
			model.RoleFaculty: true,
			model.RoleAdmin:   true,
		},
		AffordanceComposeDirect: {
			model.RoleAdmin: true,
		},
		AffordanceComposeRole: {
			model.RoleAdmin: true,
		},
		AffordanceDirectorySearch: {
			model.RoleAdmin: true,
		},
		AffordanceRoleCatalog: {
			model.RoleAdmin: true,
		},
		AffordanceManageEnrollees: {
			model.RoleAdmin: true,
		},
	}}
}

// policyFile is the YAML shape: affordance name to list of role names.
type policyFile struct {
	Affordances map[string][]string `yaml:"affordances"`
}

// LoadPolicy reads a visibility table from a YAML file. The file
// replaces the defaults wholesale; unknown role names are rejected so a
// typo cannot silently widen or narrow visibility.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("view: read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("view: parse policy file: %w", err)
	}
	if len(file.Affordances) == 0 {
		return nil, fmt.Errorf("view: policy file %s defines no affordances", path)
	}

	table := make(map[string]map[model.Role]bool, len(file.Affordances))
	for affordance, roles := range file.Affordances {
		entry := make(map[model.Role]bool, len(roles))
		for _, name := range roles {
			role := model.Role(name)
			if !role.Valid() {
				return nil, fmt.Errorf("view: affordance %q names unknown role %q", affordance, name)
			}
			entry[role] = true
		}
		table[affordance] = entry
	}
	return &Policy{table: table}, nil
}

// IsVisible reports whether the identity may see the affordance.
// Holding any allowed role suffices. A nil identity (unauthenticated)
// sees nothing, and an affordance absent from the table is visible to
// no one.
func (p *Policy) IsVisible(affordance string, identity *model.Identity) bool {
	if identity == nil {
		return false
	}
	allowed, ok := p.table[affordance]
	if !ok {
		return false
	}
	for _, role := range identity.Roles {
		if allowed[role] {
			return true
		}
	}
	return false
}

// Affordances returns the sorted set of affordances visible to the
// identity. Used by the gateway so the console renders from a single
// source of truth.
func (p *Policy) Affordances(identity *model.Identity) []string {
	visible := make([]string, 0, len(p.table))
	for affordance := range p.table {
		if p.IsVisible(affordance, identity) {
			visible = append(visible, affordance)
		}
	}
	sort.Strings(visible)
	return visible
}
