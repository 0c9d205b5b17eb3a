// Package config loads the policy configuration: which ACL principals
// count as public, which container types are skipped, how extensions are
// recovered, and where the external export command lives. The observed
// exports disagree on the group and extension specifics, so they are
// settings rather than constants.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Export configures the external export command.
type Export struct {
	Script  string `hcl:"script"`
	WorkDir string `hcl:"workdir,optional"`
	Staging string `hcl:"staging,optional"`
	Threads int    `hcl:"threads,optional"`
}

// User seeds one uid cache entry.
type User struct {
	Name string `hcl:"name,label"`
	UID  int    `hcl:"uid"`
}

// Config is the full policy file.
type Config struct {
	PublicGroups    []string `hcl:"public_groups,optional"`
	ReadPermission  string   `hcl:"read_permission,optional"`
	IgnoreTypes     []string `hcl:"ignore_types,optional"`
	MaxExtensionLen int      `hcl:"max_extension_len,optional"`
	URLExtension    string   `hcl:"url_extension,optional"`
	Users           []User   `hcl:"user,block"`
	Export          *Export  `hcl:"export,block"`
}

// Default returns the policy matching the historically observed export:
// three public-like groups, the readobject grant, and the container
// types that have no filesystem rendering.
func Default() *Config {
	return &Config{
		PublicGroups:   []string{"Group-4", "Group-5", "Group-7"},
		ReadPermission: "readobject",
		IgnoreTypes: []string{
			"Group", "BulletinBoard", "Bulletin", "Weblog", "WeblogEntry",
			"Event", "Calendar", "Wiki", "WikiPage",
		},
		MaxExtensionLen: 5,
		URLExtension:    ".txt",
	}
}

// Load reads an HCL policy file, filling unset attributes from Default.
// An empty path returns Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	var loaded Config
	if err := hclsimple.DecodeFile(path, nil, &loaded); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if len(loaded.PublicGroups) == 0 {
		loaded.PublicGroups = cfg.PublicGroups
	}
	if loaded.ReadPermission == "" {
		loaded.ReadPermission = cfg.ReadPermission
	}
	if len(loaded.IgnoreTypes) == 0 {
		loaded.IgnoreTypes = cfg.IgnoreTypes
	}
	if loaded.MaxExtensionLen == 0 {
		loaded.MaxExtensionLen = cfg.MaxExtensionLen
	}
	if loaded.URLExtension == "" {
		loaded.URLExtension = cfg.URLExtension
	}
	return &loaded, nil
}

// SeedUsers returns the configured uid cache seeds as a map.
func (c *Config) SeedUsers() map[string]int {
	if len(c.Users) == 0 {
		return nil
	}
	out := make(map[string]int, len(c.Users))
	for _, u := range c.Users {
		out[u.Name] = u.UID
	}
	return out
}
