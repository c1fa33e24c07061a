package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	blackerr "blackship/errors"
)

// Load reads and parses a single blackship.toml file, applying
// defaults and a directory-derived project name, and validates the
// result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, blackerr.Wrap(err, blackerr.ErrConfigRead, "read "+path)
	}

	var cfg Config
	if _, err := toml.Decode(string(content), &cfg); err != nil {
		return nil, blackerr.Wrap(err, blackerr.ErrConfigParse, "parse "+path)
	}

	cfg.Global = cfg.Global.withDefaults()
	if cfg.Global.Project == "" {
		cfg.Global.Project = projectNameFromPath(path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadMerged reads and parses multiple blackship.toml files in order,
// merging them Docker-Compose style: later files override fields they
// explicitly set, leaving everything else from earlier files intact.
func LoadMerged(paths []string) (*Config, error) {
	if len(paths) == 0 {
		return nil, blackerr.New(blackerr.ErrConfigValidation, "load manifest", "no configuration files provided")
	}

	var merged *Config
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, blackerr.Wrap(err, blackerr.ErrConfigRead, "read "+path)
		}

		var cfg Config
		if _, err := toml.Decode(string(content), &cfg); err != nil {
			return nil, blackerr.Wrap(err, blackerr.ErrConfigParse, "parse "+path)
		}

		if merged == nil {
			merged = &cfg
		} else {
			combined := merged.merge(cfg)
			merged = &combined
		}
	}

	merged.Global = merged.Global.withDefaults()
	if merged.Global.Project == "" {
		merged.Global.Project = projectNameFromPath(paths[0])
	}

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func projectNameFromPath(path string) string {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if name := filepath.Base(dir); name != "" {
			return name
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		if name := filepath.Base(cwd); name != "" {
			return name
		}
	}
	return "blackship"
}

// merge applies other on top of c, Docker-Compose style: global config
// is field-merged, networks and jails are merged by name.
func (c Config) merge(other Config) Config {
	merged := c
	merged.Global = c.Global.merge(other.Global)

	for _, net := range other.Networks {
		found := false
		for i, existing := range merged.Networks {
			if existing.Name == net.Name {
				merged.Networks[i] = net
				found = true
				break
			}
		}
		if !found {
			merged.Networks = append(merged.Networks, net)
		}
	}

	for _, jail := range other.Jails {
		found := false
		for i, existing := range merged.Jails {
			if existing.Name == jail.Name {
				merged.Jails[i] = existing.merge(jail)
				found = true
				break
			}
		}
		if !found {
			merged.Jails = append(merged.Jails, jail)
		}
	}

	return merged
}

// Validate checks for duplicate jail names, unknown or self
// dependencies, and a consistent ZFS configuration.
func (c Config) Validate() error {
	names := make(map[string]bool, len(c.Jails))
	for _, jail := range c.Jails {
		if names[jail.Name] {
			return blackerr.New(blackerr.ErrConfigValidation, "validate manifest", "duplicate jail name: "+jail.Name)
		}
		names[jail.Name] = true
	}

	for _, jail := range c.Jails {
		for _, dep := range jail.DependsOn {
			if !names[dep] {
				return blackerr.New(blackerr.ErrUnknownDependency, "validate manifest", dep)
			}
			if dep == jail.Name {
				return blackerr.New(blackerr.ErrConfigValidation, "validate manifest", "jail '"+jail.Name+"' depends on itself")
			}
		}
	}

	if c.Global.ZFSEnabled && c.Global.Zpool == "" {
		return blackerr.New(blackerr.ErrConfigValidation, "validate manifest", "ZFS is enabled but no zpool specified")
	}

	return nil
}

// JailName returns the full, project-prefixed kernel name for a
// service name (e.g. "web" -> "myproj-web"). A name that already
// carries the project prefix is returned unchanged.
func (c Config) JailName(serviceName string) string {
	prefix := c.Global.ProjectName() + "-"
	if strings.HasPrefix(serviceName, prefix) {
		return serviceName
	}
	return prefix + serviceName
}

// GetJail resolves name (service name or full prefixed name) to its
// JailDef.
func (c Config) GetJail(name string) (*JailDef, bool) {
	for i := range c.Jails {
		if c.Jails[i].Name == name {
			return &c.Jails[i], true
		}
	}
	for i := range c.Jails {
		if c.JailName(c.Jails[i].Name) == name {
			return &c.Jails[i], true
		}
	}
	return nil, false
}

// ResolveJailNames resolves an identifier (service name or full name)
// to its (serviceName, fullName) pair.
func (c Config) ResolveJailNames(name string) (serviceName, fullName string, ok bool) {
	if jail, found := c.GetJail(name); found {
		return jail.Name, c.JailName(jail.Name), true
	}
	return "", "", false
}
