// Mesh topology configuration loader: a YAML file describing the chains a
// mesh node hosts and the peers it replicates with, with ${VAR} environment
// substitution before parsing. Adapted from the teacher's
// LoadAnchorConfig/substituteEnvVars YAML pattern.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// MeshConfig is the YAML-file topology an operator hand-edits: what chains
// this node hosts, how it talks to peers, and its security posture.
// cmd/meshd uses each chain's Name and StorageDir; AutoCreate,
// MaxSubscribers, Security and Locking are parsed but no package in this
// module acts on them.
type MeshConfig struct {
	NodeID string `yaml:"node_id"`

	Chains   []ChainConfig   `yaml:"chains"`
	Security MeshSecurity    `yaml:"security"`
	Locking  LockingSettings `yaml:"locking"`
}

// ChainConfig describes one chain this node hosts or is willing to create.
type ChainConfig struct {
	// Name is the chain-key path segment clients subscribe with.
	Name string `yaml:"name"`
	// StorageDir is the redo-log directory for this chain, relative to
	// Config.DataDir unless absolute.
	StorageDir string `yaml:"storage_dir"`
	// AutoCreate permits OpenFlow to create this chain on first
	// subscribe rather than requiring it be pre-registered.
	AutoCreate bool `yaml:"auto_create"`
	// MaxSubscribers caps concurrent subscriptions to this chain; 0
	// means unbounded.
	MaxSubscribers int `yaml:"max_subscribers"`
}

// MeshSecurity controls transport-level trust for this node's mesh
// listener.
type MeshSecurity struct {
	TLSEnabled       bool     `yaml:"tls_enabled"`
	CertFile         string   `yaml:"cert_file"`
	KeyFile          string   `yaml:"key_file"`
	TrustedSignerIDs []string `yaml:"trusted_signer_ids"`
}

// LockingSettings controls advisory-lock behavior on this node.
type LockingSettings struct {
	// AcquireTimeout bounds how long Lock blocks waiting on a
	// contended row before giving up.
	AcquireTimeout Duration `yaml:"acquire_timeout"`
}

// Duration wraps time.Duration for YAML unmarshaling ("30s", "5m", ...).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable values,
// falling back to the :-default form or the empty string.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadMeshConfig loads a mesh topology file from path, substituting
// ${VAR_NAME} environment references before parsing.
func LoadMeshConfig(path string) (*MeshConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read mesh config %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var cfg MeshConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse mesh config %s: %w", path, err)
	}
	if cfg.Locking.AcquireTimeout == 0 {
		cfg.Locking.AcquireTimeout = Duration(5 * time.Second)
	}
	return &cfg, nil
}

// Validate checks that every chain name is unique and non-empty.
func (m *MeshConfig) Validate() error {
	seen := make(map[string]bool, len(m.Chains))
	for _, c := range m.Chains {
		if c.Name == "" {
			return fmt.Errorf("config: chain entry with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("config: duplicate chain name %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}
