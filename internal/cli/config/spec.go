package config

// CLIConfig is the configuration for mtaa-cli.
type CLIConfig struct {
	Server string `yaml:"server"`
	// AdminKey authenticates /admin routes. The file is written 0600.
	AdminKey string `yaml:"admin_key,omitempty"`
	// APIKey authenticates the session and notification routes.
	APIKey string `yaml:"api_key,omitempty"`
	// Output is table, json or yaml.
	Output string `yaml:"output"`
	// SessionID is used by notify watch when --session-id is not given.
	SessionID string `yaml:"session_id,omitempty"`
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `yaml:"ca_file,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://localhost:5080",
		Output: "table",
	}
}
