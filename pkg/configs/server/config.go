// Package server holds the config file of the reconciliation server.
package server

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	// postgres URI of the workspace database.
	DBURI string `yaml:"dburi"`

	// port the API listens on.
	ServerPort string `yaml:"port"`

	// directory holding versioned schema DDL.
	SchemaRepository string `yaml:"schemaRepository"`

	// license file gating the remote_development feature.
	LicensePath string `yaml:"licensePath"`

	// file holding the shared secret agent tokens are signed with.
	AgentTokenSecretPath string `yaml:"agentTokenSecretPath"`

	TLS TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

func (c TLSConfig) Enabled() bool {
	return c.CertPath != "" && c.KeyPath != ""
}

func LoadServerConfig(filepath string) (*ServerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*ServerConfig, error) {
	var out ServerConfig
	if err := yaml.Unmarshal(conf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
