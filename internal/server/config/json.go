package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/flagx"
	"github.com/dmitrijs2005/pdcc/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations accept
// both "30s" style strings and integer nanoseconds. Absent fields leave the
// current value untouched.
type JsonConfig struct {
	EndpointAddrWS        string          `json:"endpoint_addr_ws"`
	EndpointAddrGRPC      string          `json:"endpoint_addr_grpc"`
	DatabaseDSN           string          `json:"database_dsn"`
	SecretKey             string          `json:"secret_key"`
	TokenValidityDuration *timex.Duration `json:"token_validity_duration"`
	AuthTimeout           *timex.Duration `json:"auth_timeout"`
	MaxLoginAttempts      int             `json:"max_login_attempts"`
	ProtocolVersion       string          `json:"protocol_version"`
	BcryptCost            int             `json:"bcrypt_cost"`
	CommandLevels         map[string]int  `json:"command_levels"`
	Admins                []string        `json:"admins"`
	MaxMessageLength      int             `json:"max_message_length"`
}

// parseJson loads the file named by -c or -config, if any, over config.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrWS, c.EndpointAddrWS)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ProtocolVersion, c.ProtocolVersion)
	setDuration(&config.TokenValidityDuration, c.TokenValidityDuration)
	setDuration(&config.AuthTimeout, c.AuthTimeout)

	if c.MaxLoginAttempts > 0 {
		config.MaxLoginAttempts = c.MaxLoginAttempts
	}
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.MaxMessageLength > 0 {
		config.MaxMessageLength = c.MaxMessageLength
	}
	if len(c.Admins) > 0 {
		config.Admins = c.Admins
	}

	// per-command overrides merge into the existing table
	if len(c.CommandLevels) > 0 {
		if config.CommandLevels == nil {
			config.CommandLevels = make(map[string]int, len(c.CommandLevels))
		}
		for name, level := range c.CommandLevels {
			config.CommandLevels[name] = level
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
