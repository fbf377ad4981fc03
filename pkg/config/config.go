// Package config loads the node's configuration from YAML files and
// environment overrides, mirroring the teacher's viper-backed Load(env)
// pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rs-go/retroshare-node/pkg/utils"
)

// BootstrapPeer is one friend entry a node is seeded with at startup. Unlike
// a peer learned later through Discovery, a bootstrap entry must carry its
// own identity up front, since nothing else has vouched for it yet:
// Address is dialed directly, PeerID names the friend being dialed, and
// CertFile pins the certificate transport.Dial must see before it trusts
// the connection.
type BootstrapPeer struct {
	Address  string `mapstructure:"address" json:"address"`
	PeerID   string `mapstructure:"peer_id" json:"peer_id"`
	CertFile string `mapstructure:"cert_file" json:"cert_file"`
}

// Config is the unified configuration for a retroshare-node instance. It
// mirrors the YAML files under config/.
type Config struct {
	Identity struct {
		KeyringDir  string `mapstructure:"keyring_dir" json:"keyring_dir"`
		DisplayName string `mapstructure:"display_name" json:"display_name"`
	} `mapstructure:"identity" json:"identity"`

	Network struct {
		ListenAddr     string          `mapstructure:"listen_addr" json:"listen_addr"`
		MaxPeers       int             `mapstructure:"max_peers" json:"max_peers"`
		BootstrapPeers []BootstrapPeer `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		HiddenNode     bool            `mapstructure:"hidden_node" json:"hidden_node"`
	} `mapstructure:"network" json:"network"`

	BwCtrl struct {
		AllowedKbPerSec uint32 `mapstructure:"allowed_kb_per_sec" json:"allowed_kb_per_sec"`
	} `mapstructure:"bwctrl" json:"bwctrl"`

	Gxs struct {
		StoreDir   string `mapstructure:"store_dir" json:"store_dir"`
		Passphrase string `mapstructure:"passphrase" json:"passphrase"`
	} `mapstructure:"gxs" json:"gxs"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads config/default.yaml and merges an optional environment-named
// override file (config/<env>.yaml), then applies RSNODE_-prefixed
// environment overrides. The resulting configuration is stored in
// AppConfig and returned.
func Load(env string) (*Config, error) {
	// Best-effort: a .env file is optional, RSNODE_-prefixed process env
	// still takes effect without one.
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("RSNODE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // network.listen_addr -> RSNODE_NETWORK_LISTEN_ADDR
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RSNODE_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RSNODE_ENV", ""))
}
