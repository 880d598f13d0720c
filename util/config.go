package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const Name = "stegofed"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host                    string
		SshPort                 int    `yaml:"sshPort"`
		HttpPort                int    `yaml:"httpPort"`
		SslDomain               string `yaml:"sslDomain"`
		WithAp                  bool   `yaml:"withAp"`
		WithJournald            bool   `yaml:"withJournald"`
		WithPprof               bool   `yaml:"withPprof"`
		Closed                  bool   `yaml:"closed"`
		MaxContentLength        int    `yaml:"maxContentLength"`
		DeliveryTimeout         int    `yaml:"deliveryTimeout"` // seconds
		MaxConcurrentDeliveries int    `yaml:"maxConcurrentDeliveries"`
		ProfileCacheSize        int    `yaml:"profileCacheSize"`
		LinkPreviews            bool   `yaml:"linkPreviews"`
		MaxReplyDepth           int    `yaml:"maxReplyDepth"`
	}
}

func ReadConf() (*AppConfig, error) {
	c := &AppConfig{}

	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644); writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	// Defaults first so a partial config file keeps sane limits
	if err := yaml.Unmarshal(embeddedConfig, c); err != nil {
		return nil, fmt.Errorf("in embedded config: %w", err)
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("STEGOFED_HOST"); v != "" {
		c.Conf.Host = v
	}
	envInt("STEGOFED_SSHPORT", &c.Conf.SshPort)
	envInt("STEGOFED_HTTPPORT", &c.Conf.HttpPort)
	if v := os.Getenv("STEGOFED_SSLDOMAIN"); v != "" {
		c.Conf.SslDomain = v
	}
	envBool("STEGOFED_WITH_AP", &c.Conf.WithAp)
	envBool("STEGOFED_WITH_JOURNALD", &c.Conf.WithJournald)
	envBool("STEGOFED_WITH_PPROF", &c.Conf.WithPprof)
	envBool("STEGOFED_CLOSED", &c.Conf.Closed)
	envInt("STEGOFED_MAX_CONTENT_LENGTH", &c.Conf.MaxContentLength)
	envInt("STEGOFED_DELIVERY_TIMEOUT", &c.Conf.DeliveryTimeout)
	envInt("STEGOFED_MAX_CONCURRENT_DELIVERIES", &c.Conf.MaxConcurrentDeliveries)
	envInt("STEGOFED_PROFILE_CACHE_SIZE", &c.Conf.ProfileCacheSize)
	envBool("STEGOFED_LINK_PREVIEWS", &c.Conf.LinkPreviews)
	envInt("STEGOFED_MAX_REPLY_DEPTH", &c.Conf.MaxReplyDepth)

	return c, nil
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	switch os.Getenv(key) {
	case "true":
		*dst = true
	case "false":
		*dst = false
	}
}
