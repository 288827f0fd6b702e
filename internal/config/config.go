package config

import (
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Config holds all application configuration
type Config struct {
	// Fileset location
	DataDir        string
	FilesetVersion string

	// Network settings
	HTTPListen   string
	DNS1         string
	DNS2         string
	Iface        string
	IfaceSuffix  string
	TrafficIface string

	// System paths
	Su      string
	GetProp string
	ProcDir string

	// Logging and feature flags
	LogLevel string
	Metrics  bool
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir:        "/data/data/android.tether",
		FilesetVersion: "22",
		HTTPListen:     "127.0.0.1:8067",
		DNS1:           "208.67.220.220",
		DNS2:           "208.67.222.222",
		Iface:          "bnep0",
		IfaceSuffix:    "netmask 255.255.255.0 up >> $tetherlog 2>> $tetherlog",
		TrafficIface:   "bnep",
		Su:             "/system/bin/su",
		GetProp:        "/system/bin/getprop",
		ProcDir:        "/proc",
		LogLevel:       "info",
		Metrics:        true,
	}
}

// LoadFromFile loads configuration from INI file
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		log.WithError(err).WithField("path", filename).Info("Skipping config file")
		return err
	}

	section := cfg.Section("")
	c.DataDir = section.Key("datadir").MustString(c.DataDir)
	c.FilesetVersion = section.Key("filesetversion").MustString(c.FilesetVersion)
	c.HTTPListen = section.Key("httplisten").MustString(c.HTTPListen)
	c.DNS1 = section.Key("dns1").MustString(c.DNS1)
	c.DNS2 = section.Key("dns2").MustString(c.DNS2)
	c.Iface = section.Key("iface").MustString(c.Iface)
	c.IfaceSuffix = section.Key("ifacesuffix").MustString(c.IfaceSuffix)
	c.TrafficIface = section.Key("trafficiface").MustString(c.TrafficIface)
	c.Su = section.Key("su").MustString(c.Su)
	c.GetProp = section.Key("getprop").MustString(c.GetProp)
	c.ProcDir = section.Key("procdir").MustString(c.ProcDir)
	c.LogLevel = section.Key("loglevel").MustString(c.LogLevel)
	c.Metrics = section.Key("metrics").MustBool(c.Metrics)

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("TETHER_DATADIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TETHER_FILESETVERSION"); v != "" {
		c.FilesetVersion = v
	}
	if v := os.Getenv("TETHER_HTTPLISTEN"); v != "" {
		c.HTTPListen = v
	}
	if v := os.Getenv("TETHER_DNS1"); v != "" {
		c.DNS1 = v
	}
	if v := os.Getenv("TETHER_DNS2"); v != "" {
		c.DNS2 = v
	}
	if v := os.Getenv("TETHER_IFACE"); v != "" {
		c.Iface = v
	}
	if v := os.Getenv("TETHER_IFACESUFFIX"); v != "" {
		c.IfaceSuffix = v
	}
	if v := os.Getenv("TETHER_TRAFFICIFACE"); v != "" {
		c.TrafficIface = v
	}
	if v := os.Getenv("TETHER_SU"); v != "" {
		c.Su = v
	}
	if v := os.Getenv("TETHER_GETPROP"); v != "" {
		c.GetProp = v
	}
	if v := os.Getenv("TETHER_PROCDIR"); v != "" {
		c.ProcDir = v
	}
	if v := os.Getenv("TETHER_LOGLEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TETHER_METRICS"); v != "" {
		c.Metrics, _ = strconv.ParseBool(v)
	}
}

// ApplyLogLevel sets the global log level, falling back to info
func (c *Config) ApplyLogLevel() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// New creates a new configuration instance
func New(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file first
	cfg.LoadFromFile(configFile)

	// Override with environment variables
	cfg.LoadFromEnv()

	return cfg, nil
}
