package config

import (
	"time"

	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Constants

// DefaultSyncInterval is used when a config file
// does not specify Replica.SyncInterval.
const DefaultSyncInterval = 5 * time.Second

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Replica Replica
	TLS     *TLS
}

// Replica describes one node holding a copy of the
// dictionary and the peers it synchronizes with.
type Replica struct {
	Name           string
	ListenSyncAddr string
	ListenAPIAddr  string
	PrometheusAddr string
	StateFile      string
	SyncInterval   Duration
	Peers          map[string]string
}

// TLS points to the certificate material used for
// mutually authenticated replica synchronization.
type TLS struct {
	CertLoc     string
	KeyLoc      string
	RootCertLoc string
}

// Duration wraps time.Duration so that it can be
// written as a string such as "5s" in TOML.
type Duration struct {
	time.Duration
}

// Functions

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {

	var err error

	d.Duration, err = time.ParseDuration(string(text))

	return err
}

// MarshalText formats d as duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig takes in the path to the main config
// file of a replica in TOML syntax and places the values
// from the file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read in TOML config file at '%s'", configFile)
	}

	if conf.Replica.Name == "" {
		conf.Replica.Name = uuid.NewV4().String()
	}

	if conf.Replica.SyncInterval.Duration == 0 {
		conf.Replica.SyncInterval.Duration = DefaultSyncInterval
	}

	if conf.Replica.SyncInterval.Duration < 0 {
		return nil, errors.Errorf("sync interval must be positive, got %s", conf.Replica.SyncInterval)
	}

	// A replica must not synchronize with itself.
	if _, found := conf.Replica.Peers[conf.Replica.Name]; found {
		return nil, errors.Errorf("replica '%s' lists itself as peer", conf.Replica.Name)
	}

	for name, addr := range conf.Replica.Peers {

		if addr == "" {
			return nil, errors.Errorf("peer '%s' has an empty address", name)
		}
	}

	// Relative paths are taken relative to the
	// directory the config file lives in.
	absConfDir, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, errors.Wrap(err, "could not get absolute path of config directory")
	}

	conf.Replica.StateFile = absPath(absConfDir, conf.Replica.StateFile)

	if conf.TLS != nil {
		conf.TLS.CertLoc = absPath(absConfDir, conf.TLS.CertLoc)
		conf.TLS.KeyLoc = absPath(absConfDir, conf.TLS.KeyLoc)
		conf.TLS.RootCertLoc = absPath(absConfDir, conf.TLS.RootCertLoc)
	}

	return conf, nil
}

// absPath prefixes a relative, non-empty path with dir.
func absPath(dir string, path string) string {

	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}
