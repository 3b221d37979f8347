package flagcore

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// configDuration wraps time.Duration so FileOptions can accept human-readable
// durations ("30s", "5m") in YAML: yaml.v3 only auto-converts numeric
// scalars into integer-kinded fields, so a bare time.Duration field would
// reject exactly the format the config-file format documents.
type configDuration time.Duration

func (d *configDuration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	if str == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(str)
	if err != nil {
		return err
	}
	*d = configDuration(parsed)
	return nil
}

// FileOptions is the on-disk YAML shape LoadOptionsFromYAML decodes, mirroring
// the subset of Options a deployment would reasonably externalize into a
// config file rather than Go source.
type FileOptions struct {
	SDKKey               string            `yaml:"sdkKey"`
	API                  string            `yaml:"api"`
	Environment          string            `yaml:"environment"`
	LocalMode            bool              `yaml:"localMode"`
	ConfigSyncInterval   configDuration    `yaml:"configSyncInterval"`
	IDListSyncInterval   configDuration    `yaml:"idListSyncInterval"`
	LoggingInterval      configDuration    `yaml:"loggingInterval"`
	LoggingMaxBufferSize int               `yaml:"loggingMaxBufferSize"`
	InitTimeout          configDuration    `yaml:"initTimeout"`
	DisableCDN           bool              `yaml:"disableCDN"`
	DisableIDListSync    bool              `yaml:"disableIdListSync"`
	DisableRulesetsSync  bool              `yaml:"disableRulesetsSync"`
	EnvironmentParams    map[string]string `yaml:"environmentParams"`
}

// LoadOptionsFromYAML reads a FileOptions document from path and converts it
// to an Options/sdkKey pair, leaving anything the file doesn't set (data
// adapters, callbacks, UA parser tuning) at its Go zero value for the caller
// to fill in.
func LoadOptionsFromYAML(path string) (sdkKey string, options *Options, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var file FileOptions
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return "", nil, err
	}
	return file.SDKKey, file.toOptions(), nil
}

func (f FileOptions) toOptions() *Options {
	return &Options{
		API:                  f.API,
		Environment:          Environment{Tier: f.Environment, Params: f.EnvironmentParams},
		LocalMode:            f.LocalMode,
		ConfigSyncInterval:   time.Duration(f.ConfigSyncInterval),
		IDListSyncInterval:   time.Duration(f.IDListSyncInterval),
		LoggingInterval:      time.Duration(f.LoggingInterval),
		LoggingMaxBufferSize: f.LoggingMaxBufferSize,
		InitTimeout:          time.Duration(f.InitTimeout),
		DisableCDN:           f.DisableCDN,
		DisableIDListSync:    f.DisableIDListSync,
		DisableRulesetsSync:  f.DisableRulesetsSync,
	}
}
