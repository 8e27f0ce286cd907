/*
Copyright 2020 Google LLC

Use of this source code is governed by a BSD-style
license that can be found in the LICENSE file or at
https://developers.google.com/open-source/licenses/bsd
*/

package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the settings of blenddump. Values come from flags,
// BLENDDUMP_ environment variables and an optional YAML file, in that
// order of precedence.
type Config struct {
	Log  LogConfig  `mapstructure:"log"`
	Dump DumpConfig `mapstructure:"dump"`
	List ListConfig `mapstructure:"list"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DumpConfig selects what is printed.
type DumpConfig struct {
	Header bool     `mapstructure:"header"`
	Blocks bool     `mapstructure:"blocks"`
	DNA    bool     `mapstructure:"dna"`
	Prefix string   `mapstructure:"prefix"`
	Codes  []string `mapstructure:"codes"`
	Types  []string `mapstructure:"types"`
	Stats  bool     `mapstructure:"stats"`
}

type ListConfig struct {
	// Limit bounds list walks; 0 means unbounded.
	Limit int `mapstructure:"limit"`
}

const (
	envPrefix         = "BLENDDUMP"
	defaultConfigName = "blenddump"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"header":     "dump.header",
	"blocks":     "dump.blocks",
	"dna":        "dump.dna",
	"prefix":     "dump.prefix",
	"code":       "dump.codes",
	"type":       "dump.types",
	"stats":      "dump.stats",
	"list-limit": "list.limit",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("blenddump", pflag.ContinueOnError)
	fs.String("config", "", "YAML config file")
	fs.String("log-level", "info", "log level")
	fs.Bool("header", true, "print the file header")
	fs.Bool("blocks", false, "list all file-blocks")
	fs.Bool("dna", false, "print DNA structs")
	fs.String("prefix", "", "only print DNA structs with this name prefix")
	fs.StringSlice("code", nil, "print instances of blocks with this code (repeatable)")
	fs.StringSlice("type", nil, "print instances of this struct type (repeatable)")
	fs.Bool("stats", false, "print block statistics")
	fs.Int("list-limit", 0, "fail list walks longer than this")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("dump.header", true)
	v.SetDefault("dump.blocks", false)
	v.SetDefault("dump.dna", false)
	v.SetDefault("dump.prefix", "")
	v.SetDefault("dump.codes", []string{})
	v.SetDefault("dump.types", []string{})
	v.SetDefault("dump.stats", false)
	v.SetDefault("list.limit", 0)
}

// LoadConfig merges the parsed flags in fs with the environment and
// the config file. Without --config, blenddump.yaml is looked up in
// the working directory; its absence is not an error.
func LoadConfig(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	setDefaults(v)

	configPath, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", name)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so they do
// not mix with the dump.
func newLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", c.Level)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
