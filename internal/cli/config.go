package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/gazetteer/internal/paths"
	"github.com/mesh-intelligence/gazetteer/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend        = "backend"
	cfgKeyDataDir        = "data_dir"
	cfgKeyUser           = "user"
	cfgKeyBilingualID    = "bilingual_source_id"
	cfgKeyAuthorityCode  = "authority.code"
	cfgKeyVariant        = "authority.variant"
	cfgKeyBilingual      = "authority.bilingual"
	cfgKeySecondLanguage = "authority.second_language"
)

// configFile is the structure written to config.yaml by init.
type configFile struct {
	Backend           string        `yaml:"backend"`
	DataDir           string        `yaml:"data_dir,omitempty"`
	User              string        `yaml:"user,omitempty"`
	BilingualSourceID string        `yaml:"bilingual_source_id,omitempty"`
	Authority         authorityFile `yaml:"authority"`
}

type authorityFile struct {
	Code           int    `yaml:"code"`
	Variant        string `yaml:"variant"`
	Bilingual      bool   `yaml:"bilingual"`
	SecondLanguage string `yaml:"second_language,omitempty"`
}

// settings is the resolved configuration of one invocation.
type settings struct {
	configDir string
	config    types.Config
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; the defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyVariant, string(types.VariantStandard))
	v.SetDefault(cfgKeyBilingualID, types.DefaultBilingualSourceID)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// resolveSettings applies the flag > config.yaml > env > default precedence
// to the config and data directories and builds the store configuration.
func resolveSettings() (settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return settings{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return settings{}, err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		Backend:           v.GetString(cfgKeyBackend),
		DataDir:           dataDir,
		BilingualSourceID: v.GetString(cfgKeyBilingualID),
		User:              v.GetString(cfgKeyUser),
		Authority: types.AuthorityConfig{
			Code:           v.GetInt(cfgKeyAuthorityCode),
			Variant:        types.Variant(v.GetString(cfgKeyVariant)),
			Bilingual:      v.GetBool(cfgKeyBilingual),
			SecondLanguage: v.GetString(cfgKeySecondLanguage),
		},
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if err := cfg.Validate(); err != nil {
		return settings{}, userError(fmt.Errorf("config %s: %w", paths.ConfigFile(configDir), err))
	}
	return settings{configDir: configDir, config: cfg}, nil
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. An existing file is left alone.
func writeConfigIfMissing(path string, cfg types.Config) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	out := configFile{
		Backend:           cfg.Backend,
		DataDir:           cfg.DataDir,
		User:              cfg.User,
		BilingualSourceID: cfg.BilingualSourceID,
		Authority: authorityFile{
			Code:           cfg.Authority.Code,
			Variant:        string(cfg.Authority.EffectiveVariant()),
			Bilingual:      cfg.Authority.Bilingual,
			SecondLanguage: cfg.Authority.SecondLanguage,
		},
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
