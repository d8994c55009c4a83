package types

import "errors"

// Config holds backend selection and authority parameters.
type Config struct {
	Backend           string          `json:"backend" yaml:"backend"`
	DataDir           string          `json:"data_dir" yaml:"data_dir"`
	Authority         AuthorityConfig `json:"authority" yaml:"authority"`
	BilingualSourceID string          `json:"bilingual_source_id" yaml:"bilingual_source_id"`
	User              string          `json:"user" yaml:"user"`
}

// AuthorityConfig describes the local authority the gazetteer belongs to.
type AuthorityConfig struct {
	Code           int     `json:"code" yaml:"code"`
	Variant        Variant `json:"variant" yaml:"variant"`
	Bilingual      bool    `json:"bilingual" yaml:"bilingual"`
	SecondLanguage string  `json:"second_language" yaml:"second_language"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultBilingualSourceID is the cross-reference source that links the two
// halves of a bilingual LPI pair.
const DefaultBilingualSourceID = "BILINGUAL"

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrVariantUnknown  = errors.New("unknown authority variant")
	ErrLanguageUnknown = errors.New("unknown second language")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return c.Authority.Validate()
}

// Validate checks the authority parameters. An empty variant means standard.
func (a AuthorityConfig) Validate() error {
	switch a.Variant {
	case "", VariantStandard, VariantScottish:
	default:
		return ErrVariantUnknown
	}
	if a.Bilingual {
		switch a.SecondLanguage {
		case LanguageWelsh, LanguageGaelic:
		default:
			return ErrLanguageUnknown
		}
	}
	return nil
}

// EffectiveVariant returns the variant, defaulting to standard.
func (a AuthorityConfig) EffectiveVariant() Variant {
	if a.Variant == "" {
		return VariantStandard
	}
	return a.Variant
}

// EffectiveBilingualSourceID returns the configured bilingual source id or
// DefaultBilingualSourceID.
func (c Config) EffectiveBilingualSourceID() string {
	if c.BilingualSourceID == "" {
		return DefaultBilingualSourceID
	}
	return c.BilingualSourceID
}
