package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/paraglidehq/enclookup"
	"github.com/paraglidehq/enclookup/internal/cliutil"
)

// Prefix of every environment variable read by Load.
const Prefix = "ENCLOOKUP"

// Config is read once at startup. SecretKey is never logged.
type Config struct {
	cliutil.LoggingConfig

	SecretKey   string `split_words:"true" required:"true" validate:"required"`
	LookupField string `split_words:"true" default:"id" validate:"required,identifier"`
	ListenAddr  string `split_words:"true" default:":8080" validate:"required"`
	MetricsAddr string `split_words:"true" default:":9090"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	DBDSN       string `envconfig:"DB_DSN" default:"file::memory:?cache=shared" validate:"required"`
}

var validate = newValidator()

// identifierRE limits names used as URL parameters and JSON keys to ones
// chi route patterns and gjson paths take literally.
var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRE.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Load reads the configuration from the environment. Every failure wraps
// enclookup.ErrConfig.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", enclookup.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints. Messages name fields, never values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", enclookup.ErrConfig, err)
	}
	return nil
}

// Cipher builds the Cipher for SecretKey.
func (c *Config) Cipher() (*enclookup.Cipher, error) {
	ciph, err := enclookup.New(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", enclookup.ErrConfig, err)
	}
	return ciph, nil
}
