package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the rules that span fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	usesPostgres := cfg.Backend == BackendPostgres || cfg.Store == StorePostgres
	if usesPostgres && cfg.DatabaseDSN == "" {
		return errors.New("DatabaseDSN: required when backend or store is postgres")
	}
	if cfg.Store == StoreBadger && cfg.BadgerPath == "" {
		return errors.New("BadgerPath: required when store is badger")
	}
	if cfg.Backend == BackendPostgres && cfg.S3Bucket == "" {
		return errors.New("S3Bucket: required when backend is postgres")
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
