package shared

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator"
)

// NewValidator returns a validator with the custom tags used across rolodex registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	if err := RegisterValidators(validate); err != nil {
		// Only fails on a programming error in a tag name
		panic(err)
	}
	return validate
}

func RegisterValidators(validate *validator.Validate) error {
	err := validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// if whitespace in password return false
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) >= 8
	})
	if err != nil {
		return err
	}

	// optional_url accepts "" so a patch can clear a link
	err = validate.RegisterValidation("optional_url", func(fl validator.FieldLevel) bool {
		return IsOptionalURL(fl.Field().String())
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	if err != nil {
		return err
	}

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		db := sl.Current().Interface().(DatabaseConfig)
		if db.Driver == "postgres" && db.DSN == "" {
			sl.ReportError(db.DSN, "dsn", "DSN", "required_for_postgres", "")
		}
		if db.Driver == "sqlite" && db.PassPhrase == "" {
			sl.ReportError(db.PassPhrase, "passPhrase", "PassPhrase", "required_for_sqlite", "")
		}
	}, DatabaseConfig{})

	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		storage := sl.Current().Interface().(StorageConfig)
		if storage.Provider == "disk" && storage.Dir == "" {
			sl.ReportError(storage.Dir, "dir", "Dir", "required_for_disk", "")
		}
		if storage.Provider != "disk" && storage.Bucket == "" {
			sl.ReportError(storage.Bucket, "bucket", "Bucket", "required_for_bucket_storage", "")
		}
	}, StorageConfig{})

	return nil
}

func IsOptionalURL(value string) bool {
	if value == "" {
		return true
	}

	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
