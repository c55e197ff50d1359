package handler

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const defaultVersion = 1

var (
	errNameUppercase    = validation.NewError("validation_name_uppercase", "Name must start with an uppercase char")
	errNameAlphabetical = validation.NewError("validation_name_alphabetical", "Name must be composed with alphabetical chars")
	errVersionInteger   = validation.NewError("validation_version_integer", "Version must be an integer")
)

// nameRule accepts names that start with an upper-case letter and contain
// only letters.
var nameRule = validation.By(func(value interface{}) error {
	name, _ := value.(string)

	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return errNameUppercase
	}

	for _, r := range name {
		if !unicode.IsLetter(r) {
			return errNameAlphabetical
		}
	}
	return nil
})

func validateName(name string) error {
	if err := validation.Validate(name, nameRule); err != nil {
		return &ValidationError{Field: "name", Message: err.Error()}
	}
	return nil
}

// parseVersion returns defaultVersion for an empty header.
func parseVersion(raw string) (int, error) {
	if raw == "" {
		return defaultVersion, nil
	}

	if err := validation.Validate(raw, is.Int.ErrorObject(errVersionInteger)); err != nil {
		return 0, &ValidationError{Field: "Version", Message: err.Error()}
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: "Version", Message: errVersionInteger.Error()}
	}
	return version, nil
}
