// Package validation provides centralized input validation for container
// and object names. Usage errors fail here, before any pool work is
// scheduled.
package validation

import (
	"strings"
	"unicode"

	"github.com/joel-wright/swiftbatch/errors"
)

const (
	maxContainerNameLength = 256
	maxObjectNameLength    = 1024
)

// ValidateContainerName validates a container name. Container names cannot
// be empty, cannot contain a slash, and are capped at 256 bytes.
func ValidateContainerName(container string) error {
	if container == "" {
		return errors.NewError("validate container", errors.ErrInvalidInput).
			WithMessage("container name cannot be empty")
	}
	if strings.ContainsRune(container, '/') {
		return errors.NewContainerError("validate container", container, errors.ErrInvalidInput).
			WithMessage("container name cannot contain a slash")
	}
	if len(container) > maxContainerNameLength {
		return errors.NewContainerError("validate container", container, errors.ErrInvalidInput).
			WithMessage("container name cannot exceed 256 bytes")
	}
	return hasNoControlCharacters("validate container", container)
}

// ValidateObjectName validates an object name. Object names cannot be
// empty and are capped at 1024 bytes.
func ValidateObjectName(object string) error {
	if object == "" {
		return errors.NewError("validate object", errors.ErrInvalidInput).
			WithMessage("object name cannot be empty")
	}
	if len(object) > maxObjectNameLength {
		return errors.NewError("validate object", errors.ErrInvalidInput).
			WithObject(object).
			WithMessage("object name cannot exceed 1024 bytes")
	}
	return hasNoControlCharacters("validate object", object)
}

func hasNoControlCharacters(op, name string) error {
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.NewError(op, errors.ErrInvalidInput).
				WithMessage("name cannot contain control characters")
		}
	}
	return nil
}
