package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/jpillora/fatvol/errors"
	"github.com/stretchr/testify/assert"
)

func TestFATErrorWithMessage(t *testing.T) {
	newErr := errors.ErrFileExists.WithMessage("/greeting")
	assert.Equal(t, "file exists: /greeting", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrFileExists)
}

func TestFATErrorWrapError(t *testing.T) {
	originalErr := stderrors.New("short read")
	newErr := errors.ErrCannotRead.WrapError(originalErr)
	expectedMessage := "cannot read: short read"

	assert.EqualValues(t, expectedMessage, newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
}

func TestFATErrorIsDistinctFromMessage(t *testing.T) {
	assert.NotErrorIs(t, errors.ErrFileExists, errors.ErrFileNotFound)
}
