package errors_test

import (
	"fmt"
	"testing"

	"github.com/nolandb/nanocol/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.NotFound, "not found")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error then wrap then remove", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		e := errors.Extract(err).RemoveError()
		assert.Empty(t, e.Err)
	})
	t.Run("type error maps to validation", func(t *testing.T) {
		err := errors.TypeError("bad shape")
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("state error maps to precondition", func(t *testing.T) {
		err := errors.StateError("missing $id")
		assert.True(t, errors.Is(err, errors.Precondition))
	})
	t.Run("constraint error maps to conflict", func(t *testing.T) {
		err := errors.ConstraintError("duplicate email")
		assert.True(t, errors.Is(err, errors.Conflict))
	})
	t.Run("config error maps to config", func(t *testing.T) {
		err := errors.ConfigError("meta disabled but ttl set")
		assert.True(t, errors.Is(err, errors.Config))
	})
}
