package pgerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	t.Run("NonPostgresError", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", errors.New("boom"))
		assert.Empty(t, Code(err))
		assert.False(t, IsUniqueViolation(err))
		assert.False(t, IsForeignKeyViolation(err))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Empty(t, Code(nil))
	})
}
