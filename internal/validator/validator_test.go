package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorKeepsFirstError(t *testing.T) {
	v := New()
	assert.True(t, v.Valid())

	v.Check(false, "name", "must be provided")
	v.Check(false, "name", "must be short")
	v.Check(true, "email", "never recorded")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{"name": "must be provided"}, v.Errors)
}

func TestHelpers(t *testing.T) {
	assert.False(t, NotBlank(" \t\n"))
	assert.True(t, NotBlank(" x "))

	assert.True(t, MaxChars("héllo", 5))
	assert.False(t, MaxChars("héllo!", 5))

	assert.True(t, PermittedValue("a", "m", "o", "a", "r"))
	assert.False(t, PermittedValue("z", "m", "o", "a", "r"))

	assert.True(t, Unique([]int64{1, 2, 3}))
	assert.False(t, Unique([]int64{1, 2, 1}))
	assert.True(t, Unique[string](nil))

	assert.True(t, Matches("reader@example.com", EmailRX))
	assert.False(t, Matches("reader.example.com", EmailRX))
}
