package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, Verify("s3cret-pass", hash))
	assert.False(t, Verify("wrong", hash))
}

func TestValidate(t *testing.T) {
	assert.Error(t, Validate("abc"))
	assert.NoError(t, Validate("abcdef"))
	assert.NoError(t, Validate("密码密码密码"))
	assert.Error(t, Validate(strings.Repeat("a", 73)))
}
