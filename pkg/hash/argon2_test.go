package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fastConfig = Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewHasher(fastConfig)
	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	t.Parallel()

	h := NewHasher(fastConfig)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	h := NewHasher(fastConfig)
	for _, bad := range []string{"", "plain", "$bcrypt$x$y$z$w", "$argon2id$v=19$m=x$salt$hash"} {
		_, err := h.Verify("pw", bad)
		require.ErrorIs(t, err, ErrInvalidHash, bad)
	}

	_, err := h.Verify("pw", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA")
	require.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	t.Parallel()

	h := NewHasher(fastConfig)
	h.VerifyDummy("anything")
	h.VerifyDummy("again")
}
