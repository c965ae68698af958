package pin

import (
	"testing"

	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ProducesValidPIN(t *testing.T) {
	for i := 0; i < 100; i++ {
		p, err := Generate()
		require.NoError(t, err)
		assert.True(t, IsValid(string(p)))
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("123456"))
	assert.False(t, IsValid("12345"))
	assert.False(t, IsValid("1234567"))
	assert.False(t, IsValid("12345a"))
	assert.False(t, IsValid(""))
}

type fakeExistence map[PIN]bool

func (f fakeExistence) Exists(p PIN) bool { return f[p] }

func TestAllocate_RetriesOnCollision(t *testing.T) {
	var taken PIN
	repo := fakeExistence{}
	first, err := Generate()
	require.NoError(t, err)
	taken = first
	repo[taken] = true

	p, err := Allocate(repo, 50)
	require.NoError(t, err)
	assert.NotEqual(t, taken, p)
}

func TestAllocate_FailsWithCapacityExceededWhenExhausted(t *testing.T) {
	repo := alwaysExists{}
	_, err := Allocate(repo, 5)
	require.Error(t, err)
	assert.Equal(t, roomerr.CapacityExceeded, roomerr.KindOf(err))
}

type alwaysExists struct{}

func (alwaysExists) Exists(PIN) bool { return true }
