package safeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustIntToUint16(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint16(42), MustIntToUint16(42))
	})

	t.Run("max", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint16(MaxUint16), MustIntToUint16(MaxUint16))
	})

	t.Run("overflow_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint16 out of bounds", func() {
			MustIntToUint16(MaxUint16 + 1)
		})
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: int to uint16 out of bounds", func() {
			MustIntToUint16(-1)
		})
	})
}

func TestMustIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(7), MustIntToUint32(7))

	assert.PanicsWithValue(t, "safeconv: int to uint32 out of bounds", func() {
		MustIntToUint32(-5)
	})
}

func TestUint16(t *testing.T) {
	t.Parallel()

	got, ok := Uint16(65535)
	assert.True(t, ok)
	assert.Equal(t, uint16(65535), got)

	_, ok = Uint16(65536)
	assert.False(t, ok)
}
