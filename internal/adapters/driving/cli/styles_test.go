package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBadges(t *testing.T) {
	out := badges([]string{"COMPRESS", "CAD"})
	assert.Contains(t, out, "[COMPRESS]")
	assert.Contains(t, out, "[CAD]")
	assert.Equal(t, "", badges(nil))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "2.0 kB", formatBytes(2048))
	assert.Equal(t, "0 B", formatBytes(-1))
	assert.Equal(t, "1,234,567", formatCount(1234567))
	assert.Equal(t, "never", formatAge(time.Time{}))
	assert.Contains(t, formatAge(time.Now().Add(-2*time.Hour)), "ago")

	year := 1998
	assert.Equal(t, "1998", formatYear(&year))
	assert.Equal(t, "----", formatYear(nil))
	assert.Equal(t, "-", formatTimestamp(time.Time{}))
}

func TestNewStyles_DefaultTheme(t *testing.T) {
	s := NewStyles(nil)
	assert.Equal(t, DefaultTheme().Primary, s.Title.GetForeground())
}
