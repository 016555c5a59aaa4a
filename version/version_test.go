package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "9.9.9"

	assert.Equal(t, "9.9.9", GetVersion())
	assert.Equal(t, BuildDate, GetBuildDate())
	assert.Contains(t, String(), "Kirby 9.9.9")
}
