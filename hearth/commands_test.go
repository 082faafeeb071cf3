package hearth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandOverridesNeverInBothSets(t *testing.T) {
	var o CommandOverrides

	assert.True(t, o.Disable("confess", true))
	assert.Contains(t, o.Disabled, "confess")

	assert.True(t, o.Enable("confess", true))
	assert.NotContains(t, o.Disabled, "confess")
	assert.NotContains(t, o.Enabled, "confess", "default-on needs no override entry")

	assert.True(t, o.Enable("extra", false))
	assert.Contains(t, o.Enabled, "extra")

	assert.True(t, o.Disable("extra", false))
	assert.NotContains(t, o.Enabled, "extra")
	assert.NotContains(t, o.Disabled, "extra", "default-off needs no override entry")
}

func TestCommandOverridesNoOp(t *testing.T) {
	var o CommandOverrides

	assert.False(t, o.Enable("confess", true), "already enabled by default")
	assert.False(t, o.Disable("extra", false), "already disabled by default")

	assert.True(t, o.Disable("confess", true))
	assert.False(t, o.Disable("confess", true), "second disable is a no-op")
}

func TestCommandOverridesIsEnabled(t *testing.T) {
	var o CommandOverrides

	assert.True(t, o.IsEnabled("confess", true))
	assert.False(t, o.IsEnabled("extra", false))

	o.Disable("confess", true)
	assert.False(t, o.IsEnabled("confess", true))

	o.Enable("extra", false)
	assert.True(t, o.IsEnabled("extra", false))
}

func TestStaticCommandRegistry(t *testing.T) {
	registry := StaticCommandRegistry{
		DefaultOn: map[string]bool{"confess": true, "extra": false},
		Disabled:  []string{"extra"},
	}

	on, known := registry.DefaultEnabled("confess")
	assert.True(t, on)
	assert.True(t, known)

	_, known = registry.DefaultEnabled("bogus")
	assert.False(t, known)

	assert.True(t, registry.GloballyDisabled("extra"))
	assert.False(t, registry.GloballyDisabled("confess"))
}
