package hearth

import "slices"

// CommandRegistry resolves, for a command name, whether the command is
// enabled by default and whether it has been disabled globally. The
// registry itself lives outside this core; the settings workflow only
// consults it when validating enable/disable transitions.
type CommandRegistry interface {
	// DefaultEnabled reports whether the named command is on by default,
	// and whether the command is known at all.
	DefaultEnabled(name string) (defaultOn bool, known bool)

	// GloballyDisabled reports whether the named command has been
	// disabled bot-wide, in which case per-guild enablement is refused.
	GloballyDisabled(name string) bool
}

// StaticCommandRegistry is a fixed in-memory CommandRegistry.
type StaticCommandRegistry struct {
	// DefaultOn maps known command names to their default-enabled flag
	DefaultOn map[string]bool

	// Disabled lists commands disabled bot-wide
	Disabled []string
}

func (r StaticCommandRegistry) DefaultEnabled(name string) (bool, bool) {
	on, known := r.DefaultOn[name]
	return on, known
}

func (r StaticCommandRegistry) GloballyDisabled(name string) bool {
	return slices.Contains(r.Disabled, name)
}

// CommandOverrides holds a guild's two override sets: Enabled lists
// off-by-default commands turned on for the guild, Disabled lists
// on-by-default commands turned off. A command name never appears in
// both sets: Enable removes from Disabled and vice versa.
type CommandOverrides struct {
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

// Enable records that the named command should be active for this guild.
// Returns false if the command was already effectively enabled (no
// change was made).
func (o *CommandOverrides) Enable(name string, defaultOn bool) bool {
	if i := slices.Index(o.Disabled, name); i >= 0 {
		o.Disabled = slices.Delete(o.Disabled, i, i+1)
		return true
	}
	if defaultOn {
		return false
	}
	if slices.Contains(o.Enabled, name) {
		return false
	}
	o.Enabled = append(o.Enabled, name)
	return true
}

// Disable records that the named command should be inactive for this
// guild. Returns false if the command was already effectively disabled.
func (o *CommandOverrides) Disable(name string, defaultOn bool) bool {
	if i := slices.Index(o.Enabled, name); i >= 0 {
		o.Enabled = slices.Delete(o.Enabled, i, i+1)
		return true
	}
	if !defaultOn {
		return false
	}
	if slices.Contains(o.Disabled, name) {
		return false
	}
	o.Disabled = append(o.Disabled, name)
	return true
}

// IsEnabled resolves the effective enablement of the named command for
// this guild, given its default flag.
func (o CommandOverrides) IsEnabled(name string, defaultOn bool) bool {
	if slices.Contains(o.Disabled, name) {
		return false
	}
	if slices.Contains(o.Enabled, name) {
		return true
	}
	return defaultOn
}
