// Package hearth implements the interactive workflow core of the Hearth
// Discord bot: per-guild persisted configuration state, time-bounded
// action collectors, and the button/menu/message-driven workflow
// controllers behind the starboard editor, confession approval and the
// guild settings menu.
//
// Each workflow renders a view from the current [GuildState], waits for
// the next matching user action via a [Collector], applies exactly one
// state transition under the session's re-entrancy guard, persists the
// mutated state, and re-renders - repeating until a terminal action or
// collector timeout tears the session down.
package hearth
