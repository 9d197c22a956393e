// Package script embeds Lua for command overrides and automation.
//
// Two entry points share the same sandbox (base, table, string and math
// libraries only; no code loading from disk):
//
//   - Overrides evaluates a script returning a table of method overrides
//     and turns its functions into command handlers.
//   - Runner executes automation scripts that drive an Executor through
//     emu.exec.
//
// Overrides and scripts never share a Lua state, so a script calling a
// method implemented by an override does not contend for the same state.
package script
