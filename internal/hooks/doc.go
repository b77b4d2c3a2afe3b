// Package hooks provides ready-made run hooks for monitored sessions.
//
// Every hook in this package embeds hook.NopHook, so each one only
// implements the phases it cares about. Hooks are composable: attach
// any number of them to a monitor.Session and they observe every
// monitored step in registration order.
package hooks
