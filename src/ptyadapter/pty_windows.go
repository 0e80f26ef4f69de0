//go:build windows

package ptyadapter

// A full ConPTY binding is out of budget for this module (spec §9:
// "OS-specific PTY as optional import → trait/interface with
// compile-time selection; a stub implementation is acceptable only for
// tests"). Spawn fails loudly here rather than silently degrading so a
// Windows build surfaces the gap immediately instead of misbehaving at
// runtime.
func spawn(p Params) (PTY, error) {
	return nil, ErrUnsupportedPlatform
}
