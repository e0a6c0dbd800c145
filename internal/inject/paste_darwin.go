//go:build darwin

package inject

func pasteModifier() string { return "cmd" }
