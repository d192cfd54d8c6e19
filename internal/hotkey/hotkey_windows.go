//go:build windows

package hotkey

import "golang.design/x/hotkey"

// modAlt returns the Alt modifier for Windows
func modAlt() hotkey.Modifier {
	return hotkey.ModAlt
}

// modSuper returns the Win modifier for Windows
func modSuper() hotkey.Modifier {
	return hotkey.ModWin
}
