package hotkey

import "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4 on common layouts
func systemModifier(m Modifier) (hotkey.Modifier, bool) {
	switch m {
	case ModCtrl:
		return hotkey.ModCtrl, true
	case ModAlt:
		return hotkey.Mod1, true
	case ModShift:
		return hotkey.ModShift, true
	case ModSuper:
		return hotkey.Mod4, true
	}
	return 0, false
}
