package hotkey

import "golang.design/x/hotkey"

func systemModifier(m Modifier) (hotkey.Modifier, bool) {
	switch m {
	case ModCtrl:
		return hotkey.ModCtrl, true
	case ModAlt:
		return hotkey.ModOption, true
	case ModShift:
		return hotkey.ModShift, true
	case ModSuper:
		return hotkey.ModCmd, true
	}
	return 0, false
}
