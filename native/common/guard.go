package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a native module's flows are currently halted by
// governance or an operator circuit breaker.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view means no
// pause controls are wired, which is allowed in tests.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
