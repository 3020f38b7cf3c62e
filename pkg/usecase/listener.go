package usecase

import "github.com/xiashuijun/elasticvc/pkg/domain/interfaces"

// AddCommitListener registers listener to run during every subsequent
// Complete, in registration order (spec.md §4.6). Re-registering the same
// listener (by interface identity) is a no-op.
func (u *UseCase) AddCommitListener(listener interfaces.CommitListener) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.listeners {
		if existing == listener {
			return
		}
	}
	u.listeners = append(u.listeners, listener)
}
