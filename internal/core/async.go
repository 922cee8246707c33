package core

import "context"

// UnlockResult carries the outcome of UnlockAsync.
type UnlockResult struct {
	Wallet *UnlockedWallet
	Err    error
}

// CreateResult carries the outcome of CreateWalletAsync.
type CreateResult struct {
	Info WalletInfo
	Err  error
}

// UnlockAsync runs Unlock on its own goroutine and posts done to the
// manager's dispatcher. Without a dispatcher done runs on that goroutine.
// If the result is never delivered the unlocked wallet is closed.
func (m *Manager) UnlockAsync(ctx context.Context, n int, password []byte, done func(UnlockResult)) {
	pw := append([]byte(nil), password...)
	go func() {
		w, err := m.Unlock(ctx, n, pw)
		clear(pw)
		res := UnlockResult{Wallet: w, Err: err}
		var drop func()
		if w != nil {
			drop = w.Close
		}
		m.deliver(func() { done(res) }, drop)
	}()
}

// CreateWalletAsync runs CreateWallet on its own goroutine and delivers
// the result like UnlockAsync.
func (m *Manager) CreateWalletAsync(ctx context.Context, name, mnemonic string, password []byte, done func(CreateResult)) {
	pw := append([]byte(nil), password...)
	go func() {
		info, err := m.CreateWallet(ctx, name, mnemonic, pw)
		clear(pw)
		m.deliver(func() { done(CreateResult{Info: info, Err: err}) }, nil)
	}()
}

// deliver runs fn on the dispatcher, or inline without one. drop runs
// instead when fn cannot be delivered.
func (m *Manager) deliver(fn, drop func()) {
	if m.dispatcher == nil {
		fn()
		return
	}
	if !m.dispatcher.PostOr(fn, drop) && drop != nil {
		drop()
	}
}
