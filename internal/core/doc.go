// Package core manages wallet credentials.
//
// A Manager owns the secure store and the seed cipher. It supports:
//   - CreateWallet: seal a BIP-39 seed under a password as wallet n
//   - Unlock: decrypt a seed into an UnlockedWallet handle
//   - ChangePassword / DeleteWallet
//   - Wallets / Status: read-only views that need no password
//   - SignWithHardware / HardwareAddress: requests to a Ledger device
//
// Decrypted seeds exist only inside an UnlockedWallet and are zeroed by its
// Close. Lifecycle events reach observers registered with Subscribe,
// serialized through a Dispatcher when one is configured.
package core
