// Package crypto provides cryptographic operations for walletlock.
//
// Seed records are sealed with AES-256-GCM (Encryptor) under a 32-byte key
// derived from the password via PBKDF2 or argon2id, with a fresh 12-byte
// nonce per record. Store entries use XChaCha20-Poly1305 (SealX/OpenX) so
// random nonces can be drawn without a counter.
//
// Key derivation uses PBKDF2-HMAC with a pluggable hash strategy, salted with
// the per-installation secret. SplitIntoLanes turns a derived key into the
// four hash lanes used by the seed cipher.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
//   - Wrap long-lived secrets in a Secret so zeroing happens on every exit path
package crypto
