// Package storage provides the key/value substrates that walletlock persists
// its sealed entries into.
//
// The default substrate is a bbolt file with two buckets:
//   - meta: layout version, timestamps and the installation id, in clear
//   - entries: obfuscated key -> sealed value, written by securestore
//
// LevelDB and Memory implement the same Substrate interface. Every write is
// committed and synced before it returns.
package storage
