// Package keyring stores the installation protection key in the OS keyring
// and provides the Protector used as the outermost layer around sealed seeds.
package keyring
