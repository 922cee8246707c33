// Package seedcipher implements the layered wallet seed encryption.
//
// A password key is derived with the installation secret and split into four
// hash lanes. Lanes 1+2 and 3+4 are combined into two inner keys. The seed is
// sealed under inner key 2, then again under inner key 1, and the result is
// wrapped by the platform Protector. Each lane is stored sealed under its own
// key expanded from the password key, so the inner keys are never persisted.
//
// Recovering the seed needs every lane and the password; any single stored
// artifact on its own reveals nothing.
package seedcipher
