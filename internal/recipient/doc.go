// Package recipient wraps a session's file encryption key for the users
// allowed to decrypt a container.
//
// Supported recipients:
//   - Password: PBKDF2 + AES-256-GCM under a passphrase
//   - Age: an age X25519 public key, unwrapped by AgeIdentity
//   - Keyring: a Password whose passphrase is kept in the OS keyring
//   - Func: any callback, for external key services
//
// Every wrap carries FEK||IV and is independent of every other wrap in
// the same session. A recipient can only unwrap its own wraps.
package recipient
