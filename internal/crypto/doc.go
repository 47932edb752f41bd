// Package crypto provides the envelope encryption primitives of ofdcrypt.
//
// Content encryption uses a block cipher in CBC mode with PKCS#7 padding:
//   - SM4 (default, as used by OFD) or AES-128
//   - FEK and IV are random and exactly one block long
//   - Engine streams files in 4096-byte chunks through an explicit
//     Init/Update/Final state machine
//
// Key wrapping helpers:
//   - KDF: PBKDF2-HMAC-SHA256, 32-byte salt, 210,000 iterations
//   - Sealer: AES-256-GCM with a random 12-byte nonce prepended
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call KeyMaterial.Destroy() and Sealer.Destroy() when done
package crypto
