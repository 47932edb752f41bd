// Package core provides the OFD package pipelines of ofdcrypt.
//
// Every pipeline owns one workspace for its lifetime:
//   - New*: extract the source package into a fresh temporary directory
//   - Set*/Add*: configure recipients, filters, randomness, sign container
//   - Encrypt/Decrypt/Sign: transform the workspace and repackage it
//   - Close: remove the workspace (idempotent, always call it)
//
// Encryptor uses one random FEK and IV per session, wrapped for every
// recipient, and streams each selected file through SM4 or AES-128 CBC.
// Each encrypted file is replaced by a ".enc" sibling and recorded in the
// session ledger. With a state store, done markers and manifests are
// persisted so later runs skip finished files and decryptors can find
// the ciphertext.
//
// DiffPackages compares two packages entry by entry, with unified diffs
// for text entries.
package core
