// Package archive unpacks untrusted OFD packages into a workspace and packs
// a workspace back into a package.
//
// Extraction is hardened against:
//   - zip-slip: every entry is resolved through security.Root and must stay
//     beneath the destination root
//   - decompression bombs: a running total of bytes written is checked
//     before every buffered write against a budget (100 MiB by default)
//   - inconsistent name encodings: names are used as UTF-8 when valid,
//     otherwise decoded as GBK
//
// ZIP reading and writing uses github.com/klauspost/compress/zip.
package archive
