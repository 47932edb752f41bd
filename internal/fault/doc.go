// Package fault defines the error taxonomy shared by every ofdcrypt package.
//
// Kinds:
//   - ErrInvalidArgument: missing source, nil destination, zero recipients
//   - ErrPathTraversal: archive entry resolves outside the destination root
//   - ErrCapacityExceeded: decompressed bytes exceed the extraction budget
//   - ErrCipherFailure: block cipher or padding error, illegal engine state
//   - ErrIOFailure: filesystem read, write or delete error
//   - ErrWorkspaceTeardown: recursive workspace deletion failed on close
//
// Nothing is retried. Callers decide recovery policy.
package fault
