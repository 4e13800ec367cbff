// Package hash provides keyed hashing for secrets held at rest.
//
// The gateway never stores a plaintext passcode: challenges keep an HMAC of
// the code, and verification compares hashes in constant time.
package hash
