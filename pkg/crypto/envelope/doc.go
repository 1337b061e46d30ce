// Package envelope implements authenticated envelope encryption for stored
// document content.
//
// The key hierarchy has two levels: a single process-wide master key wraps
// one content key per subject, and the content key encrypts all of that
// subject's stored content. Compromising one subject's content key exposes
// no other subject's data, and rotating the master key only requires
// re-wrapping N content keys, never re-encrypting content.
//
// All primitives are AES-256-GCM with a fresh random 16-byte IV per call and
// a 16-byte authentication tag. The canonical external form of a ciphertext
// is "hex(iv):hex(tag):hex(data)". Encryption and decryption are pure and
// draw fresh randomness per call; they are safe under arbitrary concurrency.
package envelope
