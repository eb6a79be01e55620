// Package identity provides the credential and token core of the
// backend-project user service: bcrypt password hashing, paired
// access/refresh JWT issuance, and the user record plus repositories
// that tie them together.
//
// Credential lifecycle:
//   - Registration normalizes username/email/fullname, hashes the
//     plaintext password exactly once, and delegates uniqueness to the
//     store's unique indexes. A duplicate identity surfaces as a
//     validation error, never as a partial write.
//   - Password changes go through ChangePasswordHandler, which skips
//     re-hashing when the supplied plaintext already matches the stored
//     hash. The stored hash is never hashed again.
//
// Sessions:
//   - TokenIssuer signs two classes of bearer tokens with independent
//     secrets and TTLs. Access tokens carry the full identity claims,
//     refresh tokens carry only the subject. Auther persists a SHA-256
//     digest of the active refresh token so sessions can be rotated and
//     revoked without keeping the raw token at rest.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter used by Auther for
//     login, refresh, and revocation events. Sink errors are logged,
//     never propagated, so auditing cannot block authentication.
package identity
