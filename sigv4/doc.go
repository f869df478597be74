// Package sigv4 implements the AWS Signature Version 4 request signing
// scheme without depending on a platform SDK.
//
// The package is split along the stages of the algorithm:
//
//   - Canonicalize turns a request description (method, path, query,
//     headers, payload hash) into the exact string that gets hashed.
//   - DeriveKey computes the scoped signing key from a secret key through
//     four chained HMAC-SHA256 operations.
//   - Sign combines both with a credential set and returns the header set
//     that must be transmitted, including the Authorization header.
//   - Verifier rebuilds the signature on the receiving side.
//
// Path canonicalization depends on the downstream service. Object storage
// keys may contain sequences that look like path segments, so those
// services use PathRaw; every other service uses PathNormalized. Select the
// encoding once with ProfileFor when configuring a client.
//
// Canonicalize, DeriveKey and Sign are pure. They panic on malformed input
// (an empty method, a payload hash that is not hex SHA-256, an incomplete
// credential scope) because those are programmer errors that would
// otherwise surface as an opaque "forbidden" from the server.
package sigv4
