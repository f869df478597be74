// Package auth is the client side of a password login that ends in signed
// API requests.
//
// Lifecycle:
//   - TokenStore runs the password grant against the user pool and keeps the
//     identity token in memory, mirrored to a TokenPersister (memory, files,
//     sealed files or SQLite, see the storage and repository packages).
//   - IdentityResolver trades the identity token for a federated identity id.
//   - CredentialBroker trades the identity id and token for temporary
//     credentials.
//   - Client.Do ties them together: it checks the token locally, resolves the
//     identity and credentials lazily, signs the request with SigV4 and sends
//     it. Client.Call wraps Do for the JSON RPC style API.
//
// Caching:
//   - The identity id and credentials live in a Session and are keyed by the
//     token they came from. A new login makes them unreachable without any
//     explicit reset. Credentials are never refreshed, once they pass their
//     margin the caller has to log in again.
//
// Activity sinks:
//   - ActivitySink receives login, logout, identity, credential and expiry
//     events. Sinks run best-effort (errors are logged).
package auth
