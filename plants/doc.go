// Package plants holds the plant catalogue models and a typed client for
// the catalogue RPC operations. Requests go through an authenticated
// caller such as *auth.Client, so every call is signed.
package plants
