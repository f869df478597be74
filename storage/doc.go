// Package storage persists the identity token on disk.
//
// File writes the token as JSON with owner only permissions. SealedFile
// encrypts the same JSON with an age X25519 key so the token is unreadable
// without the key file. Open picks a persister from an auth.StorageConfig,
// including the SQLite backed repository.
package storage
