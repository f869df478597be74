// Package cognito speaks the JSON 1.1 wire protocol of the identity
// provider (password grant) and the federated identity broker (identity
// resolution and temporary credentials).
//
// The client is transport only: it returns *APIError for provider
// rejections, *TransportError for network failures and *DecodeError for
// responses it cannot parse. Mapping those onto the caller's failure
// taxonomy happens one layer up.
package cognito
