// Package auth is the client side session core of the news portal: it
// decodes, stores, synchronizes and invalidates the authentication token and
// the user record derived from it.
//
// Session state:
//   - SessionState holds the current Session ({Token, User}) and delivers
//     every publication synchronously to its subscribers. The status is
//     anonymous (no token), restoring (token, profile pending) or
//     authenticated (both).
//   - Every token change starts a new epoch. Work that read the epoch before
//     a network call can only publish when the epoch is unchanged, so a
//     logout always wins over a slow profile fetch.
//
// Controller:
//   - Controller is the only writer of the session and the TokenStore. It
//     implements login, register, logout, startup restoration, the healing
//     token read used by the gate and profile refreshes.
//   - Tokens are decoded without verification by default. Use NewHMACDecoder
//     or NewJWKSDecoder when the client holds a verification key.
//
// Gate:
//   - Gate is an http.RoundTripper that attaches the bearer token to every
//     request under the API prefix and logs out when the API answers 401.
//     New installs it on the HTTP client used by the API client.
//
// Consumers:
//   - Guard maps routes to requirements and derives navigation visibility.
//   - StatusTracker turns publications into status transitions and runs
//     transition hooks.
//   - Diagnose compares memory with the store without healing.
//
// Activity sinks:
//   - ActivitySink receives login, logout, restoration and status change
//     events. Sinks run best-effort (errors are logged).
package auth
