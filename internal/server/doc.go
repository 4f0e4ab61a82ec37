// Package server provides the local HTTP surface for the authorization flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, so route
// patterns follow the stdlib rules including method prefixes.
//
// # Callback Handler
//
// [CallbackHandler] receives the authorization redirect for both grant flows.
//
// For the PKCE flow it forwards the code and state straight to the flow
// controller, which validates the state parameter (CSRF protection) and
// exchanges the code for a token.
//
// For the implicit flow the token arrives in the URL fragment, invisible to
// the server; the handler serves a relay page that re-submits the fragment
// parameters as a query string before the same processing applies.
//
// It only processes one callback to prevent replay attacks, and delivers the
// outcome exactly once through a result channel.
//
// # Current Usage
//
// When the user runs the login command, a temporary HTTP server starts on the
// configured redirect address, handles the callback, and shuts down after the
// result is delivered.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
