// Package web implements an HTMX-based web application mirroring the TUI functionality.
//
// # HTMX Web Application Implementation Plan
//
// # Architecture
//
// The web app replicates the four-view TUI workflow using server-side rendering
// with HTMX for dynamic updates. Each view corresponds to a template and handler:
//
//  1. Login: Auth status with link to start the authorization flow
//  2. Link Input: Form with hx-post submitting the playlist link
//  3. Progress Monitor: SSE (Server-Sent Events) streaming analysis updates
//  4. Results Display: Summary statistics plus full track table
//
// Core Components
//
//   - HTTP Server: reuses the server package's Router and CallbackHandler
//   - Service Integration: Uses same services.Service and tasks.AnalysisEngine as TUI
//   - Session Management: the auth package's SQLite-backed session slot
//   - SSE Handler: Streams real-time progress during analysis
//
// Routes
//
//	GET  /              → Link input view (requires auth)
//	GET  /login         → Authorization initiation (redirects to provider)
//	GET  /callback      → Authorization completion (existing CallbackHandler)
//	POST /analyze       → Start analysis, return SSE endpoint
//	GET  /analyze/{id}/stream → SSE progress stream
//	GET  /analyze/{id}/result → Final report view
//	GET  /export/{id}   → Download report as CSV/JSON/Markdown
//
// Templates
//
//   - base.html: Layout with navigation, auth status
//   - input.html: Link form with hx-post and inline validation
//   - progress.html: SSE consumer with progress bar
//   - results.html: Summary stats plus track table
//
// # State Management
//
// Unlike the TUI's in-memory state, the web app persists state in:
//   - The session slot: access token and expiry
//   - In-memory channels: SSE connections for active analyses
//
// # Progress Streaming
//
// Analysis progress uses Server-Sent Events:
//  1. POST /analyze validates the link, returns a run ID
//  2. Client opens SSE connection to /analyze/{id}/stream
//  3. Handler launches goroutine running AnalysisEngine.Analyze
//  4. Progress channel updates stream as SSE events
//  5. On completion, send "done" event with redirect URL
//
// The engine's concurrency rules carry over unchanged: a duplicate submission
// for the playlist already being analyzed returns 409, and a submission for a
// different playlist supersedes the running analysis.
//
// Authentication Flow
//
//  1. User visits /, redirected to /login if no session
//  2. Authorization dance stores the token in the session slot
//  3. Middleware validates the token on protected routes
//  4. An expired session renders a login affordance, never an automatic redirect loop
//
// Dependencies
//
//   - html/template: Server-side rendering
//   - net/http: HTTP server and SSE
//   - internal/server: Router, middleware, callback handling
//
// Implementation Tasks
//
//  1. Route registration on the existing BasicRouter
//  2. Template structure with HTMX integration
//  3. Session middleware reading the auth store
//  4. Analyze endpoint wiring the engine
//  5. SSE handler streaming progress updates
//  6. Result handler rendering the formatter report
//  7. Export handler reusing the formatter writers
//  8. Error handling and validation
//
// # Testing Strategy
//
// Use httptest:
//   - Mock services.Service for playlist/track data
//   - Mock tasks.Engine for analyses
//   - Validate HTMX headers and response structure
//   - Test SSE stream formatting
package web
