package server

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/prismatify/internal/auth"
	"github.com/desertthunder/prismatify/internal/shared"
)

// CallbackResult contains the outcome of an authorization callback.
type CallbackResult struct {
	err error
}

func (c CallbackResult) Error() error {
	return c.err
}

// CallbackHandler handles the OAuth redirect callback for both grant flows.
// Implements the [Handler] interface for registration with a [Router].
//
// For the implicit grant the token arrives in the URL fragment, which never
// reaches the server; the handler first serves a small relay page whose script
// re-submits the fragment parameters as a query string (stripping them from
// the visible address in the process).
type CallbackHandler struct {
	flow       *auth.Flow
	grant      auth.Grant
	logger     *log.Logger
	resultChan chan CallbackResult
	once       sync.Once
	mu         sync.Mutex
	processed  bool
}

// NewCallbackHandler creates a callback handler driving the given flow controller.
func NewCallbackHandler(flow *auth.Flow, grant auth.Grant, logger *log.Logger) *CallbackHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CallbackHandler{
		flow:       flow,
		grant:      grant,
		logger:     logger,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the authorization callback request.
//
// The pending attempt is consumed by the flow controller exactly once; a
// repeated callback after processing is rejected rather than replayed.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if h.grant == auth.GrantImplicit && q.Get("access_token") == "" && q.Get("error") == "" {
		h.serveFragmentRelay(w)
		return
	}

	h.mu.Lock()
	if h.processed {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.processed = true
	h.mu.Unlock()

	expiresIn, _ := strconv.Atoi(q.Get("expires_in"))
	params := auth.CallbackParams{
		Code:        q.Get("code"),
		State:       q.Get("state"),
		AccessToken: q.Get("access_token"),
		ExpiresIn:   expiresIn,
		Err:         q.Get("error"),
	}

	if err := h.flow.HandleCallback(r.Context(), params); err != nil {
		h.logger.Error("callback handling failed", "error", err)
		h.send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.send(CallbackResult{})
	h.servePage(w, "✓ Authorization Successful", "You can close this window and return to the terminal.")
}

// send delivers the callback result through the channel (only once).
func (h *CallbackHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// The channel receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

// serveFragmentRelay serves the page that forwards URL-fragment credentials to
// the server as query parameters. window.location.replace keeps the fragment
// out of the browser history.
func (h *CallbackHandler) serveFragmentRelay(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head><title>Completing Authorization…</title></head>
<body>
    <p>Completing authorization…</p>
    <script>
        const params = new URLSearchParams(window.location.hash.replace(/^#/, ""));
        if ([...params.keys()].length > 0) {
            window.location.replace("/callback?" + params.toString());
        } else {
            document.body.textContent = "No credentials were returned by the authorization server.";
        }
    </script>
</body>
</html>
`)
}

func (h *CallbackHandler) servePage(w http.ResponseWriter, title, detail string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, title, title, detail)
}
