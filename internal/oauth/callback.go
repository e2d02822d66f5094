package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const callbackSuccessHTML = `<!DOCTYPE html>
<html><head><title>Authentication complete</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h1>Authentication complete</h1>
<p>You can close this window and return to the terminal.</p>
</body></html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html><head><title>Authentication failed</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h1>Authentication failed</h1>
<p>%s</p>
<p>Return to the terminal for details.</p>
</body></html>`

// callbackResult carries the query parameters of the provider redirect.
type callbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

func (r *callbackResult) isError() bool {
	return r.Error != ""
}

// callbackServer is a temporary local HTTP listener for one OAuth redirect.
// It binds, serves exactly one callback, then shuts down.
type callbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *callbackResult
	errorCh  chan error
	once     sync.Once
}

// newCallbackServer prepares a server on the given port; 0 picks an
// ephemeral port at bind time.
func newCallbackServer(port int) *callbackServer {
	return &callbackServer{
		port:     port,
		resultCh: make(chan *callbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// start binds the listener and returns the redirect URI to hand to the
// provider. Binding happens before the browser is launched so the redirect
// cannot arrive with nobody listening.
func (s *callbackServer) start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind callback listener on %s: %w", addr, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	return s.redirectURI(), nil
}

// wait blocks until the redirect arrives or ctx ends.
func (s *callbackServer) wait(ctx context.Context) (*callbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *callbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	result := &callbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	if result.isError() {
		fmt.Fprintf(w, callbackErrorHTML, result.Error)
	} else {
		fmt.Fprint(w, callbackSuccessHTML)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Let the response flush before the listener goes away.
	go func() {
		time.Sleep(time.Second)
		s.stop()
	}()
}

// stop releases the listener socket. Safe to call more than once.
func (s *callbackServer) stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *callbackServer) redirectURI() string {
	return fmt.Sprintf("http://localhost:%d/oauth2callback", s.port)
}
