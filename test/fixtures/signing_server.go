package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eo-datahub/stac-gateway/internal/constant"
)

// SigningServer fakes a remote token service answering GET /{scope}.
// Scopes without a configured token get 404.
type SigningServer struct {
	*httptest.Server

	mu          sync.Mutex
	tokens      map[string]string
	calls       map[string]int
	expiry      time.Time
	expiryField string
	status      int
	delay       time.Duration
}

// NewSigningServer starts a signing service whose tokens expire at expiry.
// The server is closed when the test ends.
func NewSigningServer(t *testing.T, expiry time.Time) *SigningServer {
	t.Helper()
	s := &SigningServer{
		tokens:      make(map[string]string),
		calls:       make(map[string]int),
		expiry:      expiry,
		expiryField: constant.DefaultExpiryField,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *SigningServer) SetToken(scope, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[scope] = token
}

func (s *SigningServer) SetExpiry(expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry = expiry
}

// SetExpiryField renames the expiry field in responses.
func (s *SigningServer) SetExpiryField(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiryField = field
}

// FailWith makes every request answer with status. Zero restores normal behavior.
func (s *SigningServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetDelay holds every response for d.
func (s *SigningServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many requests were made for scope.
func (s *SigningServer) Calls(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[scope]
}

func (s *SigningServer) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *SigningServer) serve(w http.ResponseWriter, r *http.Request) {
	scope := strings.Trim(r.URL.Path, "/")

	s.mu.Lock()
	s.calls[scope]++
	token, ok := s.tokens[scope]
	status, delay := s.status, s.delay
	body := map[string]string{
		"token":       token,
		s.expiryField: s.expiry.UTC().Format(constant.ExpiryLayout),
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
