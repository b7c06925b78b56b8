package gatewaytest

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// Request is a REST call seen by Transport. Path is relative to the API root.
type Request struct {
	Method string
	Path   string
	Body   string
}

// Route answers a request with a status and a JSON body.
type Route func() (int, string)

// Reply returns a Route that always answers status and body.
func Reply(status int, body string) Route {
	return func() (int, string) { return status, body }
}

// Transport answers Discord REST calls from a route table keyed by
// "METHOD /path" and records every request. Unknown routes get Fallback,
// or a 404 when Fallback is nil.
type Transport struct {
	mu       sync.Mutex
	requests []Request
	routes   map[string]Route
	Fallback Route
}

// NewTransport returns a transport serving routes.
func NewTransport(routes map[string]Route) *Transport {
	if routes == nil {
		routes = map[string]Route{}
	}
	return &Transport{routes: routes}
}

// Handle adds or replaces a route.
func (rt *Transport) Handle(key string, r Route) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[key] = r
}

func (rt *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	path := strings.TrimPrefix(req.URL.Path, "/api/v"+discordgo.APIVersion)

	rt.mu.Lock()
	rt.requests = append(rt.requests, Request{Method: req.Method, Path: path, Body: body})
	route, ok := rt.routes[req.Method+" "+path]
	if !ok {
		route = rt.Fallback
	}
	rt.mu.Unlock()

	status, payload := http.StatusNotFound, `{"message":"Unknown","code":10000}`
	if route != nil {
		status, payload = route()
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    req,
	}, nil
}

// Requests returns what was seen so far.
func (rt *Transport) Requests() []Request {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]Request(nil), rt.requests...)
}

// Callbacks returns the bodies of interaction responses.
func (rt *Transport) Callbacks() []Request {
	var out []Request
	for _, r := range rt.Requests() {
		if strings.HasPrefix(r.Path, "/interactions/") && strings.HasSuffix(r.Path, "/callback") {
			out = append(out, r)
		}
	}
	return out
}

// NewSession returns a session whose REST calls go to rt.
func NewSession(t testing.TB, rt *Transport) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	s.Client = &http.Client{Transport: rt}
	s.MaxRestRetries = 0
	return s
}
