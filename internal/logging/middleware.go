// ABOUTME: HTTP request logging middleware for the grid API.
// ABOUTME: Records each call's grid, status, timing, bodies and error code into the request log.

package logging

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/2389/rowview/internal/store"
)

// maxBodySize bounds the request and response bodies kept per entry.
const maxBodySize = 10 * 1024

// unlogged path prefixes: health checks and the HTML viewer, which would drown the grid calls.
var unlogged = []string{"/healthz", "/favicon.ico", "/admin/"}

// RequestLogger persists request log entries.
type RequestLogger interface {
	LogRequest(log *store.RequestLog) error
}

// recorder tees what the handler writes: the status and a bounded copy of the body.
type recorder struct {
	http.ResponseWriter
	status  int
	started bool
	body    bytes.Buffer
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *recorder) WriteHeader(code int) {
	if rec.started {
		return
	}
	rec.status = code
	rec.started = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	rec.started = true
	if room := maxBodySize - rec.body.Len(); room > 0 {
		rec.body.Write(b[:min(len(b), room)])
	}
	return rec.ResponseWriter.Write(b)
}

// Hijack lets the events feed upgrade to a WebSocket through the recorder.
func (rec *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Middleware records every API request. Entries are written asynchronously.
func Middleware(logger RequestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			requestBody := peekBody(r)
			rec := newRecorder(w)
			start := time.Now()

			next.ServeHTTP(rec, r)

			responseBody := rec.body.String()
			entry := &store.RequestLog{
				GridName:     GridFromPath(r.URL.Path),
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   rec.status,
				DurationMs:   int(time.Since(start).Milliseconds()),
				IPAddress:    clientIP(r),
				UserAgent:    r.Header.Get("User-Agent"),
				Error:        errorSummary(rec.status, responseBody),
				RequestBody:  requestBody,
				ResponseBody: responseBody,
			}
			go func() {
				if err := logger.LogRequest(entry); err != nil {
					log.Printf("Failed to log request %s %s: %v", entry.Method, entry.Path, err)
				}
			}()
		})
	}
}

func skipped(path string) bool {
	for _, prefix := range unlogged {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// peekBody returns up to maxBodySize bytes of the request body and leaves the
// full body readable for the handler.
func peekBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return ""
	}
	r.Body = readCloser{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return string(head)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// errorSummary condenses a failed call's JSON error envelope to "code: message".
func errorSummary(status int, body string) string {
	if status < http.StatusBadRequest {
		return ""
	}
	if !gjson.Valid(body) {
		return http.StatusText(status)
	}
	res := gjson.GetMany(body, "code", "message")
	code, msg := res[0].String(), res[1].String()
	switch {
	case code == "":
		return http.StatusText(status)
	case msg == "":
		return code
	default:
		return code + ": " + msg
	}
}
