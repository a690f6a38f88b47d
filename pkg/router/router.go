// Package router is a small net/http router: method-aware routes with
// single-segment wildcards, colored request logging, nothing else.
package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	segments []string
	handler  HandlerFunc
}

// Router matches routes in registration order, so register specific
// patterns before generic ones.
type Router struct {
	routes []route
}

func New() *Router {
	return &Router{}
}

func (r *Router) register(method, pattern string, handler HandlerFunc) {
	r.routes = append(r.routes, route{
		method:   method,
		segments: strings.Split(strings.Trim(pattern, "/"), "/"),
		handler:  handler,
	})
}

func (r *Router) GET(pattern string, h HandlerFunc)    { r.register(http.MethodGet, pattern, h) }
func (r *Router) POST(pattern string, h HandlerFunc)   { r.register(http.MethodPost, pattern, h) }
func (r *Router) PUT(pattern string, h HandlerFunc)    { r.register(http.MethodPut, pattern, h) }
func (r *Router) PATCH(pattern string, h HandlerFunc)  { r.register(http.MethodPatch, pattern, h) }
func (r *Router) DELETE(pattern string, h HandlerFunc) { r.register(http.MethodDelete, pattern, h) }

// match reports whether a request path fits a route pattern. "*" matches
// exactly one segment; a trailing "*" swallows the rest of the path.
func (rt route) match(path string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	last := len(rt.segments) - 1
	if rt.segments[last] == "*" && len(segments) >= last {
		segments = segments[:last]
		return segmentsEqual(segments, rt.segments[:last])
	}
	return segmentsEqual(segments, rt.segments)
}

func segmentsEqual(segments, pattern []string) bool {
	if len(segments) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && segments[i] != p {
			return false
		}
	}
	return true
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	var handler HandlerFunc
	pathExists := false
	for _, rt := range r.routes {
		if !rt.match(req.URL.Path) {
			continue
		}
		pathExists = true
		if rt.method == req.Method {
			handler = rt.handler
			break
		}
	}

	switch {
	case handler != nil:
		handler(lrw, req)
	case pathExists:
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	duration := time.Since(start)
	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
		methodColor(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		colorBlue, duration, colorReset,
	)
}

// --- Start server ---
func (r *Router) Start(addr string) error {
	log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut, http.MethodPatch:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
