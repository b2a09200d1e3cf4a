// Package httpserver builds the process HTTP server with project defaults.
package httpserver

import (
	"net/http"
	"time"
)

// Timeouts bounds request handling. Zero fields fall back to the project
// defaults; assessment runs can hold a request open for minutes, so the
// write timeout stays generous.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.ReadHeader == 0 {
		t.ReadHeader = 5 * time.Second
	}
	if t.Read == 0 {
		t.Read = 30 * time.Second
	}
	if t.Write == 0 {
		t.Write = 2 * time.Minute
	}
	if t.Idle == 0 {
		t.Idle = 2 * time.Minute
	}
	return t
}

// New builds an HTTP server for the given handler.
func New(addr string, handler http.Handler, timeouts Timeouts) *http.Server {
	timeouts = timeouts.withDefaults()
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}
}
