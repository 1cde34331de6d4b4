package main

import (
	"testing"

	"github.com/raaihank/moji-sentinel/internal/config"
)

func TestHealthCheckURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want string
	}{
		{"wildcard ipv4 bind", "0.0.0.0", 8080, "http://localhost:8080/health"},
		{"wildcard ipv6 bind", "::", 8080, "http://localhost:8080/health"},
		{"empty host", "", 8080, "http://localhost:8080/health"},
		{"explicit host", "10.1.2.3", 9090, "http://10.1.2.3:9090/health"},
		{"ipv6 loopback", "::1", 9090, "http://[::1]:9090/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetDefaults()
			cfg.Server.Host = tt.host
			cfg.Server.Port = tt.port
			if got := healthCheckURL(cfg); got != tt.want {
				t.Errorf("healthCheckURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
