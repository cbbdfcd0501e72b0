package server

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Host:           "127.0.0.1",
				Port:           "8080",
				ReadTimeout:    10 * time.Second,
				WriteTimeout:   10 * time.Second,
				IdleTimeout:    60 * time.Second,
				MaxHeaderBytes: 1 << 20,
			},
			wantErr: false,
		},
		{
			name: "valid low port",
			config: &Config{
				Port: "1",
			},
			wantErr: false,
		},
		{
			name: "valid high port",
			config: &Config{
				Port: "65535",
			},
			wantErr: false,
		},
		{
			name: "invalid - non-numeric",
			config: &Config{
				Port: "abc",
			},
			wantErr: true,
		},
		{
			name: "invalid - port too low",
			config: &Config{
				Port: "0",
			},
			wantErr: true,
		},
		{
			name: "invalid - port too high",
			config: &Config{
				Port: "65536",
			},
			wantErr: true,
		},
		{
			name: "invalid - negative port",
			config: &Config{
				Port: "-1",
			},
			wantErr: true,
		},
		{
			name: "invalid - empty port",
			config: &Config{
				Port: "",
			},
			wantErr: true,
		},
		{
			name: "invalid - port with spaces",
			config: &Config{
				Port: "80 80",
			},
			wantErr: true,
		},
		{
			name: "invalid - negative read timeout",
			config: &Config{
				Port:        "8080",
				ReadTimeout: -time.Second,
			},
			wantErr: true,
		},
		{
			name: "invalid - negative shutdown timeout",
			config: &Config{
				Port:            "8080",
				ShutdownTimeout: -time.Second,
			},
			wantErr: true,
		},
		{
			name: "invalid - negative header bytes",
			config: &Config{
				Port:           "8080",
				MaxHeaderBytes: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	if got := cfg.Addr(); got != "0.0.0.0:58181" {
		t.Errorf("Addr() = %q, want %q", got, "0.0.0.0:58181")
	}
}

func TestAddr(t *testing.T) {
	tests := []struct {
		host, port, want string
	}{
		{"", "8080", ":8080"},
		{"127.0.0.1", "8080", "127.0.0.1:8080"},
		{"::1", "8080", "[::1]:8080"},
	}
	for _, tt := range tests {
		cfg := Config{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() with host %q = %q, want %q", tt.host, got, tt.want)
		}
	}
}
