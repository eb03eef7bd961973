package server

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSanitizeFillsDefaults(t *testing.T) {
	cfg := Config{Port: "9000", RateLimit: RateLimitConfig{Burst: -3}}.Sanitize()

	if cfg.Port != ":9000" {
		t.Errorf("Expected port :9000, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Expected default send buffer size, got %d", cfg.SendBufferSize)
	}
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("Expected negative burst to disable limiting, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Expected default refill interval, got %s", cfg.RateLimit.RefillInterval)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_BUFFER_SIZE", "32")
	t.Setenv("RATE_LIMIT_BURST", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("RELAY_LOG_FILE", "/tmp/relay.log")
	t.Setenv("RELAY_MDNS", "true")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 32 {
		t.Errorf("Expected send buffer size 32, got %d", cfg.SendBufferSize)
	}
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("Expected burst 0, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Expected refill interval 2s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.LogFile != "/tmp/relay.log" || !cfg.MDNS {
		t.Errorf("Unexpected log/mdns settings: %q %v", cfg.LogFile, cfg.MDNS)
	}
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")
	t.Setenv("RATE_LIMIT_BURST", "-1")
	t.Setenv("RELAY_MDNS", "maybe")

	cfg := NewConfigFromEnv()
	defaults := NewConfig()

	if cfg.MaxMessageSize != defaults.MaxMessageSize {
		t.Errorf("Expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != defaults.RateLimit.Burst {
		t.Errorf("Expected default burst, got %d", cfg.RateLimit.Burst)
	}
	if cfg.MDNS {
		t.Error("Expected mDNS to stay disabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	doc := `port: ":7000"
allowedOrigins:
  - http://console.example
maxMessageSize: 2048
rateLimit:
  burst: 10
  refillInterval: 500ms
mdns: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg := NewConfig()
	if err := LoadConfigFile(cfg, path); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.Port != ":7000" || cfg.MaxMessageSize != 2048 || !cfg.MDNS {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.RateLimit.Burst != 10 || cfg.RateLimit.RefillInterval != 500*time.Millisecond {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Expected unspecified fields to keep defaults, got %d", cfg.SendBufferSize)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	if err := LoadConfigFile(NewConfig(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := LoadConfigFile(NewConfig(), path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestPortNumber(t *testing.T) {
	tests := map[string]int{
		":8080":          8080,
		"8081":           8081,
		"127.0.0.1:9000": 9000,
		"":               0,
		"nonsense:port":  0,
	}
	for port, want := range tests {
		if got := (Config{Port: port}).PortNumber(); got != want {
			t.Errorf("PortNumber(%q) = %d, want %d", port, got, want)
		}
	}
}

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://Console.Example:8080", "not a url", ""})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://console.example:8080", true},
		{"http://console.example", false},
		{"http://evil.example", false},
		{"::bad::", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := policy.allows(req); got != tt.want {
			t.Errorf("allows(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	allowAll := newOriginPolicy([]string{"*"})
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://anything.example")
	if !allowAll.allows(req) {
		t.Error("Expected wildcard policy to allow any origin")
	}
}

func TestFrameBudgetDisabled(t *testing.T) {
	if budget := newFrameBudget(RateLimitConfig{Burst: 0, RefillInterval: time.Second}); budget != nil {
		t.Error("Expected zero burst to disable the limiter")
	}
	var disabled *frameBudget
	if !disabled.admit() {
		t.Error("Expected disabled limiter to admit everything")
	}
	if disabled.String() != "unlimited" {
		t.Errorf("Unexpected description %q", disabled.String())
	}
}

// TestFrameBudgetRefill drives the bucket with a fixed clock: the burst is
// spent, half the interval restores half the burst, and refills never
// exceed the burst.
func TestFrameBudgetRefill(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	budget := newFrameBudget(RateLimitConfig{Burst: 4, RefillInterval: 2 * time.Second})
	budget.now = func() time.Time { return clock }
	budget.updated = clock

	for i := 0; i < 4; i++ {
		if !budget.admit() {
			t.Fatalf("Expected frame %d of the burst to be admitted", i)
		}
	}
	if budget.admit() {
		t.Fatal("Expected frame beyond the burst to be refused")
	}

	clock = clock.Add(time.Second)
	admitted := 0
	for budget.admit() {
		admitted++
	}
	if admitted != 2 {
		t.Errorf("Expected 2 frames after half an interval, got %d", admitted)
	}

	clock = clock.Add(time.Hour)
	admitted = 0
	for budget.admit() {
		admitted++
	}
	if admitted != 4 {
		t.Errorf("Expected refill capped at burst 4, got %d", admitted)
	}

	if got := budget.String(); got != "4 frames per 2s" {
		t.Errorf("Unexpected description %q", got)
	}
}

func TestFrameBudgetDefaultsInterval(t *testing.T) {
	budget := newFrameBudget(RateLimitConfig{Burst: 10})
	if budget.cfg.RefillInterval != time.Second {
		t.Errorf("Expected default refill interval 1s, got %s", budget.cfg.RefillInterval)
	}
}
