package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.LoginURL != "/auth/login/" {
		t.Fatalf("unexpected login url: %s", cfg.LoginURL)
	}
	if cfg.IndexCacheTTL != 20*time.Second {
		t.Fatalf("expected 20s index cache ttl, got %v", cfg.IndexCacheTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("INDEX_CACHE_TTL", "45s")
	t.Setenv("AWS_BUCKET_NAME", "yatube-media")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.IndexCacheTTL != 45*time.Second {
		t.Fatalf("expected override ttl, got %v", cfg.IndexCacheTTL)
	}
	if cfg.AWSBucket != "yatube-media" {
		t.Fatalf("expected override bucket")
	}
}

func TestBrokers(t *testing.T) {
	cfg := Config{KafkaBrokers: "kafka-1:9092, ,kafka-2:9092"}
	brokers := cfg.Brokers()
	if len(brokers) != 2 || brokers[0] != "kafka-1:9092" || brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", brokers)
	}
	if len(Config{}.Brokers()) != 0 {
		t.Fatalf("expected no brokers")
	}
}

func TestLoadReportsUndecodableTTL(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	t.Setenv("INDEX_CACHE_TTL", "20")
	t.Setenv("SERVER_PORT", ":9001")

	cfg := Load()
	if cfg.IndexCacheTTL != 20*time.Second {
		t.Fatalf("expected fallback ttl, got %v", cfg.IndexCacheTTL)
	}
	if cfg.ServerPort != ":9001" {
		t.Fatalf("other keys must still load, got %q", cfg.ServerPort)
	}

	var errorLogged bool
	for _, e := range hook.AllEntries() {
		if e.Level == log.ErrorLevel {
			errorLogged = true
		}
	}
	if !errorLogged {
		t.Fatalf("expected decode error to be logged")
	}
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("INDEX_CACHE_TTL", "-5s")

	if cfg := Load(); cfg.IndexCacheTTL != 20*time.Second {
		t.Fatalf("expected fallback ttl, got %v", cfg.IndexCacheTTL)
	}
}
