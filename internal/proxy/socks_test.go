package proxy

import (
	"testing"
	"time"
)

func TestNewSocksClientDirect(t *testing.T) {
	t.Parallel()

	c, err := NewSocksClient("", 0)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if c.Transport != nil || c.Timeout != 120*time.Second {
		t.Fatalf("unexpected direct client %+v", c)
	}
}

func TestNewSocksClientProxied(t *testing.T) {
	t.Parallel()

	c, err := NewSocksClient("127.0.0.1:1080", 5*time.Second)
	if err != nil {
		t.Fatalf("proxied: %v", err)
	}
	if c.Transport == nil || c.Timeout != 5*time.Second {
		t.Fatalf("unexpected proxied client %+v", c)
	}
}
