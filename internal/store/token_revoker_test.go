package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryTokenRevoker(t *testing.T) {
	r := NewMemoryTokenRevoker()
	if revoked, err := r.IsRevoked("jti-1"); err != nil || revoked {
		t.Fatalf("unknown token: revoked=%v err=%v", revoked, err)
	}
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, err := r.IsRevoked("jti-1"); err != nil || !revoked {
		t.Fatalf("expected revoked, got revoked=%v err=%v", revoked, err)
	}
	// non-positive TTL means the token is already expired; nothing to track
	if err := r.Revoke("jti-2", 0); err != nil {
		t.Fatalf("revoke zero ttl: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-2"); revoked {
		t.Fatalf("zero-ttl revoke should be a no-op")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	srv := miniredis.RunT(t)
	r := NewRedisTokenRevoker(srv.Addr(), "")
	if err := r.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, err := r.IsRevoked("jti-1"); err != nil || !revoked {
		t.Fatalf("expected revoked, got revoked=%v err=%v", revoked, err)
	}
	// entries expire with the token
	srv.FastForward(2 * time.Minute)
	if revoked, err := r.IsRevoked("jti-1"); err != nil || revoked {
		t.Fatalf("expected expiry to clear denylist entry, revoked=%v err=%v", revoked, err)
	}
}
