package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}

	// Deterministic: same inputs, same signature.
	if Sign(secret, payload) != got {
		t.Error("Sign() is not deterministic")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"lead.captured"}`)
	sig := Sign("s1", payload)

	if !Verify("s1", payload, sig) {
		t.Error("Verify rejected a valid signature")
	}
	if Verify("s2", payload, sig) {
		t.Error("Verify accepted a signature made with a different secret")
	}
	if Verify("s1", []byte("tampered"), sig) {
		t.Error("Verify accepted a tampered payload")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(a) != 64 { // 32 bytes hex-encoded
		t.Errorf("Expected 64 hex chars, got %d", len(a))
	}

	b, _ := GenerateSecret()
	if a == b {
		t.Error("Expected distinct secrets")
	}
}
