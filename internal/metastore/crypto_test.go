package metastore

import "testing"

func TestCipherRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	sealed, err := c.Seal("super-secret-shared-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(sealed) == 0 {
		t.Fatal("expected non-empty ciphertext")
	}

	plain, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "super-secret-shared-token" {
		t.Errorf("got %q, want original plaintext", plain)
	}
}

func TestCipherOpenWrongKeyFails(t *testing.T) {
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	key2[0] = 1

	c1, _ := NewCipher(key1)
	c2, _ := NewCipher(key2)

	sealed, err := c1.Seal("value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := c2.Open(sealed); err == nil {
		t.Fatal("expected decryption with wrong key to fail")
	}
}

func TestNewCipherRejectsWrongKeyLength(t *testing.T) {
	if _, err := NewCipher([]byte("too-short")); err == nil {
		t.Fatal("expected error for non-32-byte key")
	}
}
