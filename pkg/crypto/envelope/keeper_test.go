package envelope

import (
	"context"
	"errors"
	"testing"
)

func newTestKeeper(t *testing.T) (*Keeper, *MemoryKeyStore) {
	t.Helper()
	cipher, err := NewCipher(testMasterKeyHex)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	store := NewMemoryKeyStore()
	return NewKeeper(cipher, store), store
}

func TestKeeper_LazyKeyCreation(t *testing.T) {
	keeper, store := newTestKeeper(t)
	ctx := context.Background()

	rec, err := store.Get(ctx, "user-1")
	if err != nil || rec != nil {
		t.Fatalf("expected no record before first use, got rec=%v err=%v", rec, err)
	}

	key1, err := keeper.ContentKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("ContentKey: %v", err)
	}

	rec, err = store.Get(ctx, "user-1")
	if err != nil || rec == nil {
		t.Fatalf("expected wrapped key record after first use, got rec=%v err=%v", rec, err)
	}
	if !LooksEncrypted(rec.WrappedKey) {
		t.Error("stored wrapped key is not in canonical encrypted form")
	}

	// Second call unwraps the stored key rather than generating a new one.
	key2, err := keeper.ContentKey(ctx, "user-1")
	if err != nil {
		t.Fatalf("ContentKey second call: %v", err)
	}
	if string(key1) != string(key2) {
		t.Error("content key changed between calls")
	}
}

func TestKeeper_ContentRoundTrip(t *testing.T) {
	keeper, _ := newTestKeeper(t)
	ctx := context.Background()

	stored, err := keeper.EncryptContent(ctx, "user-1", []byte("my document"))
	if err != nil {
		t.Fatalf("EncryptContent: %v", err)
	}
	if !LooksEncrypted(stored) {
		t.Error("encrypted content does not match canonical form")
	}

	got, err := keeper.DecryptContent(ctx, "user-1", stored)
	if err != nil {
		t.Fatalf("DecryptContent: %v", err)
	}
	if string(got) != "my document" {
		t.Errorf("got %q", got)
	}
}

func TestKeeper_SubjectIsolation(t *testing.T) {
	keeper, _ := newTestKeeper(t)
	ctx := context.Background()

	stored, err := keeper.EncryptContent(ctx, "subject-b", []byte("b's content"))
	if err != nil {
		t.Fatalf("EncryptContent: %v", err)
	}

	// Unwrap A's key and try it against B's ciphertext directly.
	keyA, err := keeper.ContentKey(ctx, "subject-a")
	if err != nil {
		t.Fatalf("ContentKey: %v", err)
	}
	ct, err := Parse(stored)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if _, err := Decrypt(ct, keyA); !errors.Is(err, ErrIntegrity) {
		t.Errorf("cross-subject decryption: want ErrIntegrity, got %v", err)
	}
}

func TestKeeper_DecryptBatch_IsolatesFailures(t *testing.T) {
	keeper, _ := newTestKeeper(t)
	ctx := context.Background()

	good, err := keeper.EncryptContent(ctx, "user-1", []byte("decryptable"))
	if err != nil {
		t.Fatalf("EncryptContent: %v", err)
	}

	// Corrupt ciphertext that still matches the heuristic.
	corrupt, err := keeper.EncryptContent(ctx, "user-1", []byte("will be corrupted"))
	if err != nil {
		t.Fatalf("EncryptContent: %v", err)
	}
	corruptCt, _ := Parse(corrupt)
	corruptCt.Data = append([]byte(nil), corruptCt.Data...)
	corruptCt.Data[0] ^= 0xff
	corrupt = corruptCt.String()

	legacy := "a plain legacy row that predates encryption"

	values := []string{good, corrupt, legacy}
	out := keeper.DecryptBatch(ctx, "user-1", values)

	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if out[0] != "decryptable" {
		t.Errorf("good row: got %q", out[0])
	}
	if out[1] != corrupt {
		t.Error("corrupt row should be returned unmodified")
	}
	if out[2] != legacy {
		t.Error("legacy row should be returned unmodified")
	}
}

func TestKeeper_DeleteKey(t *testing.T) {
	keeper, store := newTestKeeper(t)
	ctx := context.Background()

	if _, err := keeper.ContentKey(ctx, "user-1"); err != nil {
		t.Fatalf("ContentKey: %v", err)
	}
	if err := keeper.DeleteKey(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	rec, err := store.Get(ctx, "user-1")
	if err != nil || rec != nil {
		t.Fatalf("expected record gone, got rec=%v err=%v", rec, err)
	}
}
