package metastore

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestRepoUpsertAndBuildClientR1(t *testing.T) {
	db := testDB(t)
	tx := testTx(t, db)
	repo := New(tx, testCipher(t))
	ctx := context.Background()

	userID := uuid.New()
	c := &Controller{
		UserID:   userID,
		Name:     "hq-r1",
		Family:   FamilyR1,
		R1TenantID: "tenant-123",
		R1Region:   "us-east",
	}
	if err := repo.UpsertController(ctx, c, "client-id-abc", "shared-token-xyz", "", ""); err != nil {
		t.Fatalf("UpsertController: %v", err)
	}

	got, err := repo.GetController(ctx, userID, c.ID)
	if err != nil {
		t.Fatalf("GetController: %v", err)
	}
	if got.Family != FamilyR1 {
		t.Errorf("got family %q, want r1", got.Family)
	}

	client, err := repo.BuildClient(ctx, userID, c.ID)
	if err != nil {
		t.Fatalf("BuildClient: %v", err)
	}
	if client.Family() != "r1" {
		t.Errorf("got client family %q, want r1", client.Family())
	}
}

func TestRepoUpsertAndBuildClientSZ(t *testing.T) {
	db := testDB(t)
	tx := testTx(t, db)
	repo := New(tx, testCipher(t))
	ctx := context.Background()

	userID := uuid.New()
	c := &Controller{
		UserID:     userID,
		Name:       "branch-sz",
		Family:     FamilySZ,
		SZHost:     "sz.branch.internal",
		SZPort:     8443,
		SZUseHTTPS: true,
	}
	if err := repo.UpsertController(ctx, c, "", "", "admin", "hunter2"); err != nil {
		t.Fatalf("UpsertController: %v", err)
	}

	client, err := repo.BuildClient(ctx, userID, c.ID)
	if err != nil {
		t.Fatalf("BuildClient: %v", err)
	}
	if client.Family() != "sz" {
		t.Errorf("got client family %q, want sz", client.Family())
	}
}

func TestGetControllerWrongUserNotFound(t *testing.T) {
	db := testDB(t)
	tx := testTx(t, db)
	repo := New(tx, testCipher(t))
	ctx := context.Background()

	owner := uuid.New()
	c := &Controller{UserID: owner, Name: "mine", Family: FamilyR1}
	if err := repo.UpsertController(ctx, c, "id", "token", "", ""); err != nil {
		t.Fatalf("UpsertController: %v", err)
	}

	if _, err := repo.GetController(ctx, uuid.New(), c.ID); err == nil {
		t.Fatal("expected error looking up another user's controller")
	}
}
