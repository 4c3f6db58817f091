package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testContext returns a context that is cancelled when the test ends
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// writeAddressBook stores doc as an address book file in a temp dir
func writeAddressBook(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write address book: %v", err)
	}
	return path
}
