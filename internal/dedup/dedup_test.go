package dedup

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dedup.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsNewFeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	isNew, err := s.IsNewFeed(ctx, "#chan", "feed1")
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Fatal("expected new feed to report true")
	}

	if err := s.InsertPosted(ctx, "#chan", "feed1", []string{"https://example.org/a"}); err != nil {
		t.Fatal(err)
	}

	isNew, err = s.IsNewFeed(ctx, "#chan", "feed1")
	if err != nil {
		t.Fatal(err)
	}
	if isNew {
		t.Fatal("expected feed with rows to report false")
	}
}

func TestSelectUnpostedForFeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	urls := []string{"https://example.org/a", "https://example.org/b", "https://example.org/c"}
	if err := s.InsertPosted(ctx, "#chan", "feed1", []string{urls[0]}); err != nil {
		t.Fatal(err)
	}

	unposted, err := s.SelectUnpostedForFeed(ctx, "#chan", "feed1", urls)
	if err != nil {
		t.Fatal(err)
	}
	if len(unposted) != 2 || unposted[0] != urls[1] || unposted[1] != urls[2] {
		t.Fatalf("unposted = %v", unposted)
	}
}

func TestSelectUnpostedForChannel_CrossFeedScope(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	shared := "https://example.org/shared"
	if err := s.InsertPosted(ctx, "#chan", "feedA", []string{shared}); err != nil {
		t.Fatal(err)
	}

	unposted, err := s.SelectUnpostedForChannel(ctx, "#chan", []string{shared, "https://example.org/new"})
	if err != nil {
		t.Fatal(err)
	}
	if len(unposted) != 1 || unposted[0] != "https://example.org/new" {
		t.Fatalf("unposted = %v, want only the unposted url", unposted)
	}
}

func TestInsertPosted_IdempotentOnReplay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	urls := []string{"https://example.org/a", "https://example.org/b"}
	if err := s.InsertPosted(ctx, "#chan", "feed1", urls); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertPosted(ctx, "#chan", "feed1", urls); err != nil {
		t.Fatalf("replay insert should be a no-op, got error: %v", err)
	}

	unposted, err := s.SelectUnpostedForFeed(ctx, "#chan", "feed1", urls)
	if err != nil {
		t.Fatal(err)
	}
	if len(unposted) != 0 {
		t.Fatalf("unposted = %v, want empty after replay", unposted)
	}
}
