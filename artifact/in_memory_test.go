package artifact

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentflow/core"
)

// Interface compliance (compile-time assertion)
var _ core.ArtifactService = (*InMemoryService)(nil)

func TestInMemoryService_SaveReturnsVersions(t *testing.T) {
	svc := NewInMemoryService()

	v1, err := svc.Save("s1", "report", []byte("draft"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	v2, _ := svc.Save("s1", "report", []byte("final"))
	if v2 != 2 {
		t.Fatalf("expected version 2, got %d", v2)
	}

	latest, err := svc.Get("s1", "report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(latest) != "final" {
		t.Fatalf("expected latest version, got %q", string(latest))
	}

	old, err := svc.GetVersion("s1", "report", 1)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if string(old) != "draft" {
		t.Fatalf("expected version 1 content, got %q", string(old))
	}

	if _, err := svc.GetVersion("s1", "report", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing version, got %v", err)
	}
}

func TestInMemoryService_SaveGetIsolation(t *testing.T) {
	svc := NewInMemoryService()
	data := []byte("hello")
	if _, err := svc.Save("s1", "a1", data); err != nil {
		t.Fatalf("save: %v", err)
	}
	// mutate original slice
	data[0] = 'H'
	out, err := svc.Get("s1", "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out) != "hello" { // should not reflect mutation
		t.Fatalf("expected 'hello', got %q", string(out))
	}
	// mutate returned slice
	out[0] = 'x'
	out2, _ := svc.Get("s1", "a1")
	if string(out2) != "hello" {
		t.Fatalf("expected isolation, got %q", string(out2))
	}
}

func TestInMemoryService_ListAndDelete(t *testing.T) {
	svc := NewInMemoryService()
	if _, err := svc.Save("s1", "a1", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Save("s1", "a2", []byte("2")); err != nil {
		t.Fatal(err)
	}
	names, err := svc.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	if err := svc.Delete("s1", "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get("s1", "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted artifact, got %v", err)
	}
	names, _ = svc.List("s1")
	if len(names) != 1 {
		t.Fatalf("expected 1 name after delete, got %d", len(names))
	}
}

func TestInMemoryService_Concurrency(t *testing.T) {
	svc := NewInMemoryService()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := i % 10
			if _, err := svc.Save("s1", fmt.Sprintf("a%d", id), []byte("data")); err != nil {
				t.Errorf("save err: %v", err)
			}
			_, _ = svc.List("s1")
		}()
	}
	wg.Wait()
	names, err := svc.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 10 {
		t.Fatalf("expected 10 artifacts, got %d", len(names))
	}
}
