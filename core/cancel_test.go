package core

import (
	"sync"
	"testing"
)

func TestCancelToken_Broadcast(t *testing.T) {
	token := NewCancelToken()
	if token.Cancelled() {
		t.Fatal("fresh token should not be cancelled")
	}

	// Many readers, one writer.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-token.Done()
		}()
	}

	token.Cancel()
	wg.Wait()

	if !token.Cancelled() {
		t.Fatal("token should report cancelled")
	}
}

func TestCancelToken_CancelIsIdempotent(t *testing.T) {
	token := NewCancelToken()
	token.Cancel()
	token.Cancel() // must not panic on double close
	if !token.Cancelled() {
		t.Fatal("token should remain cancelled")
	}
}
