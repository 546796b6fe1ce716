package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type widget struct{ id int64 }

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := NewContainer()
	tok := NewToken[*widget]("test.widget")

	var built atomic.Int64
	RegisterToken(c, tok, func(ServiceRegistry) *widget {
		return &widget{id: built.Add(1)}
	})

	if built.Load() != 0 {
		t.Fatal("factory should not run before first Get")
	}

	var wg sync.WaitGroup
	results := make([]*widget, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	for _, w := range results {
		if w != results[0] {
			t.Fatal("expected the same instance for every Get")
		}
	}
	if built.Load() != 1 {
		t.Errorf("expected one construction, got %d", built.Load())
	}
}

func TestGet_ResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("config", "value")

	tok := NewToken[string]("derived")
	RegisterToken(c, tok, func(sr ServiceRegistry) string {
		return sr.Get("config").(string) + "-derived"
	})

	if got := GetToken(c, tok); got != "value-derived" {
		t.Errorf("got %q", got)
	}
}

func TestGet_UnknownKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown key")
		}
	}()
	NewContainer().Get("missing")
}
