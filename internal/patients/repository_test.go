package patients

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestInMemoryCreateIsIdempotentPerPhone(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, created, err := repo.Create(ctx, "+212600000010", "")
	if err != nil || !created {
		t.Fatalf("expected creation, got created=%v err=%v", created, err)
	}
	second, created, err := repo.Create(ctx, "+212600000010", "Salma")
	if err != nil || created {
		t.Fatalf("expected existing row, got created=%v err=%v", created, err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same patient id")
	}
	if second.Name != "Salma" {
		t.Fatalf("expected missing name to be filled, got %q", second.Name)
	}
	if repo.Count() != 1 {
		t.Fatalf("expected one patient, got %d", repo.Count())
	}
}

func TestInMemoryConcurrentCreateYieldsOnePatient(t *testing.T) {
	repo := NewInMemoryRepository()
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repo.Create(context.Background(), "+212600000011", "")
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if createdCount != 1 {
		t.Fatalf("expected exactly one creation, got %d", createdCount)
	}
}

func TestInMemoryUpdateDetectsStaleVersion(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	p, _, _ := repo.Create(ctx, "+212600000012", "")

	a := p.Clone()
	b := p.Clone()
	a.State = StateServiceSelection
	a.Language = LanguageFrench
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	b.State = StateGeneralConversation
	if err := repo.Update(ctx, b); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}

	stored, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != StateServiceSelection || stored.Version != a.Version {
		t.Fatalf("unexpected stored patient %+v", stored)
	}
}

func TestParseLanguage(t *testing.T) {
	if l, ok := ParseLanguage("fr"); !ok || l != LanguageFrench {
		t.Fatalf("expected french, got %v %v", l, ok)
	}
	if l, ok := ParseLanguage("ARABIC"); !ok || l != LanguageArabic {
		t.Fatalf("expected arabic, got %v %v", l, ok)
	}
	if _, ok := ParseLanguage("en"); ok {
		t.Fatalf("expected unsupported language")
	}
}
