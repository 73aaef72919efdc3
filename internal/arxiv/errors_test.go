package arxiv

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("loading: %w", Errorf(KindNotFound, "hub.fetch", "no such shard"))

	if !IsNotFound(err) {
		t.Error("IsNotFound() = false for wrapped not_found error")
	}
	if IsTransient(err) {
		t.Error("IsTransient() = true for not_found error")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf() = %s, want not_found", KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindInternal},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), KindCanceled},
		{"model", Wrap(KindModel, "embed", errors.New("ollama down")), KindModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Wrap(KindCorruptCache, "partition.load", errors.New("bad footer"))
	if got := err.Error(); got != "partition.load: bad footer" {
		t.Errorf("Error() = %q", got)
	}
	if Wrap(KindModel, "x", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestPaper_EmbeddingText(t *testing.T) {
	p := Paper{Title: "Title only"}
	if p.EmbeddingText() != "Title only" {
		t.Errorf("EmbeddingText() = %q, want title fallback", p.EmbeddingText())
	}

	long := make([]rune, MaxTextLength+10)
	for i := range long {
		long[i] = 'a'
	}
	p = Paper{Abstract: string(long)}
	if n := len([]rune(p.EmbeddingText())); n != MaxTextLength {
		t.Errorf("EmbeddingText() length = %d, want %d", n, MaxTextLength)
	}
}
