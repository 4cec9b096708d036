package refgen

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(g *Generator, t time.Time) {
	g.now = func() time.Time { return t }
}

func TestGeneratorFormat(t *testing.T) {
	gen := New(nil, nil)
	fixedClock(gen, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))

	ref, err := gen.Next(context.Background(), "REF")
	require.NoError(t, err)
	require.Equal(t, "REF-20250314-0001", ref)

	ref, err = gen.Next(context.Background(), "REF")
	require.NoError(t, err)
	require.Equal(t, "REF-20250314-0002", ref)

	require.Regexp(t, regexp.MustCompile(`^REF-\d{8}-\d{4}$`), ref)
}

func TestGeneratorPrefixesIsolated(t *testing.T) {
	gen := New(nil, nil)
	fixedClock(gen, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))

	ref, err := gen.Next(context.Background(), "TRV")
	require.NoError(t, err)
	require.Equal(t, "TRV-20250314-0001", ref)

	ref, err = gen.Next(context.Background(), "VAP")
	require.NoError(t, err)
	require.Equal(t, "VAP-20250314-0001", ref)
}

func TestGeneratorDailyReset(t *testing.T) {
	gen := New(nil, nil)
	fixedClock(gen, time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC))

	_, err := gen.Next(context.Background(), "REF")
	require.NoError(t, err)

	fixedClock(gen, time.Date(2025, 3, 15, 0, 1, 0, 0, time.UTC))
	ref, err := gen.Next(context.Background(), "REF")
	require.NoError(t, err)
	require.Equal(t, "REF-20250315-0001", ref)
}

func TestGeneratorConcurrentUnique(t *testing.T) {
	gen := New(nil, nil)
	fixedClock(gen, time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))

	const workers = 50
	refs := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, _ := gen.Next(context.Background(), "REF")
			refs <- ref
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[string]struct{}, workers)
	for ref := range refs {
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
	require.Len(t, seen, workers)
}
