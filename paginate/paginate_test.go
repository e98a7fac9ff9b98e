package paginate

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go/ptr"

	"github.com/ethanadams/awscore/awserr"
)

// listOutput stands in for a generated ListXxxOutput: a page of items
// plus an optional continuation token.
type listOutput struct {
	Items     []string
	NextToken *string
}

func itemPage() Page[listOutput, string] {
	return Page[listOutput, string]{
		Items:     func(o listOutput) []string { return o.Items },
		NextToken: func(o listOutput) string { return ptr.ToString(o.NextToken) },
	}
}

func TestRun_StopsWhenNextTokenEmpty(t *testing.T) {
	pages := [][]string{{"a", "b"}, {"c"}, {"d", "e", "f"}}
	calls := 0

	call := func(ctx context.Context, token string) (listOutput, error) {
		out := listOutput{Items: pages[calls]}
		calls++
		if calls < len(pages) {
			out.NextToken = ptr.String("next")
		}
		return out, nil
	}

	items, err := Run(context.Background(), call, itemPage(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a", "b", "c", "d", "e", "f"}
	if len(items) != len(want) {
		t.Fatalf("got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("got %v, want %v", items, want)
		}
	}
	if calls != len(pages) {
		t.Errorf("called %d times, want %d", calls, len(pages))
	}
}

func TestRun_SinglePage(t *testing.T) {
	call := func(ctx context.Context, token string) (listOutput, error) {
		if token != "" {
			t.Fatalf("expected empty token on first call, got %q", token)
		}
		return listOutput{Items: []string{"only"}}, nil
	}

	items, err := Run(context.Background(), call, itemPage(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 1 || items[0] != "only" {
		t.Fatalf("got %v, want [only]", items)
	}
}

func TestRun_MaxPagesExceeded(t *testing.T) {
	call := func(ctx context.Context, token string) (listOutput, error) {
		return listOutput{Items: []string{"x"}, NextToken: ptr.String("more")}, nil
	}

	_, err := Run(context.Background(), call, itemPage(), 2)
	if err == nil {
		t.Fatal("expected PaginationLimit error, got nil")
	}
	if !awserr.PaginationLimit.Has(err) {
		t.Errorf("error %v is not awserr.PaginationLimit", err)
	}
}

func TestRun_PropagatesCallError(t *testing.T) {
	boom := errors.New("boom")
	call := func(ctx context.Context, token string) (listOutput, error) {
		return listOutput{}, boom
	}

	_, err := Run(context.Background(), call, itemPage(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
}

func TestRun_PropagatesPartialResultsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	call := func(ctx context.Context, token string) (listOutput, error) {
		calls++
		if calls == 1 {
			return listOutput{Items: []string{"a"}, NextToken: ptr.String("next")}, nil
		}
		return listOutput{}, boom
	}

	items, err := Run(context.Background(), call, itemPage(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}
	if len(items) != 1 || items[0] != "a" {
		t.Fatalf("expected partial results [a], got %v", items)
	}
}

func TestRun_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	call := func(ctx context.Context, token string) (listOutput, error) {
		t.Fatal("call should not run once context is already cancelled")
		return listOutput{}, nil
	}

	_, err := Run(ctx, call, itemPage(), 0)
	if !awserr.Cancelled.Has(err) {
		t.Errorf("error %v is not awserr.Cancelled", err)
	}
}
