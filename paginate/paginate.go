// Package paginate flattens a cursor-paginated operation into a single
// slice, issuing successive calls with the continuation token from each
// response until the service reports none remain.
package paginate

import (
	"context"

	"github.com/ethanadams/awscore/awserr"
)

// CallFunc issues one page request given the previous page's
// continuation token (empty for the first call) and returns the
// decoded output.
type CallFunc[Out any] func(ctx context.Context, token string) (Out, error)

// Page describes how to extract items and the next token from one
// page's output.
type Page[Out, Item any] struct {
	Items     func(Out) []Item
	NextToken func(Out) string
}

// Run drives CallFunc until NextToken returns empty, returning the
// concatenation of every page's items in order. If maxPages pages have
// been fetched and a token still remains, it returns the items gathered
// so far together with an awserr.PaginationLimit error. maxPages <= 0
// means unlimited.
func Run[Out, Item any](ctx context.Context, call CallFunc[Out], page Page[Out, Item], maxPages int) ([]Item, error) {
	var all []Item
	token := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return all, awserr.Cancelled.Wrap(err)
		}

		out, err := call(ctx, token)
		if err != nil {
			return all, err
		}

		all = append(all, page.Items(out)...)
		pages++

		token = page.NextToken(out)
		if token == "" {
			return all, nil
		}
		if maxPages > 0 && pages >= maxPages {
			return all, awserr.PaginationLimit.New("reached max pages (%d) before pagination completed", maxPages)
		}
	}
}
