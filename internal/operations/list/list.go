package list

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/gateway"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3concat/s3types"
)

// Lister is the listing half of gateway.Gateway.
type Lister interface {
	ListObjects(ctx context.Context, bucket, prefix, token string) (*gateway.Page, error)
}

// Step is the outcome of one pagination step.
type Step struct {
	// Objects are the entries of the fetched page
	Objects []s3types.Object

	// Exhausted is true once no further page exists
	Exhausted bool
}

// Paginator fetches pages sequentially.
type Paginator struct {
	lister Lister
	bucket string
	prefix string
	token  string
	seen   map[string]struct{}
	done   bool
	pages  int
}

// NewPaginator creates a paginator over bucket/prefix.
func NewPaginator(lister Lister, bucket, prefix string) *Paginator {
	return &Paginator{
		lister: lister,
		bucket: bucket,
		prefix: prefix,
		seen:   make(map[string]struct{}),
	}
}

// HasMorePages returns true until the listing is exhausted or has failed.
func (p *Paginator) HasMorePages() bool {
	return !p.done
}

// Pages returns the number of pages fetched so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// Next fetches the next page. After exhaustion or an error it returns an
// exhausted step without calling the backend.
func (p *Paginator) Next(ctx context.Context) (Step, error) {
	if p.done {
		return Step{Exhausted: true}, nil
	}

	page, err := p.lister.ListObjects(ctx, p.bucket, p.prefix, p.token)
	if err != nil {
		p.done = true
		return Step{}, err
	}
	p.pages++

	step := Step{Objects: page.Objects}

	switch next := page.NextToken; {
	case next == "":
		p.done = true
		step.Exhausted = true
	case p.isRepeat(next):
		p.done = true
		return Step{}, errors.NewTransportError("listObjects", p.bucket, "", errors.ErrDuplicateToken).
			WithMessage("token " + next)
	default:
		p.seen[next] = struct{}{}
		p.token = next
	}

	return step, nil
}

func (p *Paginator) isRepeat(token string) bool {
	if token == p.token {
		return true
	}
	_, ok := p.seen[token]
	return ok
}

// Walk calls fn for every listed object in listing order and stops at the
// first error from the backend or from fn. It returns the number of objects
// visited.
func (p *Paginator) Walk(ctx context.Context, fn func(s3types.Object) error) (int, error) {
	visited := 0
	for p.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return visited, err
		}

		step, err := p.Next(ctx)
		if err != nil {
			return visited, err
		}

		for _, obj := range step.Objects {
			visited++
			if err := fn(obj); err != nil {
				p.done = true
				return visited, err
			}
		}
	}
	return visited, nil
}
