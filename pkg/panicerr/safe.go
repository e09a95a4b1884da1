package panicerr

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/kazz187/adotask/pkg/cerr"
)

// SafeCall runs fn and turns a panic raised inside it into an Internal error.
// The recovered stack is kept as the underlying error.
func SafeCall[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var (
		catcher panics.Catcher
		result  T
		err     error
	)
	catcher.Try(func() {
		result, err = fn(ctx)
	})
	if r := catcher.Recovered(); r != nil {
		var zero T
		return zero, cerr.NewError(cerr.Internal, fmt.Sprintf("panic: %v", r.Value), r.AsError())
	}
	return result, err
}
