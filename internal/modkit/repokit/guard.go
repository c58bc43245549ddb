package repokit

import (
	"context"
	"fmt"
	"time"
)

// GuardTimeout bounds MustGuard when ctx carries no deadline
const GuardTimeout = 5 * time.Second

// MustGuard checks the store's backends at startup and panics when any is unreachable
func MustGuard(ctx context.Context, st interface{ Guard(context.Context) error }) {
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, GuardTimeout)
		defer cancel()
		ctx = c
	}
	if err := st.Guard(ctx); err != nil {
		panic(fmt.Errorf("startup guard: %w", err))
	}
}
