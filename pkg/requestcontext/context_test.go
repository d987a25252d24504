package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallerRoundTrip(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCaller(context.Background(), Caller{Subject: "ops@lender-a", RealmID: "lender-a"})
	caller, ok := CallerFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ops@lender-a", caller.Subject)
	assert.EqualValues(t, "lender-a", caller.RealmID)
}

func TestNowPrefersInjectedTime(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
	assert.Empty(t, RequestID(context.Background()))
}
