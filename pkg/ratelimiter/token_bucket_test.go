package ratelimiter

import "testing"

func TestTokenBucketBurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(0.001, 3) // negligible refill within the test

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d denied within burst capacity", i)
		}
	}
	if tb.Allow() {
		t.Error("request allowed past an empty bucket")
	}
}

func TestTokenBucketImplementsRateLimiter(t *testing.T) {
	var _ RateLimiter = NewTokenBucket(1, 1)
}
