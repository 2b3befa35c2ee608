package rate

import "errors"

// ErrRateLimited reports a denied hit from [Limiter.Check].
var ErrRateLimited = errors.New("rate: limit exceeded")

// ErrRedisUnavailable wraps failures talking to the counter backend.
var ErrRedisUnavailable = errors.New("rate: counter backend unavailable")

// ErrUnknownPolicy is returned for a policy name with no configuration.
var ErrUnknownPolicy = errors.New("rate: unknown policy")
