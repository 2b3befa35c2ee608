// Package rate implements the distributed request limiter: named policies, key-generation
// strategies, and a Redis-backed fixed-TTL window counter.
//
// # Window semantics
//
// Each (policy, key) pair maps to one Redis counter, "rl:<policy>:<key>". A Lua script
// increments the counter, attaches the policy window as a TTL on the first hit (and repairs a
// missing TTL), and returns the count with the remaining TTL in one round trip, so concurrent
// increments from many instances never undercount.
//
// The Nth hit inside a window is admitted and the (N+1)th is denied, where N is the policy
// limit. Denied hits still increment the counter.
//
// # Bypass
//
// The limiter asks its Bypass function on every call. It never caches the answer.
package rate
