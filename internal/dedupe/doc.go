// Package dedupe provides a bounded TTL cache for recognizing repeats.
//
// The push-fallback channel replays recent notifications after every
// reconnect; the cache lets the client announce each reply once.
package dedupe
