package snapshot

import "errors"

// Sentinel errors for snapshot cache operations
var (
	// ErrCacheDisabled is returned when attempting operations on a disabled cache
	ErrCacheDisabled = errors.New("snapshot cache is disabled")

	// ErrClientNotInitialized is returned when the Redis client is nil
	ErrClientNotInitialized = errors.New("redis client not initialized")

	// ErrConnectionFailed is returned when the Redis connection cannot be established
	ErrConnectionFailed = errors.New("redis connection failed")

	// ErrCodec is returned when snapshot encoding or decoding fails
	ErrCodec = errors.New("snapshot codec failed")
)

// IsCacheDisabled checks if an error is ErrCacheDisabled
func IsCacheDisabled(err error) bool {
	return errors.Is(err, ErrCacheDisabled)
}

// IsConnectionFailed checks if an error is ErrConnectionFailed
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsCodec checks if an error is ErrCodec
func IsCodec(err error) bool {
	return errors.Is(err, ErrCodec)
}
