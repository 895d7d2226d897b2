package cache

import "fmt"

// New builds the configured Backend, mirroring the Python get_cache()
// singleton factory's switch on CACHE_BACKEND.
func New(backend string, maxSize int, redisURL, keyPrefix string) (Backend, error) {
	switch backend {
	case "", "memory":
		return NewLRU(maxSize), nil
	case "redis":
		return NewRedis(redisURL, keyPrefix)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", backend)
	}
}
