package websocket

import (
	"sync"
)

var (
	instance *Client
	once     sync.Once
)

// GetClient returns the process-wide relay client, created from the first
// config passed in.
func GetClient(config ...Config) *Client {
	once.Do(func() {
		cfg := DefaultConfig()
		if len(config) > 0 {
			cfg = config[0]
		}
		instance = NewClient(cfg)
	})
	return instance
}
