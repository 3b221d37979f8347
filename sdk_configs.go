package flagcore

import (
	"strconv"
	"sync"

	"github.com/flagcore/go-sdk/internal/evaluation"
)

// sdkConfigs holds the server-controlled runtime flags and tuning values
// shipped alongside a ruleset download (sampling rates, rollout toggles).
// Values are swapped wholesale on every successful sync; readers never see
// a torn mix of an old and new set.
type sdkConfigs struct {
	flags   map[string]bool
	configs map[string]interface{}
	mu      sync.RWMutex
}

func newSDKConfigs() *sdkConfigs {
	return &sdkConfigs{flags: make(map[string]bool), configs: make(map[string]interface{})}
}

func (s *sdkConfigs) setFlags(newFlags map[string]bool) {
	s.mu.Lock()
	s.flags = newFlags
	s.mu.Unlock()
}

func (s *sdkConfigs) setConfigs(newConfigs map[string]interface{}) {
	s.mu.Lock()
	s.configs = newConfigs
	s.mu.Unlock()
}

func (s *sdkConfigs) on(key string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, exists := s.flags[key]
	return val, exists
}

func (s *sdkConfigs) configNumValue(config string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.configs[config]
	if !exists {
		return 0, false
	}
	return evaluation.ToFloat(value)
}

func (s *sdkConfigs) configIntValue(config string) (int, bool) {
	f, ok := s.configNumValue(config)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (s *sdkConfigs) configStrValue(config string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.configs[config]
	if !exists {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
