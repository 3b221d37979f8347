package flagcore

// User carries the attributes used to evaluate gates, dynamic configs,
// experiments, and layers.
//
// UserID is required unless at least one CustomIDs entry is supplied — see
// Client.verifyUser. PrivateAttributes participate in targeting but are
// stripped before any exposure or bootstrap payload is emitted.
type User struct {
	UserID             string                 `json:"userID"`
	Email              string                 `json:"email"`
	IpAddress          string                 `json:"ip"`
	UserAgent          string                 `json:"userAgent"`
	Country            string                 `json:"country"`
	Locale             string                 `json:"locale"`
	AppVersion         string                 `json:"appVersion"`
	Custom             map[string]interface{} `json:"custom"`
	PrivateAttributes  map[string]interface{} `json:"privateAttributes"`
	StatsigEnvironment map[string]string      `json:"statsigEnvironment"`
	CustomIDs          map[string]string      `json:"customIDs"`
}

// Event is a custom analytics event submitted via Client.LogEvent.
type Event struct {
	EventName string            `json:"eventName"`
	User      User              `json:"user"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata"`
	Time      int64             `json:"time"`
}

// SecondaryExposure records a nested gate check consulted while evaluating
// another spec (gate-in-gate, or a delegated experiment).
type SecondaryExposure struct {
	Gate      string `json:"gate"`
	GateValue string `json:"gateValue"`
	RuleID    string `json:"ruleID"`
}

func (s SecondaryExposure) key() string {
	return s.Gate + "|" + s.GateValue + "|" + s.RuleID
}

// dedupeExposures drops any exposure whose gate name begins with "segment:"
// and removes duplicate (gate, gateValue, ruleID) triples, keeping the first
// occurrence of each. Only called at evaluator/projection boundaries that
// the host observes — internal accumulation passes raw exposures through so
// ordering context is preserved for delegation.
func dedupeExposures(exposures []SecondaryExposure) []SecondaryExposure {
	if len(exposures) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(exposures))
	out := make([]SecondaryExposure, 0, len(exposures))
	for _, e := range exposures {
		if len(e.Gate) >= 8 && e.Gate[:8] == "segment:" {
			continue
		}
		k := e.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

type configBase struct {
	Name        string
	Value       map[string]interface{}
	RuleID      string
	GroupName   string
	logExposure func(name string, parameterName string)
}

// DynamicConfig is the evaluated value of a dynamic config or experiment.
type DynamicConfig struct{ configBase }

// Layer is the evaluated value of a layer, possibly delegated to an
// experiment.
type Layer struct{ configBase }

// NewConfig builds a DynamicConfig.
func NewConfig(name string, value map[string]interface{}, ruleID string, groupName string) *DynamicConfig {
	if value == nil {
		value = make(map[string]interface{})
	}
	return &DynamicConfig{configBase{Name: name, Value: value, RuleID: ruleID, GroupName: groupName}}
}

// NewLayer builds a Layer. logExposure, if non-nil, fires each time a
// parameter is found through one of the Get* accessors.
func NewLayer(name string, value map[string]interface{}, ruleID string, groupName string, logExposure func(name, parameterName string)) *Layer {
	if value == nil {
		value = make(map[string]interface{})
	}
	return &Layer{configBase{Name: name, Value: value, RuleID: ruleID, GroupName: groupName, logExposure: logExposure}}
}

// GetString returns the string at key, or fallback if absent/wrong type.
func (d *configBase) GetString(key string, fallback string) string {
	if v, ok := d.Value[key].(string); ok {
		d.markExposed(key)
		return v
	}
	return fallback
}

// GetNumber returns the float64 at key, or fallback if absent/wrong type.
func (d *configBase) GetNumber(key string, fallback float64) float64 {
	if v, ok := d.Value[key].(float64); ok {
		d.markExposed(key)
		return v
	}
	return fallback
}

// GetBool returns the bool at key, or fallback if absent/wrong type.
func (d *configBase) GetBool(key string, fallback bool) bool {
	if v, ok := d.Value[key].(bool); ok {
		d.markExposed(key)
		return v
	}
	return fallback
}

// GetSlice returns the slice at key, or fallback if absent/wrong type.
func (d *configBase) GetSlice(key string, fallback []interface{}) []interface{} {
	if v, ok := d.Value[key].([]interface{}); ok {
		d.markExposed(key)
		return v
	}
	return fallback
}

// GetMap returns the map at key, or fallback if absent/wrong type.
func (d *configBase) GetMap(key string, fallback map[string]interface{}) map[string]interface{} {
	if v, ok := d.Value[key].(map[string]interface{}); ok {
		d.markExposed(key)
		return v
	}
	return fallback
}

func (d *configBase) markExposed(parameterName string) {
	if d == nil || d.logExposure == nil {
		return
	}
	d.logExposure(d.Name, parameterName)
}
