package flagcore

import "encoding/json"

// ConfigSpec is one gate, dynamic config, experiment, or layer definition as
// served by the catalog sync endpoint.
type ConfigSpec struct {
	Name               string                 `json:"name"`
	Type               string                 `json:"type"`
	Salt               string                 `json:"salt"`
	Enabled            bool                   `json:"enabled"`
	Rules              []ConfigRule           `json:"rules"`
	DefaultValue       json.RawMessage        `json:"defaultValue"`
	DefaultValueJSON   map[string]interface{} `json:"-"`
	IDType             string                 `json:"idType"`
	ExplicitParameters []string               `json:"explicitParameters"`
	Entity             string                 `json:"entity"`
	IsActive           *bool                  `json:"isActive,omitempty"`
	HasSharedParams    *bool                  `json:"hasSharedParams,omitempty"`
	TargetAppIDs       []string               `json:"targetAppIDs,omitempty"`
}

func (c ConfigSpec) hasTargetAppID(appID string) bool {
	if appID == "" || len(c.TargetAppIDs) == 0 {
		return true
	}
	for _, id := range c.TargetAppIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// ConfigRule is one ranked rule within a ConfigSpec: a condition list, a
// bucketing salt/percentage, and either a literal return value or a
// delegate experiment name.
type ConfigRule struct {
	Name              string                 `json:"name"`
	ID                string                 `json:"id"`
	GroupName         string                 `json:"groupName,omitempty"`
	Salt              string                 `json:"salt"`
	PassPercentage    float64                `json:"passPercentage"`
	Conditions        []ConfigCondition      `json:"conditions"`
	ReturnValue       json.RawMessage        `json:"returnValue"`
	ReturnValueJSON   map[string]interface{} `json:"-"`
	IDType            string                 `json:"idType"`
	ConfigDelegate    string                 `json:"configDelegate"`
	IsExperimentGroup *bool                  `json:"isExperimentGroup,omitempty"`
}

// ConfigCondition is one operator/field/target-value triple evaluated
// against a User (or a nested rule, for nested nested/pass_gate types).
type ConfigCondition struct {
	Type             string                 `json:"type"`
	Operator         string                 `json:"operator"`
	Field            string                 `json:"field"`
	TargetValue      interface{}            `json:"targetValue"`
	UserBucket       map[int64]bool         `json:"-"`
	AdditionalValues map[string]interface{} `json:"additionalValues"`
	IDType           string                 `json:"idType"`
}

// downloadConfigSpecResponse is the full catalog sync payload.
type downloadConfigSpecResponse struct {
	HasUpdates             bool              `json:"has_updates"`
	Time                   int64             `json:"time"`
	FeatureGates           []ConfigSpec      `json:"feature_gates"`
	DynamicConfigs         []ConfigSpec      `json:"dynamic_configs"`
	LayerConfigs           []ConfigSpec      `json:"layer_configs"`
	Layers                 map[string][]string `json:"layers"`
	IDLists                map[string]bool   `json:"id_lists"`
	DiagnosticsSampleRates map[string]int    `json:"diagnostics"`
	SDKFlags               map[string]bool         `json:"sdk_flags"`
	SDKConfigs             map[string]interface{}  `json:"sdk_configs"`
}

// parseReturnValues decodes each spec's raw defaultValue/returnValue JSON
// into plain maps once, up front, so evaluation never re-parses them.
func parseReturnValues(spec *ConfigSpec) {
	var defaultValue map[string]interface{}
	if err := json.Unmarshal(spec.DefaultValue, &defaultValue); err != nil {
		defaultValue = make(map[string]interface{})
	}
	spec.DefaultValueJSON = defaultValue

	for i, rule := range spec.Rules {
		var ruleValue map[string]interface{}
		if err := json.Unmarshal(rule.ReturnValue, &ruleValue); err != nil {
			ruleValue = make(map[string]interface{})
		}
		spec.Rules[i].ReturnValueJSON = ruleValue
	}
}

// parseUserBucketTargets precomputes the user_bucket condition's integer
// set once per sync so membership tests are O(1) at evaluation time.
func parseUserBucketTargets(spec *ConfigSpec) {
	for _, rule := range spec.Rules {
		for i, cond := range rule.Conditions {
			if cond.Type != "user_bucket" || (cond.Operator != "any" && cond.Operator != "none") {
				continue
			}
			values, ok := cond.TargetValue.([]interface{})
			if !ok || len(values) == 0 {
				continue
			}
			rule.Conditions[i].UserBucket = make(map[int64]bool, len(values))
			for _, v := range values {
				if f, ok := v.(float64); ok {
					rule.Conditions[i].UserBucket[int64(f)] = true
				}
			}
		}
	}
}
