package flagcore

import (
	"strings"
)

// ClientInitializeResponse is the bootstrap payload a client SDK embeds at
// page/app load to evaluate gates, configs, and layers offline.
type ClientInitializeResponse struct {
	FeatureGates   map[string]gateProjection   `json:"feature_gates"`
	DynamicConfigs map[string]configProjection `json:"dynamic_configs"`
	LayerConfigs   map[string]layerProjection  `json:"layer_configs"`
	SDKParams      map[string]string           `json:"sdk_params"`
	HasUpdates     bool                        `json:"has_updates"`
	Generator      string                      `json:"generator"`
	EvaluatedKeys  map[string]interface{}      `json:"evaluated_keys"`
	Time           int64                       `json:"time"`
	HashUsed       string                      `json:"hash_used"`
	User           User                        `json:"user"`
}

type baseProjection struct {
	Name               string              `json:"name"`
	RuleID             string              `json:"rule_id"`
	SecondaryExposures []map[string]string `json:"secondary_exposures"`
}

type gateProjection struct {
	baseProjection
	Value bool `json:"value"`
}

type configProjection struct {
	baseProjection
	Value              map[string]interface{} `json:"value"`
	Group              string                 `json:"group"`
	IsDeviceBased      bool                   `json:"is_device_based"`
	IsExperimentActive *bool                  `json:"is_experiment_active,omitempty"`
	IsUserInExperiment *bool                  `json:"is_user_in_experiment,omitempty"`
	IsInLayer          *bool                  `json:"is_in_layer,omitempty"`
	ExplicitParameters *[]string              `json:"explicit_parameters,omitempty"`
}

type layerProjection struct {
	baseProjection
	Value                         map[string]interface{} `json:"value"`
	Group                         string                 `json:"group"`
	IsDeviceBased                 bool                   `json:"is_device_based"`
	IsExperimentActive            *bool                  `json:"is_experiment_active,omitempty"`
	IsUserInExperiment            *bool                  `json:"is_user_in_experiment,omitempty"`
	ExplicitParameters            *[]string              `json:"explicit_parameters,omitempty"`
	AllocatedExperimentName       string                 `json:"allocated_experiment_name,omitempty"`
	UndelegatedSecondaryExposures []map[string]string    `json:"undelegated_secondary_exposures"`
}

func exposuresToProjection(exposures []SecondaryExposure) []map[string]string {
	deduped := dedupeExposures(exposures)
	out := make([]map[string]string, 0, len(deduped))
	for _, e := range deduped {
		out = append(out, map[string]string{"gate": e.Gate, "gateValue": e.GateValue, "ruleID": e.RuleID})
	}
	return out
}

// ClientProjection builds the bootstrap payload offline SDKs embed at load
// time: every known gate/config/layer evaluated for user once, with names
// hashed per ProjectionOptions so the payload doesn't leak spec names to the
// client verbatim.
type ClientProjection struct {
	store *SpecStore
	eval  func(user User, spec ConfigSpec) *evalResult
}

func newClientProjection(store *SpecStore, eval func(user User, spec ConfigSpec) *evalResult) *ClientProjection {
	return &ClientProjection{store: store, eval: eval}
}

func (c *ClientProjection) build(user User, opts ProjectionOptions) ClientInitializeResponse {
	if !c.store.isServingChecks() {
		return ClientInitializeResponse{}
	}

	algorithm := opts.HashAlgorithm
	if algorithm == "" {
		algorithm = "sha256"
	}

	toBase := func(name string, res *evalResult) (string, baseProjection) {
		hashed := hashName(name, algorithm)
		return hashed, baseProjection{
			Name:               hashed,
			RuleID:             res.RuleID,
			SecondaryExposures: exposuresToProjection(res.SecondaryExposures),
		}
	}

	featureGates := make(map[string]gateProjection)
	for name, spec := range c.store.snapshotAllGates() {
		entity := strings.ToLower(spec.Entity)
		if entity == "segment" || entity == "holdout" {
			continue
		}
		if !spec.hasTargetAppID(opts.TargetAppID) {
			continue
		}
		res := c.eval(user, spec)
		hashed, base := toBase(name, res)
		featureGates[hashed] = gateProjection{baseProjection: base, Value: res.Pass}
	}

	dynamicConfigs := make(map[string]configProjection)
	for name, spec := range c.store.snapshotAllDynamicConfigs() {
		if !spec.hasTargetAppID(opts.TargetAppID) {
			continue
		}
		res := c.eval(user, spec)
		hashed, base := toBase(name, res)
		proj := configProjection{
			baseProjection: base,
			Value:          res.ConfigValue.Value,
			Group:          res.RuleID,
			IsDeviceBased:  strings.EqualFold(spec.IDType, "stableid"),
		}
		if strings.EqualFold(spec.Entity, "experiment") {
			isUserInExperiment := res.GroupName != ""
			isExperimentActive := spec.IsActive != nil && *spec.IsActive
			proj.IsUserInExperiment = &isUserInExperiment
			proj.IsExperimentActive = &isExperimentActive
			if spec.HasSharedParams != nil && *spec.HasSharedParams {
				isInLayer := true
				proj.IsInLayer = &isInLayer
				params := append([]string{}, spec.ExplicitParameters...)
				proj.ExplicitParameters = &params
				if layerName, ok := c.store.getExperimentLayer(spec.Name); ok {
					if layer, ok := c.store.getLayerConfig(layerName); ok {
						merged := cloneJSONMap(layer.DefaultValueJSON)
						for k, v := range proj.Value {
							merged[k] = v
						}
						proj.Value = merged
					}
				}
			}
		}
		dynamicConfigs[hashed] = proj
	}

	layerConfigs := make(map[string]layerProjection)
	for name, spec := range c.store.snapshotAllLayers() {
		if !spec.hasTargetAppID(opts.TargetAppID) {
			continue
		}
		res := c.eval(user, spec)
		hashed, base := toBase(name, res)
		proj := layerProjection{
			baseProjection:                base,
			Value:                         res.ConfigValue.Value,
			Group:                         res.RuleID,
			IsDeviceBased:                 strings.EqualFold(spec.IDType, "stableid"),
			UndelegatedSecondaryExposures: exposuresToProjection(res.UndelegatedSecondaryExposures),
		}
		params := append([]string{}, spec.ExplicitParameters...)
		proj.ExplicitParameters = &params
		if res.ConfigDelegate != "" {
			if delegateSpec, ok := c.store.getDynamicConfig(res.ConfigDelegate); ok {
				delegateResult := c.eval(user, delegateSpec)
				proj.AllocatedExperimentName = hashName(res.ConfigDelegate, algorithm)
				isUserInExperiment := delegateResult.GroupName != ""
				isExperimentActive := delegateSpec.IsActive != nil && *delegateSpec.IsActive
				proj.IsUserInExperiment = &isUserInExperiment
				proj.IsExperimentActive = &isExperimentActive
				if len(delegateSpec.ExplicitParameters) > 0 {
					delegateParams := append([]string{}, delegateSpec.ExplicitParameters...)
					proj.ExplicitParameters = &delegateParams
				}
			}
		}
		layerConfigs[hashed] = proj
	}

	return ClientInitializeResponse{
		FeatureGates:   featureGates,
		DynamicConfigs: dynamicConfigs,
		LayerConfigs:   layerConfigs,
		SDKParams:      make(map[string]string),
		HasUpdates:     true,
		Generator:      "flagcore-go-sdk",
		EvaluatedKeys:  map[string]interface{}{"userID": user.UserID, "customIDs": user.CustomIDs},
		Time:           c.store.getLastUpdateTime(),
		HashUsed:       algorithm,
		User:           stripPrivateAttributes(user),
	}
}

// stripPrivateAttributes echoes user back into the bootstrap payload with
// PrivateAttributes cleared, since those values are never meant to leave
// the server.
func stripPrivateAttributes(user User) User {
	user.PrivateAttributes = nil
	return user
}
