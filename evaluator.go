package flagcore

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flagcore/go-sdk/internal/evaluation"
)

const dynamicConfigType = "dynamic_config"

// evaluator holds the local ruleset and runs the gate/config/layer
// evaluation algorithm against a User, without ever touching the network
// itself (that's SpecStore's job).
type evaluator struct {
	store *SpecStore
	// Each override map is name -> userID -> value, with the sentinel
	// userID "" holding the global override. A user-ID-specific entry is
	// preferred over the global one when both are present.
	gateOverrides       map[string]map[string]bool
	gateOverridesLock   sync.RWMutex
	configOverrides     map[string]map[string]map[string]interface{}
	configOverridesLock sync.RWMutex
	layerOverrides      map[string]map[string]map[string]interface{}
	layerOverridesLock  sync.RWMutex
	uaParser            *uaParser
	regexes             *regexCache
	segmentLookups      *hashLookupCache
}

// evalResult is the outcome of evaluating one spec against one User,
// threaded back up through gate/delegate/rule evaluation.
type evalResult struct {
	Pass                          bool
	ConfigValue                   DynamicConfig
	FetchFromServer               bool
	RuleID                        string
	GroupName                     string
	SecondaryExposures            []SecondaryExposure
	UndelegatedSecondaryExposures []SecondaryExposure
	ConfigDelegate                string
	ExplicitParameters            map[string]bool
	EvaluationDetails             *EvaluationDetails
}

func newEvaluator(f *fetcher, eb *errorBoundary, options *Options, diag *diagnostics, sdkKey string) *evaluator {
	store := newSpecStore(f, eb, options, diag, sdkKey)
	parser := newUAParser(options.UAParserOptions)
	parser.init(false)

	return &evaluator{
		store:           store,
		uaParser:        parser,
		gateOverrides:   make(map[string]map[string]bool),
		configOverrides: make(map[string]map[string]map[string]interface{}),
		layerOverrides:  make(map[string]map[string]map[string]interface{}),
		regexes:         newRegexCache(1000),
		segmentLookups:  newHashLookupCache(100_000),
	}
}

func (e *evaluator) initialize(options *Options) {
	e.store.initialize(options)
}

func (e *evaluator) shutdown() {
	e.store.shutdown()
}

func (e *evaluator) createEvaluationDetails(reason EvaluationReason) *EvaluationDetails {
	e.store.mu.RLock()
	defer e.store.mu.RUnlock()
	return newEvaluationDetails(e.store.initSource, reason, e.store.lastSyncTime, e.store.initialSyncTime)
}

func (e *evaluator) checkGate(user User, gateName string) *evalResult {
	if override, hasOverride := e.getGateOverride(gateName, user.UserID); hasOverride {
		return &evalResult{
			Pass:              override,
			RuleID:            "override",
			EvaluationDetails: e.createEvaluationDetails(reasonLocalOverride),
		}
	}
	if gate, hasGate := e.store.getGate(gateName); hasGate {
		return e.eval(user, gate)
	}
	return &evalResult{EvaluationDetails: e.createEvaluationDetails(reasonUnrecognized)}
}

func (e *evaluator) getConfig(user User, configName string) *evalResult {
	if override, hasOverride := e.getConfigOverride(configName, user.UserID); hasOverride {
		return &evalResult{
			Pass:              true,
			ConfigValue:       *NewConfig(configName, override, "override", ""),
			RuleID:            "override",
			EvaluationDetails: e.createEvaluationDetails(reasonLocalOverride),
		}
	}
	if config, hasConfig := e.store.getDynamicConfig(configName); hasConfig {
		return e.eval(user, config)
	}
	return &evalResult{EvaluationDetails: e.createEvaluationDetails(reasonUnrecognized)}
}

func (e *evaluator) getLayer(user User, name string) *evalResult {
	if override, hasOverride := e.getLayerOverride(name, user.UserID); hasOverride {
		return &evalResult{
			Pass:              true,
			ConfigValue:       *NewConfig(name, override, "override", ""),
			RuleID:            "override",
			EvaluationDetails: e.createEvaluationDetails(reasonLocalOverride),
		}
	}
	if layer, hasLayer := e.store.getLayerConfig(name); hasLayer {
		return e.eval(user, layer)
	}
	return &evalResult{EvaluationDetails: e.createEvaluationDetails(reasonUnrecognized)}
}

// lookupOverride checks the user-ID-specific entry first, falling back to
// the global "" entry, per the name->userID->value override shape.
func lookupOverride[V any](byUser map[string]V, userID string) (V, bool) {
	if userID != "" {
		if v, ok := byUser[userID]; ok {
			return v, true
		}
	}
	v, ok := byUser[""]
	return v, ok
}

func (e *evaluator) getLayerOverride(name, userID string) (map[string]interface{}, bool) {
	e.layerOverridesLock.RLock()
	defer e.layerOverridesLock.RUnlock()
	byUser, ok := e.layerOverrides[name]
	if !ok {
		return nil, false
	}
	return lookupOverride(byUser, userID)
}

// OverrideLayer forces layerName to resolve to val for every subsequent
// evaluation, bypassing the ruleset entirely. An empty userID sets the
// global override; a non-empty userID overrides only that user.
func (e *evaluator) OverrideLayer(layerName string, val map[string]interface{}, userID string) {
	e.layerOverridesLock.Lock()
	defer e.layerOverridesLock.Unlock()
	if e.layerOverrides[layerName] == nil {
		e.layerOverrides[layerName] = make(map[string]map[string]interface{})
	}
	e.layerOverrides[layerName][userID] = val
}

// ClearAllLayerOverrides drops every layer override, global and per-user.
func (e *evaluator) ClearAllLayerOverrides() {
	e.layerOverridesLock.Lock()
	defer e.layerOverridesLock.Unlock()
	e.layerOverrides = make(map[string]map[string]map[string]interface{})
}

func (e *evaluator) getGateOverride(name, userID string) (bool, bool) {
	e.gateOverridesLock.RLock()
	defer e.gateOverridesLock.RUnlock()
	byUser, ok := e.gateOverrides[name]
	if !ok {
		return false, false
	}
	return lookupOverride(byUser, userID)
}

func (e *evaluator) getConfigOverride(name, userID string) (map[string]interface{}, bool) {
	e.configOverridesLock.RLock()
	defer e.configOverridesLock.RUnlock()
	byUser, ok := e.configOverrides[name]
	if !ok {
		return nil, false
	}
	return lookupOverride(byUser, userID)
}

// OverrideGate forces gateName to resolve to val for every subsequent
// evaluation, bypassing the ruleset entirely. An empty userID sets the
// global override; a non-empty userID overrides only that user.
func (e *evaluator) OverrideGate(gateName string, val bool, userID string) {
	e.gateOverridesLock.Lock()
	defer e.gateOverridesLock.Unlock()
	if e.gateOverrides[gateName] == nil {
		e.gateOverrides[gateName] = make(map[string]bool)
	}
	e.gateOverrides[gateName][userID] = val
}

// ClearAllGateOverrides drops every gate override, global and per-user.
func (e *evaluator) ClearAllGateOverrides() {
	e.gateOverridesLock.Lock()
	defer e.gateOverridesLock.Unlock()
	e.gateOverrides = make(map[string]map[string]bool)
}

// OverrideConfig forces configName to resolve to val for every subsequent
// evaluation, bypassing the ruleset entirely. An empty userID sets the
// global override; a non-empty userID overrides only that user.
func (e *evaluator) OverrideConfig(configName string, val map[string]interface{}, userID string) {
	e.configOverridesLock.Lock()
	defer e.configOverridesLock.Unlock()
	if e.configOverrides[configName] == nil {
		e.configOverrides[configName] = make(map[string]map[string]interface{})
	}
	e.configOverrides[configName][userID] = val
}

// ClearAllConfigOverrides drops every dynamic config override, global and
// per-user.
func (e *evaluator) ClearAllConfigOverrides() {
	e.configOverridesLock.Lock()
	defer e.configOverridesLock.Unlock()
	e.configOverrides = make(map[string]map[string]map[string]interface{})
}

// eval is the core per-spec evaluation loop: each rule's conditions are
// ANDed, the first fully-passing rule wins (subject to delegate resolution
// and pass-percentage bucketing), and an unmatched spec falls through to its
// default value.
func (e *evaluator) eval(user User, spec ConfigSpec) *evalResult {
	if err := e.store.resetSyncTimerIfExited(); err != nil {
		Logger().LogError(err.Error())
	}

	evalDetails := e.createEvaluationDetails(reasonNone)
	isDynamicConfig := strings.ToLower(spec.Type) == dynamicConfigType

	var configValue map[string]interface{}
	if isDynamicConfig {
		configValue = cloneJSONMap(spec.DefaultValueJSON)
	}

	var exposures []SecondaryExposure
	defaultRuleID := "default"
	if spec.Enabled {
		for _, rule := range spec.Rules {
			r := e.evalRule(user, rule)
			if r.FetchFromServer {
				return r
			}
			exposures = append(exposures, r.SecondaryExposures...)
			if !r.Pass {
				continue
			}

			if delegated := e.evalDelegate(user, rule, exposures); delegated != nil {
				return delegated
			}

			pass := e.evalPassPercent(user, rule, spec)
			if isDynamicConfig {
				if pass {
					configValue = cloneJSONMap(rule.ReturnValueJSON)
				}
				return &evalResult{
					Pass:                          pass,
					ConfigValue:                   *NewConfig(spec.Name, configValue, rule.ID, rule.GroupName),
					RuleID:                        rule.ID,
					GroupName:                     rule.GroupName,
					SecondaryExposures:            exposures,
					UndelegatedSecondaryExposures: exposures,
					EvaluationDetails:             evalDetails,
				}
			}
			return &evalResult{
				Pass:               pass,
				RuleID:             rule.ID,
				GroupName:          rule.GroupName,
				SecondaryExposures: exposures,
				EvaluationDetails:  evalDetails,
			}
		}
	} else {
		defaultRuleID = "disabled"
	}

	if isDynamicConfig {
		return &evalResult{
			Pass:                          false,
			ConfigValue:                   *NewConfig(spec.Name, configValue, defaultRuleID, ""),
			RuleID:                        defaultRuleID,
			SecondaryExposures:            exposures,
			UndelegatedSecondaryExposures: exposures,
			EvaluationDetails:             evalDetails,
		}
	}
	return &evalResult{
		Pass:               false,
		RuleID:             defaultRuleID,
		SecondaryExposures: exposures,
		EvaluationDetails:  evalDetails,
	}
}

// evalDelegate resolves a rule's configDelegate to another dynamic config
// and recurses, merging exposures and computing the delegate's explicit
// parameter set. Per the groupName precedence rule, the delegate's groupName
// wins only when it's non-empty; an empty delegate groupName falls back to
// the enclosing rule's.
func (e *evaluator) evalDelegate(user User, rule ConfigRule, exposures []SecondaryExposure) *evalResult {
	config, hasConfig := e.store.getDynamicConfig(rule.ConfigDelegate)
	if !hasConfig {
		return nil
	}

	result := e.eval(user, config)
	result.ConfigDelegate = rule.ConfigDelegate
	result.SecondaryExposures = append(append([]SecondaryExposure{}, exposures...), result.SecondaryExposures...)
	result.UndelegatedSecondaryExposures = exposures

	explicitParams := make(map[string]bool, len(config.ExplicitParameters))
	for _, p := range config.ExplicitParameters {
		explicitParams[p] = true
	}
	result.ExplicitParameters = explicitParams

	if result.GroupName == "" {
		result.GroupName = rule.GroupName
	}
	return result
}

func (e *evaluator) evalPassPercent(user User, rule ConfigRule, spec ConfigSpec) bool {
	ruleSalt := rule.Salt
	if ruleSalt == "" {
		ruleSalt = rule.ID
	}
	hash := bucketingHash(spec.Salt + "." + ruleSalt + "." + getUnitID(user, rule.IDType))
	return hash%10000 < uint64(rule.PassPercentage)*100
}

func getUnitID(user User, idType string) string {
	if idType != "" && strings.ToLower(idType) != "userid" {
		if val, ok := user.CustomIDs[idType]; ok {
			return val
		}
		if val, ok := user.CustomIDs[strings.ToLower(idType)]; ok {
			return val
		}
		return ""
	}
	return user.UserID
}

func (e *evaluator) evalRule(user User, rule ConfigRule) *evalResult {
	result := &evalResult{Pass: true}
	var exposures []SecondaryExposure
	for _, cond := range rule.Conditions {
		res := e.evalCondition(user, cond)
		if !res.Pass {
			result.Pass = false
		}
		if res.FetchFromServer {
			result.FetchFromServer = true
		}
		exposures = append(exposures, res.SecondaryExposures...)
	}
	result.SecondaryExposures = exposures
	return result
}

func (e *evaluator) evalCondition(user User, cond ConfigCondition) *evalResult {
	var value interface{}
	condType := strings.ToLower(cond.Type)
	op := strings.ToLower(cond.Operator)

	switch condType {
	case "public":
		return &evalResult{Pass: true}
	case "fail_gate", "pass_gate":
		gateName, ok := cond.TargetValue.(string)
		if !ok {
			return &evalResult{Pass: false}
		}
		result := e.checkGate(user, gateName)
		if result.FetchFromServer {
			return &evalResult{FetchFromServer: true}
		}
		exposure := SecondaryExposure{Gate: gateName, GateValue: strconv.FormatBool(result.Pass), RuleID: result.RuleID}
		all := append(append([]SecondaryExposure{}, result.SecondaryExposures...), exposure)
		if condType == "pass_gate" {
			return &evalResult{Pass: result.Pass, SecondaryExposures: all}
		}
		return &evalResult{Pass: !result.Pass, SecondaryExposures: all}
	case "ip_based":
		// No geolocation enrichment: resolved only from what is already on
		// the user (its fields, then Custom, then PrivateAttributes, via
		// getFromUser), never from a lookup.
		value = getFromUser(user, cond.Field)
	case "ua_based":
		value = getFromUser(user, cond.Field)
		if value == nil || value == "" {
			value = getFromUserAgent(user, cond.Field, e.uaParser)
		}
	case "user_field":
		value = getFromUser(user, cond.Field)
	case "environment_field":
		value = getFromEnvironment(user, cond.Field)
	case "current_time":
		value = time.Now().Unix()
	case "user_bucket":
		salt, hasSalt := cond.AdditionalValues["salt"]
		if !hasSalt {
			// No salt to hash against: fail closed ("any" never matches,
			// "none" always does), rather than defaulting bucket to 0 and
			// risking a false match against a target set containing 0.
			return &evalResult{Pass: op == "none"}
		}
		bucket := int64(bucketingHash(fmt.Sprintf("%v.%s", salt, getUnitID(user, cond.IDType))) % 1000)
		if cond.UserBucket != nil {
			pass := cond.UserBucket[bucket]
			if op == "none" {
				pass = !pass
			}
			return &evalResult{Pass: pass}
		}
		value = bucket
	case "unit_id":
		value = getUnitID(user, cond.IDType)
	default:
		return &evalResult{FetchFromServer: true}
	}

	pass, supported := e.evalOperator(op, cond, value)
	return &evalResult{Pass: pass, FetchFromServer: !supported}
}

// evalOperator applies cond.Operator to value/cond.TargetValue, delegating
// the comparison families to the internal/evaluation package. The second
// return value is false for an operator this evaluator doesn't recognize,
// signaling the caller to fall back to the server.
func (e *evaluator) evalOperator(op string, cond ConfigCondition, value interface{}) (pass bool, supported bool) {
	switch op {
	case "gt", "gte", "lt", "lte":
		return evaluation.Numeric(op, value, cond.TargetValue), true
	case "version_gt", "version_gte", "version_lt", "version_lte", "version_eq", "version_neq":
		a, aok := value.(string)
		b, bok := cond.TargetValue.(string)
		if !aok || !bok {
			return false, true
		}
		return evaluation.Version(strings.TrimPrefix(op, "version_"), a, b), true
	case "any", "none", "any_case_sensitive", "none_case_sensitive",
		"str_starts_with_any", "str_ends_with_any", "str_contains_any", "str_contains_none":
		targets, targetsOK := toStringSlice(cond.TargetValue)
		v, vok := toComparableString(value)
		if !targetsOK || !vok {
			return false, true
		}
		caseSensitive := strings.HasSuffix(op, "_case_sensitive")
		return evaluation.StringArray(strings.TrimSuffix(op, "_case_sensitive"), v, targets, caseSensitive), true
	case "str_matches":
		pattern, pok := cond.TargetValue.(string)
		v, vok := value.(string)
		if !pok || !vok {
			return false, true
		}
		re, err := e.regexes.compile(pattern)
		if err != nil {
			return false, true
		}
		return re.MatchString(v), true
	case "eq", "neq":
		return evaluation.Equal(op, value, cond.TargetValue), true
	case "before", "after", "on":
		return evaluation.Time(op, value, cond.TargetValue), true
	case "in_segment_list", "not_in_segment_list":
		listName, lok := cond.TargetValue.(string)
		v, vok := value.(string)
		inList := false
		if lok && vok {
			inList = e.checkSegmentMembership(listName, v)
		}
		if op == "in_segment_list" {
			return inList, true
		}
		return !inList, true
	default:
		return false, false
	}
}

func (e *evaluator) checkSegmentMembership(listName, value string) bool {
	hashed := segmentHash(value)
	cacheKey := listName + "|" + hashed
	if cached, ok := e.segmentLookups.get(cacheKey); ok {
		return cached
	}
	inList := false
	if list := e.store.getIDList(listName); list != nil {
		inList = list.contains(hashed)
	}
	e.segmentLookups.set(cacheKey, inList)
	return inList
}

func getFromUser(user User, field string) interface{} {
	var value interface{}
	switch strings.ToLower(field) {
	case "userid", "user_id":
		value = user.UserID
	case "email":
		value = user.Email
	case "ip", "ipaddress", "ip_address":
		value = user.IpAddress
	case "useragent", "user_agent":
		value = user.UserAgent
	case "country":
		value = user.Country
	case "locale":
		value = user.Locale
	case "appversion", "app_version":
		value = user.AppVersion
	}

	if value == "" || value == nil {
		if v, ok := user.Custom[field]; ok {
			value = v
		} else if v, ok := user.Custom[strings.ToLower(field)]; ok {
			value = v
		} else if v, ok := user.PrivateAttributes[field]; ok {
			value = v
		} else if v, ok := user.PrivateAttributes[strings.ToLower(field)]; ok {
			value = v
		}
	}
	return value
}

func getFromEnvironment(user User, field string) string {
	var value string
	if v, ok := user.StatsigEnvironment[field]; ok {
		value = v
	}
	if v, ok := user.StatsigEnvironment[strings.ToLower(field)]; ok {
		value = v
	}
	return value
}

func getFromUserAgent(user User, field string, parser *uaParser) string {
	ua := getFromUser(user, "useragent")
	uaStr, ok := ua.(string)
	if !ok {
		return ""
	}
	client := parser.parse(uaStr)
	if client == nil {
		return ""
	}
	switch strings.ToLower(field) {
	case "os_name", "osname":
		return client.Os.Family
	case "os_version", "osversion":
		return strings.Join(removeEmptyStrings([]string{client.Os.Major, client.Os.Minor, client.Os.Patch, client.Os.PatchMinor}), ".")
	case "browser_name", "browsername":
		return client.UserAgent.Family
	case "browser_version", "browserversion":
		return strings.Join(removeEmptyStrings([]string{client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch}), ".")
	}
	return ""
}

func removeEmptyStrings(s []string) []string {
	var r []string
	for _, str := range s {
		if str != "" {
			r = append(r, str)
		}
	}
	return r
}

func toStringSlice(v interface{}) ([]string, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := toComparableString(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func toComparableString(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", v), true
}

func cloneJSONMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
