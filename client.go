package flagcore

import (
	"context"
	"strings"
	"time"
)

// Client is the entry point for checking gates, reading dynamic
// configs/experiments/layers, and logging events against one SDK key's
// ruleset. All public methods are safe for concurrent use and recover from
// internal panics via the embedded errorBoundary.
type Client struct {
	sdkKey        string
	evaluator     *evaluator
	logger        *logger
	fetcher       *fetcher
	errorBoundary *errorBoundary
	options       *Options
	diagnostics   *diagnostics
	projection    *ClientProjection
}

// NewClient constructs a Client against the default API host.
func NewClient(sdkKey string) *Client {
	return NewClientWithOptions(sdkKey, &Options{})
}

// NewClientWithOptions constructs a Client, blocking until the ruleset has
// been populated from a DataAdapter, BootstrapValues, or the network (or
// InitTimeout elapses, whichever first).
func NewClientWithOptions(sdkKey string, options *Options) *Client {
	start := time.Now()
	if options == nil {
		options = &Options{}
	}
	diag := newDiagnostics(options)
	diag.initialize().overall().start().mark()

	if !options.LocalMode && !strings.HasPrefix(sdkKey, "secret") {
		panic(ErrInvalidSDKKey)
	}

	eb := newErrorBoundary(sdkKey, options, diag)
	f := newFetcher(sdkKey, options)
	ev := newEvaluator(f, eb, options, diag, sdkKey)
	l := newLogger(f, options, diag, eb, ev.store.getSDKConfigs())

	c := &Client{
		sdkKey:        sdkKey,
		evaluator:     ev,
		logger:        l,
		fetcher:       f,
		errorBoundary: eb,
		options:       options,
		diagnostics:   diag,
	}
	c.projection = newClientProjection(ev.store, ev.eval)

	c.initializeWithTimeout(options, start)
	diag.initialize().overall().end().success(true).mark()
	return c
}

func (c *Client) initializeWithTimeout(options *Options, start time.Time) {
	if options.InitTimeout <= 0 {
		c.evaluator.initialize(options)
		c.logPostInit(start, nil)
		return
	}
	done := make(chan struct{})
	go func() {
		c.evaluator.initialize(options)
		close(done)
	}()
	select {
	case <-done:
		c.logPostInit(start, nil)
	case <-time.After(options.InitTimeout):
		c.logPostInit(start, context.DeadlineExceeded)
	}
}

func (c *Client) logPostInit(start time.Time, err error) {
	details := c.evaluator.createEvaluationDetails(reasonNone)
	Logger().LogPostInit(c.options, InitDetails{
		Duration:       time.Since(start),
		Source:         details.Source,
		Success:        err == nil,
		StorePopulated: details.Source != sourceUninitialized,
		Error:          err,
	})
}

// CheckGate returns whether gate is on for user, logging an exposure.
func (c *Client) CheckGate(user User, gate string) bool {
	return c.checkGateImpl(user, gate, false)
}

// CheckGateWithExposureLoggingDisabled is CheckGate without the exposure log.
func (c *Client) CheckGateWithExposureLoggingDisabled(user User, gate string) bool {
	return c.checkGateImpl(user, gate, true)
}

func (c *Client) checkGateImpl(user User, gate string, disableLogExposures bool) (pass bool) {
	c.errorBoundary.capture("checkGate", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.checkGate(user, gate)
		pass = res.Pass
		if !disableLogExposures {
			exposure := c.logger.logGateExposure(user, gate, res)
			if c.options.EvaluationCallbacks.GateEvaluationCallback != nil {
				c.options.EvaluationCallbacks.GateEvaluationCallback(gate, pass, exposure)
			}
		}
	}, nil)
	return pass
}

// ManuallyLogGateExposure logs a gate exposure outside the normal
// CheckGate path, for hosts that pre-fetch evaluations in bulk.
func (c *Client) ManuallyLogGateExposure(user User, gate string) {
	c.errorBoundary.capture("manuallyLogGateExposure", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.checkGate(user, gate)
		c.logger.logGateExposure(user, gate, res)
	}, nil)
}

// GetConfig returns config's evaluated DynamicConfig value for user,
// logging an exposure.
func (c *Client) GetConfig(user User, config string) DynamicConfig {
	return c.getConfigImpl(user, config, false, false)
}

// GetConfigWithExposureLoggingDisabled is GetConfig without the exposure log.
func (c *Client) GetConfigWithExposureLoggingDisabled(user User, config string) DynamicConfig {
	return c.getConfigImpl(user, config, true, false)
}

// ManuallyLogConfigExposure logs a config exposure outside GetConfig.
func (c *Client) ManuallyLogConfigExposure(user User, config string) {
	c.errorBoundary.capture("manuallyLogConfigExposure", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.getConfig(user, config)
		c.logger.logConfigExposure(user, config, res)
	}, nil)
}

// GetExperiment is GetConfig for an experiment-typed dynamic config.
func (c *Client) GetExperiment(user User, experiment string) DynamicConfig {
	return c.getConfigImpl(user, experiment, false, true)
}

// GetExperimentWithExposureLoggingDisabled is GetExperiment without the
// exposure log.
func (c *Client) GetExperimentWithExposureLoggingDisabled(user User, experiment string) DynamicConfig {
	return c.getConfigImpl(user, experiment, true, true)
}

// ManuallyLogExperimentExposure logs an experiment exposure outside
// GetExperiment.
func (c *Client) ManuallyLogExperimentExposure(user User, experiment string) {
	c.ManuallyLogConfigExposure(user, experiment)
}

func (c *Client) getConfigImpl(user User, name string, disableLogExposures bool, isExperiment bool) (result DynamicConfig) {
	result = *NewConfig(name, nil, "", "")
	c.errorBoundary.capture("getConfig", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.getConfig(user, name)
		result = res.ConfigValue
		if !disableLogExposures {
			exposure := c.logger.logConfigExposure(user, name, res)
			if isExperiment && c.options.EvaluationCallbacks.ExperimentEvaluationCallback != nil {
				c.options.EvaluationCallbacks.ExperimentEvaluationCallback(name, result, exposure)
			} else if !isExperiment && c.options.EvaluationCallbacks.ConfigEvaluationCallback != nil {
				c.options.EvaluationCallbacks.ConfigEvaluationCallback(name, result, exposure)
			}
		}
	}, nil)
	return result
}

// GetLayer returns layer's evaluated Layer for user. Exposures for
// individual parameters are logged lazily, each time a parameter is actually
// read via a Layer.Get* accessor; the event logger drops repeats of an
// identical exposure within its dedupe window.
func (c *Client) GetLayer(user User, layer string) Layer {
	return c.getLayerImpl(user, layer, false)
}

// GetLayerWithExposureLoggingDisabled is GetLayer without any exposure log.
func (c *Client) GetLayerWithExposureLoggingDisabled(user User, layer string) Layer {
	return c.getLayerImpl(user, layer, true)
}

// ManuallyLogLayerParameterExposure logs an exposure for one layer
// parameter outside the normal GetLayer accessor path.
func (c *Client) ManuallyLogLayerParameterExposure(user User, layer string, parameter string) {
	c.errorBoundary.capture("manuallyLogLayerParameterExposure", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.getLayer(user, layer)
		layerValue := NewLayer(layer, res.ConfigValue.Value, res.RuleID, res.GroupName, nil)
		c.logger.logLayerExposure(user, *layerValue, parameter, res)
	}, nil)
}

func (c *Client) getLayerImpl(user User, name string, disableLogExposures bool) (result Layer) {
	result = *NewLayer(name, nil, "", "", nil)
	c.errorBoundary.capture("getLayer", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		res := c.evaluator.getLayer(user, name)
		logParam := func(layerName, parameterName string) {
			if disableLogExposures {
				return
			}
			exposure := c.logger.logLayerExposure(user, *NewLayer(name, res.ConfigValue.Value, res.RuleID, res.GroupName, nil), parameterName, res)
			if c.options.EvaluationCallbacks.LayerEvaluationCallback != nil {
				c.options.EvaluationCallbacks.LayerEvaluationCallback(name, parameterName, res.ConfigValue, exposure)
			}
		}
		result = *NewLayer(name, res.ConfigValue.Value, res.RuleID, res.GroupName, logParam)
	}, nil)
	return result
}

// LogEvent submits a custom analytics event.
func (c *Client) LogEvent(event Event) {
	c.errorBoundary.capture("logEvent", func() {
		if event.EventName == "" {
			return
		}
		event.User = c.normalizeUser(event.User)
		c.logger.LogCustom(event)
	}, nil)
}

// GetClientInitializeResponse builds the bootstrap payload a client SDK
// would embed at load time for user.
func (c *Client) GetClientInitializeResponse(user User, opts ProjectionOptions) (resp ClientInitializeResponse) {
	c.errorBoundary.capture("getClientInitializeResponse", func() {
		if !c.verifyUser(user) {
			return
		}
		user = c.normalizeUser(user)
		resp = c.projection.build(user, opts)
	}, nil)
	return resp
}

// OverrideGate forces gate to evaluate to val. With no userID, the override
// applies globally; with a userID, it applies only to that user.
func (c *Client) OverrideGate(gate string, val bool, userID ...string) {
	c.errorBoundary.capture("overrideGate", func() { c.evaluator.OverrideGate(gate, val, firstOrEmpty(userID)) }, nil)
}

// OverrideConfig forces config to evaluate to val. With no userID, the
// override applies globally; with a userID, it applies only to that user.
func (c *Client) OverrideConfig(config string, val map[string]interface{}, userID ...string) {
	c.errorBoundary.capture("overrideConfig", func() { c.evaluator.OverrideConfig(config, val, firstOrEmpty(userID)) }, nil)
}

// OverrideLayer forces layer to evaluate to val. With no userID, the
// override applies globally; with a userID, it applies only to that user.
func (c *Client) OverrideLayer(layer string, val map[string]interface{}, userID ...string) {
	c.errorBoundary.capture("overrideLayer", func() { c.evaluator.OverrideLayer(layer, val, firstOrEmpty(userID)) }, nil)
}

// ClearAllGateOverrides drops every gate override installed via OverrideGate.
func (c *Client) ClearAllGateOverrides() {
	c.errorBoundary.capture("clearAllGateOverrides", func() { c.evaluator.ClearAllGateOverrides() }, nil)
}

// ClearAllConfigOverrides drops every dynamic config override installed via
// OverrideConfig.
func (c *Client) ClearAllConfigOverrides() {
	c.errorBoundary.capture("clearAllConfigOverrides", func() { c.evaluator.ClearAllConfigOverrides() }, nil)
}

// ClearAllLayerOverrides drops every layer override installed via
// OverrideLayer.
func (c *Client) ClearAllLayerOverrides() {
	c.errorBoundary.capture("clearAllLayerOverrides", func() { c.evaluator.ClearAllLayerOverrides() }, nil)
}

func firstOrEmpty(userID []string) string {
	if len(userID) == 0 {
		return ""
	}
	return userID[0]
}

func (c *Client) verifyUser(user User) bool {
	if user.UserID == "" && len(user.CustomIDs) == 0 {
		Logger().LogError(ErrEmptyUser)
		return false
	}
	return true
}

// normalizeUser merges the configured Environment into user's
// StatsigEnvironment, giving user's own entries precedence.
func (c *Client) normalizeUser(user User) User {
	env := make(map[string]string, len(c.options.Environment.Params)+1)
	for k, v := range c.options.Environment.Params {
		env[k] = v
	}
	if c.options.Environment.Tier != "" {
		env["tier"] = c.options.Environment.Tier
	}
	for k, v := range user.StatsigEnvironment {
		env[k] = v
	}
	user.StatsigEnvironment = env
	return user
}

// Shutdown flushes any buffered events and stops all background work.
// Calling any other method after Shutdown is undefined.
func (c *Client) Shutdown() {
	c.errorBoundary.capture("shutdown", func() {
		c.logger.Shutdown()
		c.evaluator.shutdown()
	}, nil)
}
