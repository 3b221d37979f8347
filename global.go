// Package flagcore implements a server-side feature gating, dynamic
// config, and experimentation client.
package flagcore

import (
	"fmt"
	"sync"
)

var (
	instance   *Client
	instanceMu sync.RWMutex
)

// Initialize constructs and installs the global Client against the default
// API host.
func Initialize(sdkKey string) {
	InitializeWithOptions(sdkKey, &Options{})
}

// InitializeWithOptions constructs and installs the global Client with
// options. A second call before Shutdown keeps the existing Client, but still
// reinstalls the global OutputLogger from the new options.
func InitializeWithOptions(sdkKey string, options *Options) {
	InitializeGlobalOutputLogger(options.OutputLoggerOptions)
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		Logger().Log("flagcore is already initialized.", nil)
		return
	}
	instance = NewClientWithOptions(sdkKey, options)
}

// IsInitialized reports whether the global Client has been installed.
func IsInitialized() bool {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance != nil
}

func mustInstance(caller string) *Client {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	if instance == nil {
		panic(fmt.Errorf("must call flagcore.Initialize before calling %s", caller))
	}
	return instance
}

// CheckGate checks gate against the global Client.
func CheckGate(user User, gate string) bool {
	return mustInstance("CheckGate").CheckGate(user, gate)
}

// CheckGateWithExposureLoggingDisabled is CheckGate without the exposure log.
func CheckGateWithExposureLoggingDisabled(user User, gate string) bool {
	return mustInstance("CheckGateWithExposureLoggingDisabled").CheckGateWithExposureLoggingDisabled(user, gate)
}

// ManuallyLogGateExposure logs a gate exposure against the global Client.
func ManuallyLogGateExposure(user User, gate string) {
	mustInstance("ManuallyLogGateExposure").ManuallyLogGateExposure(user, gate)
}

// GetConfig reads config against the global Client.
func GetConfig(user User, config string) DynamicConfig {
	return mustInstance("GetConfig").GetConfig(user, config)
}

// GetConfigWithExposureLoggingDisabled is GetConfig without the exposure log.
func GetConfigWithExposureLoggingDisabled(user User, config string) DynamicConfig {
	return mustInstance("GetConfigWithExposureLoggingDisabled").GetConfigWithExposureLoggingDisabled(user, config)
}

// ManuallyLogConfigExposure logs a config exposure against the global Client.
func ManuallyLogConfigExposure(user User, config string) {
	mustInstance("ManuallyLogConfigExposure").ManuallyLogConfigExposure(user, config)
}

// GetExperiment reads experiment against the global Client.
func GetExperiment(user User, experiment string) DynamicConfig {
	return mustInstance("GetExperiment").GetExperiment(user, experiment)
}

// GetExperimentWithExposureLoggingDisabled is GetExperiment without the
// exposure log.
func GetExperimentWithExposureLoggingDisabled(user User, experiment string) DynamicConfig {
	return mustInstance("GetExperimentWithExposureLoggingDisabled").GetExperimentWithExposureLoggingDisabled(user, experiment)
}

// ManuallyLogExperimentExposure logs an experiment exposure against the
// global Client.
func ManuallyLogExperimentExposure(user User, experiment string) {
	mustInstance("ManuallyLogExperimentExposure").ManuallyLogExperimentExposure(user, experiment)
}

// GetLayer reads layer against the global Client.
func GetLayer(user User, layer string) Layer {
	return mustInstance("GetLayer").GetLayer(user, layer)
}

// GetLayerWithExposureLoggingDisabled is GetLayer without any exposure log.
func GetLayerWithExposureLoggingDisabled(user User, layer string) Layer {
	return mustInstance("GetLayerWithExposureLoggingDisabled").GetLayerWithExposureLoggingDisabled(user, layer)
}

// ManuallyLogLayerParameterExposure logs a layer-parameter exposure against
// the global Client.
func ManuallyLogLayerParameterExposure(user User, layer string, parameter string) {
	mustInstance("ManuallyLogLayerParameterExposure").ManuallyLogLayerParameterExposure(user, layer, parameter)
}

// LogEvent submits a custom event against the global Client.
func LogEvent(event Event) {
	mustInstance("LogEvent").LogEvent(event)
}

// OverrideGate overrides gate against the global Client. With no userID, the
// override applies globally; with a userID, it applies only to that user.
func OverrideGate(gate string, val bool, userID ...string) {
	mustInstance("OverrideGate").OverrideGate(gate, val, userID...)
}

// OverrideConfig overrides config against the global Client. With no userID,
// the override applies globally; with a userID, it applies only to that
// user.
func OverrideConfig(config string, val map[string]interface{}, userID ...string) {
	mustInstance("OverrideConfig").OverrideConfig(config, val, userID...)
}

// OverrideLayer overrides layer against the global Client. With no userID,
// the override applies globally; with a userID, it applies only to that
// user.
func OverrideLayer(layer string, val map[string]interface{}, userID ...string) {
	mustInstance("OverrideLayer").OverrideLayer(layer, val, userID...)
}

// ClearAllGateOverrides drops every gate override against the global Client.
func ClearAllGateOverrides() {
	mustInstance("ClearAllGateOverrides").ClearAllGateOverrides()
}

// ClearAllConfigOverrides drops every dynamic config override against the
// global Client.
func ClearAllConfigOverrides() {
	mustInstance("ClearAllConfigOverrides").ClearAllConfigOverrides()
}

// ClearAllLayerOverrides drops every layer override against the global
// Client.
func ClearAllLayerOverrides() {
	mustInstance("ClearAllLayerOverrides").ClearAllLayerOverrides()
}

// GetClientInitializeResponse builds a bootstrap projection against the
// global Client.
func GetClientInitializeResponse(user User, opts ProjectionOptions) ClientInitializeResponse {
	return mustInstance("GetClientInitializeResponse").GetClientInitializeResponse(user, opts)
}

// Shutdown tears down the global Client, if any.
func Shutdown() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		return
	}
	instance.Shutdown()
	instance = nil
}
