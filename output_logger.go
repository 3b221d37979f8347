package flagcore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"time"
)

// syncProcess tags which part of the lifecycle an OutputLogger.LogStep call
// belongs to, so DisableInitDiagnostics/DisableSyncDiagnostics can filter it.
type syncProcess string

const (
	processInitialize syncProcess = "initialize"
	processSync       syncProcess = "sync"

	metricPrefix = "flagcore.sdk"
)

var highCardinalityTags = map[string]bool{
	"lcut":     true,
	"prevLcut": true,
}

var secretKeyPattern = regexp.MustCompile(`secret-[a-zA-Z0-9]+`)

// OutputLogger is the SDK's structured process logger and optional metrics
// sink. A zero-value OutputLogger has no metrics sink and EnableDebug off, so
// the metric methods and LogStep are no-ops; Log, and the methods that log
// through it (Debug, LogError, ...), write to stdout/stderr.
type OutputLogger struct {
	options OutputLoggerOptions
}

func (o *OutputLogger) isInitialized() bool { return o != nil }

func (o *OutputLogger) observability() ObservabilityClient {
	if !o.isInitialized() {
		return nil
	}
	return o.options.ObservabilityClient
}

// Log writes msg (and err, if present) either to the configured callback
// or to stdout/stderr, with any embedded secret key redacted.
func (o *OutputLogger) Log(msg string, err error) {
	if o.isInitialized() && o.options.LogCallback != nil {
		o.options.LogCallback(sanitize(msg), err)
		return
	}
	formatted := fmt.Sprintf("[%s][flagcore] %s", time.Now().Format(time.RFC3339), msg)
	if err != nil {
		formatted += ": " + err.Error()
		fmt.Fprintln(os.Stderr, sanitize(formatted))
	} else if msg != "" {
		fmt.Println(sanitize(formatted))
	}
}

// Debug pretty-prints any value as JSON for ad-hoc debugging.
func (o *OutputLogger) Debug(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	o.Log(string(b), nil)
}

// LogStep logs a lifecycle debug message, filtered by EnableDebug and the
// per-process disable flags.
func (o *OutputLogger) LogStep(process syncProcess, msg string) {
	if !o.isInitialized() || !o.options.EnableDebug {
		return
	}
	if o.options.DisableInitDiagnostics && process == processInitialize {
		return
	}
	if o.options.DisableSyncDiagnostics && process == processSync {
		return
	}
	o.Log(fmt.Sprintf("%s: %s", process, msg), nil)
}

// LogError logs err (accepting string, error, or any other value) and bumps
// the sdk_exceptions_count metric.
func (o *OutputLogger) LogError(err interface{}) {
	var e error
	switch v := err.(type) {
	case nil:
		e = fmt.Errorf("unknown error")
	case string:
		e = fmt.Errorf("%s", v)
	case error:
		e = v
	default:
		e = fmt.Errorf("%v", v)
	}
	o.Increment("sdk_exceptions_count", 1, nil)
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	o.Log(fmt.Sprintf("error: %s\nstack trace:\n%s", e.Error(), string(stack[:n])), nil)
}

func (o *OutputLogger) initialize() {
	client := o.observability()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Init panicked", nil)
		}
	}()
	if err := client.Init(context.Background()); err != nil {
		o.Log("observability client Init failed", err)
	}
}

// Increment bumps a counter metric through the configured
// ObservabilityClient, if any.
func (o *OutputLogger) Increment(metric string, value int, tags map[string]interface{}) {
	client := o.observability()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Increment panicked", nil)
		}
	}()
	if err := client.Increment(metricPrefix+"."+metric, value, o.filterHighCardinality(client, tags)); err != nil {
		o.Log("observability client Increment failed", err)
	}
}

// Gauge sets a gauge metric through the configured ObservabilityClient, if
// any.
func (o *OutputLogger) Gauge(metric string, value float64, tags map[string]interface{}) {
	client := o.observability()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Gauge panicked", nil)
		}
	}()
	if err := client.Gauge(metricPrefix+"."+metric, value, o.filterHighCardinality(client, tags)); err != nil {
		o.Log("observability client Gauge failed", err)
	}
}

// Distribution records a distribution metric through the configured
// ObservabilityClient, if any.
func (o *OutputLogger) Distribution(metric string, value float64, tags map[string]interface{}) {
	client := o.observability()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Distribution panicked", nil)
		}
	}()
	if err := client.Distribution(metricPrefix+"."+metric, value, o.filterHighCardinality(client, tags)); err != nil {
		o.Log("observability client Distribution failed", err)
	}
}

// Shutdown tears down the configured ObservabilityClient, if any.
func (o *OutputLogger) Shutdown() {
	client := o.observability()
	if client == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Shutdown panicked", nil)
		}
	}()
	if err := client.Shutdown(context.Background()); err != nil {
		o.Log("observability client Shutdown failed", err)
	}
}

// InitDetails summarizes how Client initialization went: how long it took,
// which source populated the store, and whether the store ended up
// populated at all.
type InitDetails struct {
	Duration       time.Duration
	Source         EvaluationSource
	SourceAPI      string
	Success        bool
	StorePopulated bool
	Error          error
}

// LogPostInit emits one summary log line plus an initialization distribution
// metric, after a Client finishes (or times out on) initialization.
func (o *OutputLogger) LogPostInit(options *Options, details InitDetails) {
	if options != nil && options.LocalMode {
		if details.Success {
			o.Log("flagcore Client initialized in local mode; no data will be fetched from the network.", nil)
		} else {
			o.Log("flagcore Client failed to initialize in local mode.", nil)
		}
		return
	}

	o.Distribution("initialization", details.Duration.Seconds(), map[string]interface{}{
		"source":          string(details.Source),
		"store_populated": details.StorePopulated,
		"init_success":    details.Success,
		"init_source_api": details.SourceAPI,
	})

	if !details.Success {
		if details.Error != nil && details.Error == context.DeadlineExceeded {
			o.Log("flagcore Client initialization timed out.", nil)
		} else {
			o.Log("flagcore Client initialization failed.", details.Error)
		}
		return
	}
	if details.StorePopulated {
		msg := fmt.Sprintf("flagcore Client initialized successfully with data from %s", details.Source)
		if details.SourceAPI != "" {
			msg += fmt.Sprintf(" [%s]", details.SourceAPI)
		}
		o.Log(msg, nil)
	} else {
		o.Log("flagcore Client initialized, but the config store is empty; evaluation will use default values.", nil)
	}
}

// LogConfigSyncUpdate records whether a sync poll produced a ruleset update,
// and if so, how far the new LCUT diverged from the previous one.
func (o *OutputLogger) LogConfigSyncUpdate(initialized bool, hasUpdate bool, lcut int64, prevLcut int64, source string, api string) {
	if !initialized {
		return
	}
	if !hasUpdate {
		o.Increment("config_no_update", 1, map[string]interface{}{
			"source":     source,
			"source_api": api,
		})
		return
	}
	o.Distribution("config_propagation_diff", float64(intAbs(prevLcut-lcut)), map[string]interface{}{
		"source":     source,
		"source_api": api,
		"lcut":       lcut,
		"prevLcut":   prevLcut,
	})
}

func (o *OutputLogger) filterHighCardinality(client ObservabilityClient, tags map[string]interface{}) map[string]interface{} {
	if tags == nil {
		return nil
	}
	filtered := make(map[string]interface{}, len(tags))
	for tag, value := range tags {
		if !highCardinalityTags[tag] || client.ShouldEnableHighCardinalityForThisTag(tag) {
			filtered[tag] = value
		}
	}
	return filtered
}

func sanitize(s string) string {
	return secretKeyPattern.ReplaceAllString(s, "secret-****")
}
