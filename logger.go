package flagcore

import (
	"strconv"
	"sync"
	"time"
)

// ExposureEventName names one of the three built-in exposure event kinds.
type ExposureEventName string

const (
	GateExposureEventName   ExposureEventName = "flagcore::gate_exposure"
	ConfigExposureEventName ExposureEventName = "flagcore::config_exposure"
	LayerExposureEventName  ExposureEventName = "flagcore::layer_exposure"
)

// ExposureEvent records that a gate/config/layer was evaluated for a user,
// for downstream experiment analysis.
type ExposureEvent struct {
	EventName          ExposureEventName   `json:"eventName"`
	User               User                `json:"user"`
	Value              string              `json:"value"`
	Metadata           map[string]string   `json:"metadata"`
	SecondaryExposures []SecondaryExposure `json:"secondaryExposures"`
	Time               int64               `json:"time"`
}

// logEventInput is the wire body of a log_event call.
type logEventInput struct {
	Events   []interface{}  `json:"events"`
	Metadata clientMetadata `json:"metadata"`
}

const diagnosticsEventName = "flagcore::diagnostics"

type diagnosticsEvent struct {
	EventName string                 `json:"eventName"`
	Metadata  map[string]interface{} `json:"metadata"`
	Time      int64                  `json:"time"`
}

// EventLogger is the collaborator interface a host or test double can
// substitute for the built-in batching logger.
type EventLogger interface {
	LogCustom(evt Event)
	LogExposure(evt ExposureEvent)
	Shutdown()
}

// logger is the minimal in-memory batching EventLogger: events accumulate
// until LoggingMaxBufferSize is reached or LoggingInterval elapses, then
// flush through the fetcher in one call. It dedupes identical exposures
// within a rolling window via a ttlSet. Retryable failures are retried by
// the fetcher; a batch that still fails is reported to the error boundary
// and dropped, so there is no durable-delivery guarantee.
type logger struct {
	events        []interface{}
	fetcher       *fetcher
	tick          *time.Ticker
	mu            sync.Mutex
	maxEvents     int
	disabled      bool
	diagnostics   *diagnostics
	errorBoundary *errorBoundary
	dedupe        *ttlSet
	sdkConfigs    *sdkConfigs
}

func newLogger(f *fetcher, options *Options, diag *diagnostics, eb *errorBoundary, sdkCfg *sdkConfigs) *logger {
	interval := time.Minute
	maxEvents := 1000
	if options.LoggingInterval > 0 {
		interval = options.LoggingInterval
	}
	if options.LoggingMaxBufferSize > 0 {
		maxEvents = options.LoggingMaxBufferSize
	}
	dedupeWindow := time.Hour
	if seconds, ok := sdkCfg.configIntValue("exposure_dedupe_window_seconds"); ok && seconds > 0 {
		dedupeWindow = time.Duration(seconds) * time.Second
	}
	l := &logger{
		fetcher:       f,
		tick:          time.NewTicker(interval),
		maxEvents:     maxEvents,
		diagnostics:   diag,
		errorBoundary: eb,
		sdkConfigs:    sdkCfg,
		dedupe:        newTTLSet(dedupeWindow),
	}
	l.dedupe.startResetLoop()
	go l.backgroundFlush()
	return l
}

func (l *logger) backgroundFlush() {
	for range l.tick.C {
		l.refreshDedupeWindow()
		l.flush(false)
	}
}

// refreshDedupeWindow re-reads exposure_dedupe_window_seconds on every tick
// rather than only at construction time, since the SpecStore's sdkConfigs is
// still empty when newLogger runs and only gets populated once the first
// sync completes.
func (l *logger) refreshDedupeWindow() {
	if seconds, ok := l.sdkConfigs.configIntValue("exposure_dedupe_window_seconds"); ok && seconds > 0 {
		l.dedupe.setResetInterval(time.Duration(seconds) * time.Second)
	}
}

// LogCustom records a host-submitted analytics event, stripping any private
// attributes from the embedded user before it ever reaches the buffer.
func (l *logger) LogCustom(evt Event) {
	evt.User.PrivateAttributes = nil
	if evt.Time == 0 {
		evt.Time = getUnixMilli()
	}
	l.enqueue(evt)
}

// LogExposure records a gate/config/layer exposure, deduping repeated
// identical exposures for the same user within the dedupe window.
func (l *logger) LogExposure(evt ExposureEvent) {
	evt.User.PrivateAttributes = nil
	if evt.Time == 0 {
		evt.Time = getUnixMilli()
	}
	key := string(evt.EventName) + "|" + evt.User.UserID + "|" + evt.Metadata["gate"] + "|" + evt.Metadata["config"] + "|" +
		evt.Metadata["parameterName"] + "|" + evt.Metadata["ruleID"] + "|" + evt.Value
	if l.dedupe.contains(key) {
		return
	}
	l.dedupe.add(key)
	l.enqueue(evt)
}

func (l *logger) enqueue(evt interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disabled {
		return
	}
	l.events = append(l.events, evt)
	if len(l.events) >= l.maxEvents {
		l.flushLocked(false)
	}
}

func (l *logger) logGateExposure(user User, gateName string, res *evalResult) *ExposureEvent {
	evt := &ExposureEvent{
		User:      user,
		EventName: GateExposureEventName,
		Value:     strconv.FormatBool(res.Pass),
		Metadata: map[string]string{
			"gate":      gateName,
			"gateValue": strconv.FormatBool(res.Pass),
			"ruleID":    res.RuleID,
		},
		SecondaryExposures: dedupeExposures(res.SecondaryExposures),
	}
	l.addEvaluationDetails(evt, res.EvaluationDetails)
	l.LogExposure(*evt)
	return evt
}

func (l *logger) logConfigExposure(user User, configName string, res *evalResult) *ExposureEvent {
	evt := &ExposureEvent{
		User:      user,
		EventName: ConfigExposureEventName,
		Value:     strconv.FormatBool(res.Pass),
		Metadata: map[string]string{
			"config":     configName,
			"ruleID":     res.RuleID,
			"rulePassed": strconv.FormatBool(res.Pass),
		},
		SecondaryExposures: dedupeExposures(res.SecondaryExposures),
	}
	l.addEvaluationDetails(evt, res.EvaluationDetails)
	l.LogExposure(*evt)
	return evt
}

func (l *logger) logLayerExposure(user User, layer Layer, parameterName string, res *evalResult) *ExposureEvent {
	allocatedExperiment := ""
	exposures := res.UndelegatedSecondaryExposures
	if res.ExplicitParameters[parameterName] {
		allocatedExperiment = res.ConfigDelegate
		exposures = res.SecondaryExposures
	}
	evt := &ExposureEvent{
		User:      user,
		EventName: LayerExposureEventName,
		Metadata: map[string]string{
			"config":              layer.Name,
			"ruleID":              layer.RuleID,
			"allocatedExperiment": allocatedExperiment,
			"parameterName":       parameterName,
			"isExplicitParameter": strconv.FormatBool(res.ExplicitParameters[parameterName]),
		},
		SecondaryExposures: dedupeExposures(exposures),
	}
	l.addEvaluationDetails(evt, res.EvaluationDetails)
	l.LogExposure(*evt)
	return evt
}

func (l *logger) addEvaluationDetails(evt *ExposureEvent, details *EvaluationDetails) {
	if details == nil {
		return
	}
	evt.Metadata["reason"] = details.detailedReason()
	evt.Metadata["configSyncTime"] = strconv.FormatInt(details.ConfigSyncTime, 10)
	evt.Metadata["initTime"] = strconv.FormatInt(details.InitTime, 10)
	evt.Metadata["serverTime"] = strconv.FormatInt(details.ServerTime, 10)
}

// Shutdown stops the background flush loop and drains the buffer
// synchronously.
func (l *logger) Shutdown() {
	l.dedupe.close()
	l.flush(true)
}

func (l *logger) flush(closing bool) {
	l.logDiagnosticsEvents()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked(closing)
}

func (l *logger) flushLocked(closing bool) {
	if closing {
		l.tick.Stop()
	}
	if len(l.events) == 0 {
		return
	}
	events := l.events
	l.events = make([]interface{}, 0)
	if closing {
		l.sendEvents(events)
	} else {
		go l.sendEvents(events)
	}
}

func (l *logger) sendEvents(events []interface{}) {
	var res struct {
		Success bool `json:"success"`
	}
	if _, err := l.fetcher.logEvents(events, &res, requestOptions{retries: maxRetries}); err != nil {
		if l.errorBoundary != nil {
			_ = l.errorBoundary.logException(&LogEventError{Events: len(events), Err: err})
		}
	}
}

func (l *logger) logDiagnosticsEvents() {
	if l.diagnostics == nil {
		return
	}
	for _, base := range []*diagnosticsBase{l.diagnostics.initDiagnostics, l.diagnostics.syncDiagnostics, l.diagnostics.apiDiagnostics} {
		l.logOneDiagnosticsEvent(base)
	}
}

func (l *logger) logOneDiagnosticsEvent(d *diagnosticsBase) {
	if d.isDisabled() {
		return
	}
	serialized, shouldSample := d.serializeWithSampling()
	if !shouldSample {
		return
	}
	d.clearMarkers()
	l.enqueue(diagnosticsEvent{EventName: diagnosticsEventName, Time: getUnixMilli(), Metadata: serialized})
}
