package flagcore

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// diagnosticsContext groups markers by the lifecycle phase they belong to.
type diagnosticsContext string

const (
	contextInitialize diagnosticsContext = "initialize"
	contextConfigSync diagnosticsContext = "config_sync"
	contextAPICall    diagnosticsContext = "api_call"
)

// diagnosticsKey names the specific operation a marker brackets.
type diagnosticsKey string

const (
	keyDownloadConfigSpecs diagnosticsKey = "download_config_specs"
	keyBootstrap           diagnosticsKey = "bootstrap"
	keyGetIDListSources    diagnosticsKey = "get_id_list_sources"
	keyGetIDList           diagnosticsKey = "get_id_list"
	keyOverall             diagnosticsKey = "overall"
	keyDataStoreSpecs      diagnosticsKey = "data_store_config_specs"
	keyDataStoreIDLists    diagnosticsKey = "data_store_id_lists"
	keyDataStoreIDList     diagnosticsKey = "data_store_id_list"
	keyCheckGateAPI        diagnosticsKey = "check_gate"
	keyGetConfigAPI        diagnosticsKey = "get_config"
	keyGetLayerAPI         diagnosticsKey = "get_layer"
)

type diagnosticsStep string

const (
	stepNetworkRequest diagnosticsStep = "network_request"
	stepFetch          diagnosticsStep = "fetch"
	stepProcess        diagnosticsStep = "process"
)

type diagnosticsAction string

const (
	actionStart diagnosticsAction = "start"
	actionEnd   diagnosticsAction = "end"
)

const maxMarkerCount = 50

var defaultSamplingRates = map[string]int{
	"initialize":  10000,
	"config_sync": 0,
	"api_call":    0,
}

type marker struct {
	Key       *diagnosticsKey    `json:"key,omitempty"`
	Step      *diagnosticsStep   `json:"step,omitempty"`
	Action    *diagnosticsAction `json:"action,omitempty"`
	Timestamp int64              `json:"timestamp"`
	markerTags
	base *diagnosticsBase
}

type markerTags struct {
	Success     *bool   `json:"success,omitempty"`
	StatusCode  *int    `json:"statusCode,omitempty"`
	IDListCount *int    `json:"idListCount,omitempty"`
	URL         *string `json:"url,omitempty"`
	Name        *string `json:"name,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

type diagnosticsBase struct {
	context       diagnosticsContext
	markers       []marker
	mu            sync.RWMutex
	samplingRates map[string]int
	options       *Options
}

// diagnostics records bracketed markers around initialization, background
// sync, and per-request evaluation, sampled at submission time per §6.
type diagnostics struct {
	initDiagnostics *diagnosticsBase
	syncDiagnostics *diagnosticsBase
	apiDiagnostics  *diagnosticsBase
}

func newDiagnostics(options *Options) *diagnostics {
	return &diagnostics{
		initDiagnostics: &diagnosticsBase{context: contextInitialize, options: options, samplingRates: defaultSamplingRates},
		syncDiagnostics: &diagnosticsBase{context: contextConfigSync, options: options, samplingRates: defaultSamplingRates},
		apiDiagnostics:  &diagnosticsBase{context: contextAPICall, options: options, samplingRates: defaultSamplingRates},
	}
}

func (d *diagnosticsBase) logProcess(msg string) {
	switch d.context {
	case contextInitialize:
		Logger().LogStep(processInitialize, msg)
	case contextConfigSync:
		Logger().LogStep(processSync, msg)
	}
}

// serializeWithSampling returns the accumulated markers for this context,
// gated by the configured sampling rate (per ten-thousand).
func (d *diagnosticsBase) serializeWithSampling() (map[string]interface{}, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rate, ok := d.samplingRates[string(d.context)]
	if !ok || len(d.markers) == 0 {
		return map[string]interface{}{}, false
	}
	if !sample(rate) {
		return map[string]interface{}{}, false
	}
	return map[string]interface{}{"context": d.context, "markers": d.markers}, true
}

func (d *diagnosticsBase) updateSamplingRates(rates map[string]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samplingRates = rates
}

func sample(rateOverTenThousand int) bool {
	return int(rand.Float64()*10_000) < rateOverTenThousand
}

func (d *diagnosticsBase) clearMarkers() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers = nil
}

func (d *diagnosticsBase) isDisabled() bool {
	if d.options == nil {
		return false
	}
	opts := d.options.OutputLoggerOptions
	return (opts.DisableInitDiagnostics && d.context == contextInitialize) ||
		(opts.DisableSyncDiagnostics && d.context == contextConfigSync)
}

func (d *diagnostics) initialize() *marker  { return &marker{base: d.initDiagnostics} }
func (d *diagnostics) configSync() *marker  { return &marker{base: d.syncDiagnostics} }
func (d *diagnostics) api() *marker         { return &marker{base: d.apiDiagnostics} }

func (m *marker) withKey(k diagnosticsKey) *marker       { m.Key = &k; return m }
func (m *marker) withStep(s diagnosticsStep) *marker     { m.Step = &s; return m }
func (m *marker) withAction(a diagnosticsAction) *marker { m.Action = &a; return m }

func (m *marker) downloadConfigSpecs() *marker { return m.withKey(keyDownloadConfigSpecs) }
func (m *marker) bootstrap() *marker           { return m.withKey(keyBootstrap) }
func (m *marker) getIDListSources() *marker    { return m.withKey(keyGetIDListSources) }
func (m *marker) getIDList() *marker           { return m.withKey(keyGetIDList) }
func (m *marker) overall() *marker             { return m.withKey(keyOverall) }
func (m *marker) dataStoreSpecs() *marker      { return m.withKey(keyDataStoreSpecs) }
func (m *marker) dataStoreIDLists() *marker    { return m.withKey(keyDataStoreIDLists) }
func (m *marker) dataStoreIDList() *marker     { return m.withKey(keyDataStoreIDList) }
func (m *marker) checkGate() *marker           { return m.withKey(keyCheckGateAPI) }
func (m *marker) getConfig() *marker           { return m.withKey(keyGetConfigAPI) }
func (m *marker) getLayer() *marker            { return m.withKey(keyGetLayerAPI) }

func (m *marker) networkRequest() *marker { return m.withStep(stepNetworkRequest) }
func (m *marker) fetch() *marker          { return m.withStep(stepFetch) }
func (m *marker) process() *marker        { return m.withStep(stepProcess) }

func (m *marker) start() *marker { return m.withAction(actionStart) }
func (m *marker) end() *marker   { return m.withAction(actionEnd) }

func (m *marker) success(v bool) *marker     { m.Success = &v; return m }
func (m *marker) statusCode(v int) *marker   { m.StatusCode = &v; return m }
func (m *marker) idListCount(v int) *marker  { m.IDListCount = &v; return m }
func (m *marker) url(v string) *marker       { m.URL = &v; return m }
func (m *marker) name(v string) *marker      { m.Name = &v; return m }
func (m *marker) reason(v string) *marker    { m.Reason = &v; return m }

// mark appends the marker to its base's list, subject to maxMarkerCount (once
// the list is full, new markers are dropped) and isDisabled, then echoes a
// human-readable line through the OutputLogger.
func (m *marker) mark() {
	m.Timestamp = time.Now().UnixNano() / int64(time.Millisecond)
	m.base.mu.Lock()
	defer m.base.mu.Unlock()
	if len(m.base.markers) >= maxMarkerCount || m.base.isDisabled() {
		return
	}
	m.base.markers = append(m.base.markers, *m)
	m.logProcess()
}

func (m *marker) logProcess() {
	var dataType, dataSource string
	switch *m.Key {
	case keyBootstrap:
		dataType, dataSource = "specs", "bootstrap"
	case keyDownloadConfigSpecs:
		dataType, dataSource = "specs", "network"
	case keyDataStoreSpecs:
		dataType, dataSource = "specs", "adapter"
	case keyGetIDListSources:
		dataType, dataSource = "list of id lists", "network"
	case keyDataStoreIDLists:
		dataType, dataSource = "list of id lists", "adapter"
	case keyGetIDList:
		dataType, dataSource = fmt.Sprintf("id list (%s)", derefStr(m.Name)), "network"
	case keyDataStoreIDList:
		dataType, dataSource = fmt.Sprintf("id list (%s)", derefStr(m.Name)), "adapter"
	case keyOverall:
	default:
		return
	}

	var msg string
	if *m.Key == keyOverall {
		if *m.Action == actionStart {
			msg = "starting..."
		} else {
			msg = "done"
		}
	} else {
		switch *m.Step {
		case stepNetworkRequest, stepFetch:
			if *m.Action == actionStart {
				msg = fmt.Sprintf("loading %s from %s...", dataType, dataSource)
			} else if m.Success != nil && *m.Success {
				msg = fmt.Sprintf("done loading %s from %s", dataType, dataSource)
			} else {
				msg = fmt.Sprintf("failed to load %s from %s", dataType, dataSource)
			}
		case stepProcess:
			if *m.Action == actionStart {
				msg = fmt.Sprintf("processing %s from %s", dataType, dataSource)
			} else if m.Success != nil && *m.Success {
				msg = fmt.Sprintf("done processing %s from %s", dataType, dataSource)
			} else {
				msg = fmt.Sprintf("failed to process %s from %s", dataType, dataSource)
			}
		}
	}
	m.base.logProcess(msg)
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
