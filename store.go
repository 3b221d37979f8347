package flagcore

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var syncOutdatedMax = 2 * time.Minute

// SpecStore owns the locally-cached ruleset and ID-list catalog and keeps
// it current via background polling, an optional DataAdapter, or a
// one-shot bootstrap payload.
type SpecStore struct {
	featureGates      map[string]ConfigSpec
	dynamicConfigs    map[string]ConfigSpec
	layerConfigs      map[string]ConfigSpec
	experimentToLayer map[string]string

	idLists *idListRegistry

	lastSyncTime    int64
	initialSyncTime int64
	initSource      EvaluationSource

	fetcher              *fetcher
	configSyncInterval   time.Duration
	idListSyncInterval   time.Duration
	rulesUpdatedCallback func(rules string, time int64)
	errorBoundary        *errorBoundary
	dataAdapter          DataAdapter
	syncFailureCount     int
	diagnostics          *diagnostics
	sdkKey               string
	sdkConfigs           *sdkConfigs

	mu                   sync.RWMutex
	isPolling            bool
	shuttingDown         bool
	bootstrapValues      string
	rulesetsSyncDisabled bool
	idListsSyncDisabled  bool

	// Watchdog: each poller stamps its own "last active" timestamp (unix
	// millis) at the start of every tick. resetSyncTimerIfExited compares
	// these against now to detect a poller that silently exited (e.g. an
	// uncaught panic) and kicks it back to life.
	rulesetLastActiveMs int64
	idListLastActiveMs  int64
}

func newSpecStore(f *fetcher, eb *errorBoundary, options *Options, diag *diagnostics, sdkKey string) *SpecStore {
	configSyncInterval := 10 * time.Second
	idListSyncInterval := time.Minute
	if options.ConfigSyncInterval > 0 {
		configSyncInterval = options.ConfigSyncInterval
	}
	if options.IDListSyncInterval > 0 {
		idListSyncInterval = options.IDListSyncInterval
	}
	return &SpecStore{
		featureGates:         make(map[string]ConfigSpec),
		dynamicConfigs:       make(map[string]ConfigSpec),
		layerConfigs:         make(map[string]ConfigSpec),
		experimentToLayer:    make(map[string]string),
		idLists:              newIDListRegistry(),
		fetcher:              f,
		configSyncInterval:   configSyncInterval,
		idListSyncInterval:   idListSyncInterval,
		rulesUpdatedCallback: options.RulesUpdatedCallback,
		errorBoundary:        eb,
		initSource:           sourceUninitialized,
		dataAdapter:          options.DataAdapter,
		diagnostics:          diag,
		sdkKey:               sdkKey,
		sdkConfigs:           newSDKConfigs(),
		bootstrapValues:      options.BootstrapValues,
	}
}

// getSDKConfigs returns the runtime flags/configs shipped with the most
// recent sync. Its one consumer is the event logger, which reads
// exposure_dedupe_window_seconds from it.
func (s *SpecStore) getSDKConfigs() *sdkConfigs {
	return s.sdkConfigs
}

// initialize populates the store once, preferring a DataAdapter over
// BootstrapValues over a first network call, then always reconciling with
// the network if nothing populated the store yet.
func (s *SpecStore) initialize(options *Options) {
	s.mu.Lock()
	s.rulesetsSyncDisabled = options.DisableRulesetsSync
	s.idListsSyncDisabled = options.DisableIDListSync
	s.mu.Unlock()

	firstAttempt := true
	if s.dataAdapter != nil {
		firstAttempt = false
		s.dataAdapter.Initialize()
		s.fetchConfigSpecsFromAdapter()
	} else if s.bootstrapValues != "" {
		firstAttempt = false
		if _, updated := s.processConfigSpecs(s.bootstrapValues, s.addDiagnostics().bootstrap()); updated {
			s.mu.Lock()
			s.initSource = sourceBootstrap
			s.mu.Unlock()
		}
	}

	if s.lastSyncTime == 0 && !options.DisableRulesetsSync {
		if !firstAttempt {
			s.diagnostics.initDiagnostics.logProcess("retrying with network...")
		}
		s.fetchConfigSpecsFromServer(true)
	}

	s.mu.Lock()
	s.initialSyncTime = s.lastSyncTime
	s.mu.Unlock()

	if !options.DisableIDListSync && options.InitStrategyForIDLists != IDListStrategyNone {
		if options.InitStrategyForIDLists == IDListStrategyLazy {
			// first fetch deferred to the poller's next tick
		} else if s.dataAdapter != nil {
			s.fetchIDListsFromAdapter()
		} else {
			s.fetchIDListsFromServer()
		}
	}

	if !options.DisableRulesetsSync || !options.DisableIDListSync {
		s.startPolling(options)
	}
}

func (s *SpecStore) startPolling(options *Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isPolling {
		return
	}
	s.isPolling = true
	if !options.DisableRulesetsSync {
		atomic.StoreInt64(&s.rulesetLastActiveMs, getUnixMilli())
		go s.pollForRulesetChanges()
	}
	if !options.DisableIDListSync {
		atomic.StoreInt64(&s.idListLastActiveMs, getUnixMilli())
		go s.pollForIDListChanges()
	}
}

// isServingChecks reports whether the store has ever successfully populated
// its catalog from an adapter, bootstrap payload, or the network.
func (s *SpecStore) isServingChecks() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initSource != sourceUninitialized
}

// getLastUpdateTime returns the server timestamp of the most recently
// applied sync, used as the client-projection payload's Time field instead
// of wall-clock "now".
func (s *SpecStore) getLastUpdateTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncTime
}

// resetSyncTimerIfExited is the watchdog safety net: it may be called at
// any time (including from the request path) to detect a poller that has
// gone quiet for longer than its own sync interval (or SYNC_OUTDATED_MAX,
// whichever is larger) and force it back to life. Idempotent under rapid
// invocation, since each forced poller immediately re-stamps its own
// last-active timestamp. Returns a non-nil error naming which timer(s) were
// forced, for the host to log; returns nil when every poller is healthy.
func (s *SpecStore) resetSyncTimerIfExited() error {
	s.mu.RLock()
	isPolling := s.isPolling
	shuttingDown := s.shuttingDown
	rulesetsDisabled := s.rulesetsSyncDisabled
	idListsDisabled := s.idListsSyncDisabled
	s.mu.RUnlock()
	if !isPolling || shuttingDown {
		return nil
	}

	var forced []string

	if !rulesetsDisabled && s.pollerIsDead(&s.rulesetLastActiveMs, s.configSyncInterval) {
		atomic.StoreInt64(&s.rulesetLastActiveMs, getUnixMilli())
		go s.fetchConfigSpecsFromServer(false)
		go s.pollForRulesetChanges()
		forced = append(forced, "ruleset poller")
	}

	if !idListsDisabled && s.pollerIsDead(&s.idListLastActiveMs, s.idListSyncInterval) {
		atomic.StoreInt64(&s.idListLastActiveMs, getUnixMilli())
		go s.fetchIDListsFromServer()
		go s.pollForIDListChanges()
		forced = append(forced, "id-list poller")
	}

	if len(forced) == 0 {
		return nil
	}
	return fmt.Errorf("flagcore: watchdog forced a resync of dead poller(s): %s", strings.Join(forced, ", "))
}

func (s *SpecStore) pollerIsDead(lastActiveMs *int64, configuredInterval time.Duration) bool {
	threshold := configuredInterval
	if syncOutdatedMax > threshold {
		threshold = syncOutdatedMax
	}
	lastActive := time.UnixMilli(atomic.LoadInt64(lastActiveMs))
	return now().Sub(lastActive) > threshold
}

func (s *SpecStore) shutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.mu.Unlock()
	if s.dataAdapter != nil {
		s.dataAdapter.Shutdown()
	}
}

func (s *SpecStore) isShuttingDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuttingDown
}

func (s *SpecStore) getGate(name string) (ConfigSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.featureGates[name]
	return v, ok
}

func (s *SpecStore) getDynamicConfig(name string) (ConfigSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.dynamicConfigs[name]
	return v, ok
}

func (s *SpecStore) getLayerConfig(name string) (ConfigSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.layerConfigs[name]
	return v, ok
}

func (s *SpecStore) getExperimentLayer(experimentName string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layer, ok := s.experimentToLayer[experimentName]
	return layer, ok
}

func (s *SpecStore) getIDList(name string) *IDList {
	return s.idLists.get(name)
}

// snapshotAllGates, snapshotAllDynamicConfigs, and snapshotAllLayers return
// shallow copies of the current catalog, used to build a client bootstrap
// projection without holding the store lock across every spec's evaluation.
func (s *SpecStore) snapshotAllGates() map[string]ConfigSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConfigSpec, len(s.featureGates))
	for k, v := range s.featureGates {
		out[k] = v
	}
	return out
}

func (s *SpecStore) snapshotAllDynamicConfigs() map[string]ConfigSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConfigSpec, len(s.dynamicConfigs))
	for k, v := range s.dynamicConfigs {
		out[k] = v
	}
	return out
}

func (s *SpecStore) snapshotAllLayers() map[string]ConfigSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConfigSpec, len(s.layerConfigs))
	for k, v := range s.layerConfigs {
		out[k] = v
	}
	return out
}

func (s *SpecStore) snapshotEvaluationDetails() *EvaluationDetails {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newEvaluationDetails(s.initSource, reasonNone, s.lastSyncTime, s.initialSyncTime)
}

// --- config specs: adapter / bootstrap / network ---

func (s *SpecStore) fetchConfigSpecsFromAdapter() {
	s.addDiagnostics().dataStoreSpecs().fetch().start().mark()
	defer func() {
		if err := recover(); err != nil {
			Logger().LogError(fmt.Sprintf("data adapter Get panicked: %v", err))
		}
	}()
	raw := s.dataAdapter.Get(CONFIG_SPECS_KEY)
	s.addDiagnostics().dataStoreSpecs().fetch().end().success(true).mark()
	if _, updated := s.processConfigSpecs(raw, s.addDiagnostics().dataStoreSpecs()); updated {
		s.mu.Lock()
		s.initSource = sourceDataAdapter
		s.mu.Unlock()
	}
}

func (s *SpecStore) saveConfigSpecsToAdapter(specs downloadConfigSpecResponse) {
	if s.dataAdapter == nil {
		return
	}
	raw, err := json.Marshal(specs)
	defer func() {
		if r := recover(); r != nil {
			Logger().LogError(fmt.Sprintf("data adapter Set panicked: %v", r))
		}
	}()
	if err == nil {
		s.dataAdapter.Set(CONFIG_SPECS_KEY, string(raw))
	}
}

func (s *SpecStore) handleSyncError(err error, isColdStart bool) {
	s.syncFailureCount++
	failDuration := time.Duration(s.syncFailureCount) * s.configSyncInterval
	if isColdStart {
		Logger().LogError("failed to initialize from the network")
		s.errorBoundary.logException(err)
	} else if failDuration > syncOutdatedMax {
		Logger().LogError(fmt.Sprintf(
			"syncing has failed for %dms; serving the last successful ruleset",
			int64(failDuration/time.Millisecond)))
		s.errorBoundary.logException(err)
		s.syncFailureCount = 0
	}
}

func (s *SpecStore) fetchConfigSpecsFromServer(isColdStart bool) {
	if s.fetcher.options.LocalMode {
		return
	}
	var specs downloadConfigSpecResponse
	res, err := s.fetcher.downloadConfigSpecs(s.getLastUpdateTime(), &specs)
	if res == nil || err != nil {
		s.handleSyncError(err, isColdStart)
		return
	}
	parsed, updated := s.processConfigSpecs(specs, s.addDiagnostics().downloadConfigSpecs())
	if !parsed {
		return
	}
	s.mu.Lock()
	if updated {
		s.initSource = sourceNetwork
	} else {
		s.initSource = sourceNetworkNotModified
	}
	s.mu.Unlock()
	if updated {
		if s.rulesUpdatedCallback != nil {
			raw, _ := json.Marshal(specs)
			s.rulesUpdatedCallback(string(raw), specs.Time)
		}
		s.saveConfigSpecsToAdapter(specs)
	}
}

func (s *SpecStore) processConfigSpecs(configSpecs interface{}, diagMarker *marker) (parsed bool, updated bool) {
	diagMarker.process().start().mark()
	defer func() {
		diagMarker.process().end().success(parsed).mark()
	}()

	var specs downloadConfigSpecResponse
	switch v := configSpecs.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &specs); err != nil {
			return false, false
		}
	case downloadConfigSpecResponse:
		specs = v
	default:
		return false, false
	}
	parsed, updated = s.setConfigSpecs(specs)
	return parsed, updated
}

func (s *SpecStore) setConfigSpecs(specs downloadConfigSpecResponse) (bool, bool) {
	if specs.Time < s.getLastUpdateTime() {
		return false, false
	}
	s.diagnostics.initDiagnostics.updateSamplingRates(specs.DiagnosticsSampleRates)
	s.diagnostics.syncDiagnostics.updateSamplingRates(specs.DiagnosticsSampleRates)
	s.diagnostics.apiDiagnostics.updateSamplingRates(specs.DiagnosticsSampleRates)
	if specs.SDKFlags != nil {
		s.sdkConfigs.setFlags(specs.SDKFlags)
	}
	if specs.SDKConfigs != nil {
		s.sdkConfigs.setConfigs(specs.SDKConfigs)
	}

	if !specs.HasUpdates {
		return true, false
	}

	newGates := make(map[string]ConfigSpec, len(specs.FeatureGates))
	for _, gate := range specs.FeatureGates {
		parseUserBucketTargets(&gate)
		newGates[gate.Name] = gate
	}

	newConfigs := make(map[string]ConfigSpec, len(specs.DynamicConfigs))
	for _, cfg := range specs.DynamicConfigs {
		parseUserBucketTargets(&cfg)
		parseReturnValues(&cfg)
		newConfigs[cfg.Name] = cfg
	}

	newLayers := make(map[string]ConfigSpec, len(specs.LayerConfigs))
	for _, layer := range specs.LayerConfigs {
		parseUserBucketTargets(&layer)
		parseReturnValues(&layer)
		newLayers[layer.Name] = layer
	}

	newExperimentToLayer := make(map[string]string)
	for layerName, experiments := range specs.Layers {
		for _, experiment := range experiments {
			newExperimentToLayer[experiment] = layerName
		}
	}

	s.mu.Lock()
	if specs.Time < s.lastSyncTime {
		s.mu.Unlock()
		return false, false
	}
	s.featureGates = newGates
	s.dynamicConfigs = newConfigs
	s.layerConfigs = newLayers
	s.experimentToLayer = newExperimentToLayer
	s.lastSyncTime = specs.Time
	s.mu.Unlock()
	return true, true
}

// --- id lists: adapter / network ---

func (s *SpecStore) fetchIDListsFromAdapter() {
	s.addDiagnostics().dataStoreIDLists().fetch().start().mark()
	defer func() {
		if r := recover(); r != nil {
			Logger().LogError(fmt.Sprintf("data adapter Get panicked: %v", r))
		}
	}()
	raw := s.dataAdapter.Get(ID_LISTS_KEY)
	var meta map[string]idListMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.addDiagnostics().dataStoreIDLists().fetch().end().success(false).mark()
		return
	}
	s.addDiagnostics().dataStoreIDLists().fetch().end().success(true).idListCount(len(meta)).mark()
	s.reconcileIDLists(meta, idListSourceAdapter)
}

func (s *SpecStore) fetchIDListsFromServer() {
	if s.fetcher.options.LocalMode {
		return
	}
	var meta map[string]idListMeta
	_, err := s.fetcher.getIDListSources(&meta)
	if err != nil {
		s.errorBoundary.logException(err)
		return
	}
	s.addDiagnostics().getIDListSources().process().start().idListCount(len(meta)).mark()
	s.reconcileIDLists(meta, idListSourceNetwork)
	s.addDiagnostics().getIDListSources().process().end().success(true).idListCount(len(meta)).mark()
	s.saveIDListsToAdapter(meta)
}

func (s *SpecStore) reconcileIDLists(meta map[string]idListMeta, source idListSource) {
	pending := s.idLists.reconcile(meta)
	var wg sync.WaitGroup
	for _, list := range pending {
		wg.Add(1)
		go func(l *IDList) {
			defer wg.Done()
			switch source {
			case idListSourceNetwork:
				s.downloadSingleIDListFromServer(l)
			case idListSourceAdapter:
				s.getSingleIDListFromAdapter(l)
			}
		}(list)
	}
	wg.Wait()
}

func (s *SpecStore) saveIDListsToAdapter(meta map[string]idListMeta) {
	if s.dataAdapter == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	s.dataAdapter.Set(ID_LISTS_KEY, string(raw))
	for name := range meta {
		if list := s.idLists.get(name); list != nil {
			s.dataAdapter.Set(fmt.Sprintf("%s::%s", ID_LISTS_KEY, name), idListSnapshot(list))
		}
	}
}

func idListSnapshot(list *IDList) string {
	var ids []string
	list.ids.Range(func(k, _ interface{}) bool {
		ids = append(ids, k.(string))
		return true
	})
	var sb []byte
	for _, id := range ids {
		sb = append(sb, '+')
		sb = append(sb, id...)
		sb = append(sb, '\n')
	}
	return string(sb)
}

func (s *SpecStore) downloadSingleIDListFromServer(list *IDList) {
	s.addDiagnostics().getIDList().networkRequest().start().name(list.Name).url(list.URL).mark()
	res, err := s.fetcher.getIDList(list.URL, map[string]string{"Range": fmt.Sprintf("bytes=%d-", list.currentSize())})
	if err != nil || res == nil {
		s.addDiagnostics().getIDList().networkRequest().end().name(list.Name).url(list.URL).success(false).mark()
		s.errorBoundary.logException(err)
		return
	}
	defer res.Body.Close()
	s.addDiagnostics().getIDList().networkRequest().end().name(list.Name).url(list.URL).success(true).statusCode(res.StatusCode).mark()

	if _, ok := parseContentLength(res.Header.Get("content-length")); !ok {
		s.addDiagnostics().getIDList().process().end().name(list.Name).success(false).mark()
		return
	}
	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		s.addDiagnostics().getIDList().process().end().name(list.Name).success(false).mark()
		s.errorBoundary.logException(err)
		return
	}
	content := string(bodyBytes)
	if len(content) <= 1 || (content[0] != '-' && content[0] != '+') {
		s.idLists.delete(list.Name)
		return
	}
	s.addDiagnostics().getIDList().process().start().name(list.Name).mark()
	list.applyLines(content, len(bodyBytes))
	s.addDiagnostics().getIDList().process().end().name(list.Name).success(true).mark()
}

func (s *SpecStore) getSingleIDListFromAdapter(list *IDList) {
	s.addDiagnostics().dataStoreIDList().fetch().start().name(list.Name).mark()
	defer func() {
		if r := recover(); r != nil {
			Logger().LogError(fmt.Sprintf("data adapter Get panicked: %v", r))
		}
	}()
	content := s.dataAdapter.Get(fmt.Sprintf("%s::%s", ID_LISTS_KEY, list.Name))
	if int64(len(content)) <= list.currentSize() {
		s.addDiagnostics().dataStoreIDList().fetch().end().name(list.Name).success(true).mark()
		return
	}
	tail := content[list.currentSize():]
	s.addDiagnostics().dataStoreIDList().fetch().end().name(list.Name).success(true).mark()
	list.applyLines(tail, len(tail))
}

func (s *SpecStore) pollForIDListChanges() {
	for {
		time.Sleep(s.idListSyncInterval)
		atomic.StoreInt64(&s.idListLastActiveMs, getUnixMilli())
		if s.isShuttingDown() {
			return
		}
		if s.dataAdapter != nil && s.dataAdapter.ShouldBeUsedForQueryingUpdates(ID_LISTS_KEY) {
			s.fetchIDListsFromAdapter()
		} else {
			s.fetchIDListsFromServer()
		}
	}
}

func (s *SpecStore) pollForRulesetChanges() {
	for {
		time.Sleep(s.configSyncInterval)
		atomic.StoreInt64(&s.rulesetLastActiveMs, getUnixMilli())
		if s.isShuttingDown() {
			return
		}
		prevLcut := s.getLastUpdateTime()
		if s.dataAdapter != nil && s.dataAdapter.ShouldBeUsedForQueryingUpdates(CONFIG_SPECS_KEY) {
			s.fetchConfigSpecsFromAdapter()
		} else {
			s.fetchConfigSpecsFromServer(false)
		}
		newLcut := s.getLastUpdateTime()
		s.mu.RLock()
		source := s.initSource
		s.mu.RUnlock()
		Logger().LogConfigSyncUpdate(true, newLcut != prevLcut, newLcut, prevLcut, string(source), "")
	}
}

func (s *SpecStore) addDiagnostics() *marker {
	return s.diagnostics.configSync()
}

func djb2HashString(s string) string {
	return strconv.FormatUint(uint64(djb2Hash(s)), 10)
}
