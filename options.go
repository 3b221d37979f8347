package flagcore

import "time"

// InitStrategyForIDLists controls how the initial ID-list fetch participates
// in Client initialization.
type InitStrategyForIDLists string

const (
	// IDListStrategyAwait fetches ID lists synchronously before init returns.
	IDListStrategyAwait InitStrategyForIDLists = "await"
	// IDListStrategyLazy schedules the first fetch on the next poller tick.
	IDListStrategyLazy InitStrategyForIDLists = "lazy"
	// IDListStrategyNone never fetches ID lists.
	IDListStrategyNone InitStrategyForIDLists = "none"
)

// Options configures a Client.
type Options struct {
	API                    string
	APIOverrides           APIOverrides
	Environment            Environment
	LocalMode              bool
	ConfigSyncInterval     time.Duration
	IDListSyncInterval     time.Duration
	InitStrategyForIDLists InitStrategyForIDLists
	BootstrapValues        string
	RulesUpdatedCallback   func(rules string, time int64)
	InitTimeout            time.Duration
	DataAdapter            DataAdapter
	OutputLoggerOptions    OutputLoggerOptions
	EvaluationCallbacks    EvaluationCallbacks
	DisableCDN             bool
	UAParserOptions        UAParserOptions
	DisableIDListSync      bool
	DisableRulesetsSync    bool
	LoggingInterval        time.Duration
	LoggingMaxBufferSize   int
}

// GetSDKEnvironmentTier returns the configured tier, defaulting to
// "production".
func (o *Options) GetSDKEnvironmentTier() string {
	if o.Environment.Tier != "" {
		return o.Environment.Tier
	}
	return "production"
}

// APIOverrides lets a host point individual network calls at different
// hosts (e.g. a CDN for spec downloads, the API for everything else).
type APIOverrides struct {
	DownloadConfigSpecs string
	GetIDLists          string
	LogEvent            string
}

// EvaluationCallbacks are invoked synchronously after each evaluation, in
// addition to — not instead of — exposure logging.
type EvaluationCallbacks struct {
	GateEvaluationCallback       func(name string, result bool, exposure *ExposureEvent)
	ConfigEvaluationCallback     func(name string, result DynamicConfig, exposure *ExposureEvent)
	ExperimentEvaluationCallback func(name string, result DynamicConfig, exposure *ExposureEvent)
	LayerEvaluationCallback      func(name string, param string, result DynamicConfig, exposure *ExposureEvent)
}

// OutputLoggerOptions configures where/whether OutputLogger writes.
type OutputLoggerOptions struct {
	LogCallback            func(message string, err error)
	EnableDebug            bool
	DisableInitDiagnostics bool
	DisableSyncDiagnostics bool
	ObservabilityClient    ObservabilityClient
}

// UAParserOptions controls loading of the user-agent parser used by
// ua_based conditions.
type UAParserOptions struct {
	Disabled     bool // Fully disable the parser; ua_based falls back to direct user fields only
	LazyLoad     bool // Load the parser definitions in the background
	EnsureLoaded bool // Block on the parser being ready when first needed
}

// Environment carries the deployment tier and any custom environment
// params merged into every User.StatsigEnvironment at evaluation time.
type Environment struct {
	Tier   string
	Params map[string]string
}

// ProjectionOptions configures GetClientInitializeResponse.
type ProjectionOptions struct {
	HashAlgorithm string // "sha256" (default), "djb2", or "none"
	// TargetAppID scopes the bootstrap payload to gates/configs/layers whose
	// ConfigSpec.TargetAppIDs either is empty or includes this app; empty
	// TargetAppID means "don't scope," matching every spec.
	TargetAppID string
}
