package flagcore

import "fmt"

// EvaluationSource says where the ruleset that produced an evaluation came
// from.
type EvaluationSource string

const (
	sourceUninitialized      EvaluationSource = "Uninitialized"
	sourceNetwork            EvaluationSource = "Network"
	sourceNetworkNotModified EvaluationSource = "NetworkNotModified"
	sourceBootstrap          EvaluationSource = "Bootstrap"
	sourceDataAdapter        EvaluationSource = "DataAdapter"
)

// EvaluationReason refines Source with why this particular evaluation took
// the path it did.
type EvaluationReason string

const (
	reasonNone          EvaluationReason = "None"
	reasonLocalOverride EvaluationReason = "LocalOverride"
	reasonUnrecognized  EvaluationReason = "Unrecognized"
	reasonUnsupported   EvaluationReason = "Unsupported"
)

// EvaluationDetails is attached to every gate/config/layer result so a host
// can distinguish "really off" from "not yet synced".
type EvaluationDetails struct {
	Source         EvaluationSource
	Reason         EvaluationReason
	ConfigSyncTime int64
	InitTime       int64
	ServerTime     int64
}

func (d EvaluationDetails) detailedReason() string {
	if d.Reason == reasonNone {
		return string(d.Source)
	}
	return fmt.Sprintf("%s:%s", d.Source, d.Reason)
}

func newEvaluationDetails(source EvaluationSource, reason EvaluationReason, configSyncTime, initTime int64) *EvaluationDetails {
	return &EvaluationDetails{
		Source:         source,
		Reason:         reason,
		ConfigSyncTime: configSyncTime,
		InitTime:       initTime,
		ServerTime:     getUnixMilli(),
	}
}
