package flagcore

import (
	"runtime"

	"github.com/google/uuid"
)

const sdkType = "go-sdk"
const sdkVersion = "0.1.0"

type clientMetadata struct {
	SDKType         string `json:"sdkType"`
	SDKVersion      string `json:"sdkVersion"`
	LanguageVersion string `json:"languageVersion"`
	SessionID       string `json:"sessionID"`
}

func newClientMetadata() clientMetadata {
	return clientMetadata{
		SDKType:         sdkType,
		SDKVersion:      sdkVersion,
		LanguageVersion: runtime.Version(),
		SessionID:       uuid.NewString(),
	}
}
