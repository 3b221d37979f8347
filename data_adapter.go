package flagcore

// Storage keys a DataAdapter is asked to Get/Set. ID lists additionally use
// "<ID_LISTS_KEY>::<name>" for each individual list's current members, one
// "+id" line each.
const (
	CONFIG_SPECS_KEY = "rulesets"
	ID_LISTS_KEY      = "id_lists"
)

// DataAdapter lets a host plug in an external cache (Redis, a file, a
// sidecar) for the ruleset and ID-list catalog, taking precedence over
// network sync and BootstrapValues without surfacing that precedence to the
// caller.
type DataAdapter interface {
	// Get returns the previously Set value for key, or "" if absent.
	Get(key string) string

	// Set stores value under key, overwriting any previous value.
	Set(key string, value string)

	// ShouldBeUsedForQueryingUpdates reports whether the store should poll
	// this adapter instead of the network for the given key's updates.
	ShouldBeUsedForQueryingUpdates(key string) bool

	// Initialize runs any startup work before the first Get/Set call.
	Initialize()

	// Shutdown runs cleanup work when the owning Client is shut down.
	Shutdown()
}
