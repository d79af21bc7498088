package evt

import (
	"github.com/asaskevich/EventBus"
)

const (
	// ApplicationStarted fires on start of the application. Parameter: version number, build time
	ApplicationStarted = "application:started"

	// RegistryUpdated fires if the owner bound a handler to an id. Parameter: registry name, id, handler name
	RegistryUpdated = "registry:updated"

	// TrustAnchorsRotated fires if the trust anchor set was replaced. Parameter: new version, anchor count
	TrustAnchorsRotated = "anchors:rotated"

	// VerificationCompleted fires after each proof verification.
	// Parameter: outcome ("accepted" or the error kind), duration
	VerificationCompleted = "verification:completed"

	// VerificationCacheHit fires, if a verification result was found in the cache
	VerificationCacheHit = "verification:cacheHit"

	// VerificationCacheMiss fires, if a verification result was not found in the cache
	VerificationCacheMiss = "verification:cacheMiss"

	// VerificationCacheChanged fires if the result cache was changed, Parameter: new cache size
	VerificationCacheChanged = "verification:cacheChanged"
)

// nolint
var evtBus = EventBus.New()

// Bus returns the global bus instance
func Bus() EventBus.Bus {
	return evtBus
}
