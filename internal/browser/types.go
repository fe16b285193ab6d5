// Package browser fetches fully rendered HTML through long-lived headless
// Chrome environments, routing each URL either directly or through a proxy
// based on a glob whitelist.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrAttemptsExhausted is returned by Fetch when every attempt failed.
// The failure kind (timeout vs. other) is visible only in the logs.
var ErrAttemptsExhausted = errors.New("all fetch attempts failed")

// ErrSessionClosed is returned by Fetch after Close has been called.
var ErrSessionClosed = errors.New("session closed")

// WaitUntil names the navigation-completion condition for a fetch.
type WaitUntil string

// Navigation-completion conditions. WaitLoad is the default.
const (
	WaitCommit           WaitUntil = "commit"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitLoad             WaitUntil = "load"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// ParseWaitUntil validates a wire-level wait_until value. The empty string
// maps to WaitLoad.
func ParseWaitUntil(value string) (WaitUntil, error) {
	switch WaitUntil(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return WaitLoad, nil
	case WaitCommit:
		return WaitCommit, nil
	case WaitDOMContentLoaded:
		return WaitDOMContentLoaded, nil
	case WaitLoad:
		return WaitLoad, nil
	case WaitNetworkIdle:
		return WaitNetworkIdle, nil
	default:
		return "", fmt.Errorf("unknown wait_until %q", value)
	}
}

// ResourceType categorizes a network request for selective blocking.
type ResourceType string

// Resource types eligible for blocking, matching the CDP network domain.
const (
	ResourceDocument    ResourceType = "document"
	ResourceStylesheet  ResourceType = "stylesheet"
	ResourceImage       ResourceType = "image"
	ResourceMedia       ResourceType = "media"
	ResourceFont        ResourceType = "font"
	ResourceScript      ResourceType = "script"
	ResourceTextTrack   ResourceType = "texttrack"
	ResourceXHR         ResourceType = "xhr"
	ResourceFetch       ResourceType = "fetch"
	ResourceEventSource ResourceType = "eventsource"
	ResourceWebSocket   ResourceType = "websocket"
	ResourceManifest    ResourceType = "manifest"
	ResourceOther       ResourceType = "other"
)

var knownResourceTypes = map[ResourceType]struct{}{
	ResourceDocument:    {},
	ResourceStylesheet:  {},
	ResourceImage:       {},
	ResourceMedia:       {},
	ResourceFont:        {},
	ResourceScript:      {},
	ResourceTextTrack:   {},
	ResourceXHR:         {},
	ResourceFetch:       {},
	ResourceEventSource: {},
	ResourceWebSocket:   {},
	ResourceManifest:    {},
	ResourceOther:       {},
}

// ParseResourceTypes validates a list of wire-level resource type names.
func ParseResourceTypes(values []string) ([]ResourceType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	types := make([]ResourceType, 0, len(values))
	for _, raw := range values {
		rt := ResourceType(strings.ToLower(strings.TrimSpace(raw)))
		if _, ok := knownResourceTypes[rt]; !ok {
			return nil, fmt.Errorf("unknown resource type %q", raw)
		}
		types = append(types, rt)
	}
	return types, nil
}

// FetchRequest captures everything needed to fetch one URL.
//
// Zero values for Retries and Timeout mean "use the Session default",
// so a retry count of zero cannot be requested explicitly.
type FetchRequest struct {
	URL       string
	Retries   int
	Timeout   time.Duration
	WaitUntil WaitUntil
	Selector  string
	Abort     []ResourceType
}

func abortSet(types []ResourceType) map[ResourceType]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[ResourceType]struct{}, len(types))
	for _, rt := range types {
		set[rt] = struct{}{}
	}
	return set
}
