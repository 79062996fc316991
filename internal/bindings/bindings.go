// Package bindings holds the compile-time eventType → broker
// destination map (spec §3.1 EventBinding, §6.2). It is the single
// source of truth; the publisher fails fast when a row's eventType has
// no entry here.
package bindings

import "github.com/wallethub/eventcore/internal/domain/walletevents"

// destinations is built once at package init and is immutable
// thereafter — safe for concurrent reads from the publisher and any
// number of dispatcher goroutines.
var destinations = map[string]string{
	walletevents.TypeWalletCreated:    "wallet-created-topic",
	walletevents.TypeFundsAdded:       "funds-added-topic",
	walletevents.TypeFundsWithdrawn:   "funds-withdrawn-topic",
	walletevents.TypeFundsTransferred: "funds-transferred-topic",
}

// Lookup returns the broker destination bound to eventType and whether
// a binding exists.
func Lookup(eventType string) (string, bool) {
	dest, ok := destinations[eventType]
	return dest, ok
}

// Destinations returns every distinct destination this binding table
// routes to, used by the composition root to start one dispatcher per
// subscription (spec §4.5, §5).
func Destinations() []string {
	seen := make(map[string]struct{}, len(destinations))
	out := make([]string, 0, len(destinations))
	for _, dest := range destinations {
		if _, ok := seen[dest]; ok {
			continue
		}
		seen[dest] = struct{}{}
		out = append(out, dest)
	}
	return out
}
