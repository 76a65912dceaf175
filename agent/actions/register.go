package actions

import "travelagent/agent/registry"

// RegisterDefaults registers the full reference action catalog (places,
// transport, itinerary, policy, webbrowse) on reg. Callers that only need a
// subset can call the family-specific register functions directly instead.
func RegisterDefaults(reg *registry.Registry) error {
	if err := registerPlaces(reg); err != nil {
		return err
	}
	if err := registerTransport(reg); err != nil {
		return err
	}
	if err := registerItinerary(reg); err != nil {
		return err
	}
	if err := registerPolicy(reg); err != nil {
		return err
	}
	return registerWebbrowse(reg)
}
