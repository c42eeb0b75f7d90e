package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Wikid82/bookingshield/internal/ratelimit"
)

// Protected endpoint names.
const (
	EndpointBookingCreation    = "booking_creation"
	EndpointAvailabilityLookup = "availability_lookup"
	EndpointWaitlistSignup     = "waitlist_signup"
	EndpointContactForm        = "contact_form"
	EndpointAdminLogin         = "admin_login"
)

// DefaultEndpoints returns the built-in limits for every protected endpoint.
func DefaultEndpoints() map[string]ratelimit.Config {
	defaults := []ratelimit.Config{
		{Endpoint: EndpointBookingCreation, MaxRequests: 5, WindowSeconds: 60, BlockDurationSeconds: 300, CaptchaThreshold: ratelimit.Threshold(3)},
		{Endpoint: EndpointAvailabilityLookup, MaxRequests: 60, WindowSeconds: 60, BlockDurationSeconds: 120},
		{Endpoint: EndpointWaitlistSignup, MaxRequests: 3, WindowSeconds: 300, BlockDurationSeconds: 600, CaptchaThreshold: ratelimit.Threshold(2)},
		{Endpoint: EndpointContactForm, MaxRequests: 3, WindowSeconds: 600, BlockDurationSeconds: 1800, CaptchaThreshold: ratelimit.Threshold(2)},
		{Endpoint: EndpointAdminLogin, MaxRequests: 5, WindowSeconds: 300, BlockDurationSeconds: 900},
	}
	out := make(map[string]ratelimit.Config, len(defaults))
	for _, d := range defaults {
		out[d.Endpoint] = d
	}
	return out
}

// loadEndpoints applies SHIELD_RATELIMIT_<ENDPOINT> overrides to the defaults
// and adds custom endpoints from SHIELD_RATELIMIT_EXTRA
// (name=max:window:block[:captcha],...).
func loadEndpoints() (map[string]ratelimit.Config, error) {
	endpoints := DefaultEndpoints()

	for name := range endpoints {
		envKey := "SHIELD_RATELIMIT_" + strings.ToUpper(name)
		raw := strings.TrimSpace(os.Getenv(envKey))
		if raw == "" {
			continue
		}
		ep, err := ParseEndpointSpec(name, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envKey, err)
		}
		endpoints[name] = ep
	}

	extra := strings.TrimSpace(os.Getenv("SHIELD_RATELIMIT_EXTRA"))
	if extra == "" {
		return endpoints, nil
	}
	for _, item := range strings.Split(extra, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, spec, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid SHIELD_RATELIMIT_EXTRA entry %q: want name=max:window:block[:captcha]", item)
		}
		name = strings.TrimSpace(name)
		ep, err := ParseEndpointSpec(name, spec)
		if err != nil {
			return nil, fmt.Errorf("invalid SHIELD_RATELIMIT_EXTRA entry %q: %w", item, err)
		}
		endpoints[name] = ep
	}
	return endpoints, nil
}

// ParseEndpointSpec parses "max:window:block[:captcha]". A captcha value of
// "none" or an omitted fourth part disables CAPTCHA escalation.
func ParseEndpointSpec(name, spec string) (ratelimit.Config, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 3 && len(parts) != 4 {
		return ratelimit.Config{}, fmt.Errorf("limit must follow MAX:WINDOW_SECONDS:BLOCK_SECONDS[:CAPTCHA_THRESHOLD]: %s", spec)
	}

	nums := make([]int, 3)
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return ratelimit.Config{}, fmt.Errorf("invalid number %q: %w", parts[i], err)
		}
		nums[i] = n
	}

	ep := ratelimit.Config{
		Endpoint:             name,
		MaxRequests:          nums[0],
		WindowSeconds:        nums[1],
		BlockDurationSeconds: nums[2],
	}
	if len(parts) == 4 {
		raw := strings.ToLower(strings.TrimSpace(parts[3]))
		if raw != "" && raw != "none" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return ratelimit.Config{}, fmt.Errorf("invalid captcha threshold %q: %w", parts[3], err)
			}
			ep.CaptchaThreshold = ratelimit.Threshold(n)
		}
	}
	if err := ep.Validate(); err != nil {
		return ratelimit.Config{}, err
	}
	return ep, nil
}
