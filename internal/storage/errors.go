package storage

import "errors"

var (
	// ErrTenantNotFound is returned when a tenant is not found
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrProviderNotFound is returned when a provider is not found
	ErrProviderNotFound = errors.New("provider not found")

	// ErrPolicyNotFound is returned when a tenant has no policy row
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrPricingNotFound is returned when no pricing row matches
	ErrPricingNotFound = errors.New("pricing model not found")

	// ErrSettingNotFound is returned when a system setting is not found
	ErrSettingNotFound = errors.New("setting not found")
)
