package config

import "strings"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

func isProductionLike(environment string) bool {
	switch strings.ToLower(environment) {
	case EnvProduction, EnvStaging:
		return true
	default:
		return false
	}
}
