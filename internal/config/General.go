package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// BasketID is the identifier of the basket this keeper instance manages.
	BasketID uint64

	// WebPort is the port the HTTP status API listens on.
	WebPort uint64

	// PokeIntervalOverride, when non-zero, overrides the poke interval from
	// the active protocol parameters. Used for testing and dry runs.
	PokeIntervalOverride uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Database connection variables are read separately by the state package.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	BasketID, err = getEnvAsUint64("FOLIO_BASKET_ID")
	if err != nil {
		return err
	}

	WebPort, err = getEnvAsUint64("WEB_PORT")
	if err != nil {
		return err
	}

	PokeIntervalOverride = 0
	if _, exists := os.LookupEnv("FOLIO_POKE_INTERVAL"); exists {
		PokeIntervalOverride, err = getEnvAsUint64("FOLIO_POKE_INTERVAL")
		if err != nil {
			return err
		}
	}

	log.Debug().
		Uint64("BasketID", BasketID).
		Uint64("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
