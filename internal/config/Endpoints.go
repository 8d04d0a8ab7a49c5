package config

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port the HTTP API listens on.
	WebPort string

	// DB holds the snapshot store connection. An empty Host keeps snapshots in memory.
	DB DBEndpoint

	// SwapAPI is the swap aggregator used by multiply strategies. Multiply is disabled when URL is empty.
	SwapAPI SwapEndpoint
)

// SwapEndpoint holds the swap aggregator connection.
type SwapEndpoint struct {
	URL    string
	APIKey string
	// Caller is the contract the aggregator calldata is built for (the swap action).
	Caller common.Address
}

// DBEndpoint holds the Postgres connection parameters of the snapshot store.
type DBEndpoint struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a Postgres store is configured.
func (d DBEndpoint) Enabled() bool {
	return d.Host != ""
}

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	port, err := getEnvAsIntOrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}

	DB = DBEndpoint{
		Host:     getEnvOrDefault("DB_HOST", ""),
		Port:     port,
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		DBName:   getEnvOrDefault("DB_NAME", ""),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	SwapAPI = SwapEndpoint{
		URL:    getEnvOrDefault("SWAP_API_URL", ""),
		APIKey: getEnvOrDefault("SWAP_API_KEY", ""),
	}
	if SwapAPI.URL != "" {
		caller, err := getEnvAsAddress("SWAP_CALLER_ADDRESS")
		if err != nil {
			return err
		}
		SwapAPI.Caller = caller
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("DBHost", DB.Host).
		Int("DBPort", DB.Port).
		Bool("SnapshotStorePostgres", DB.Enabled()).
		Bool("SwapAPI", SwapAPI.URL != "").
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
