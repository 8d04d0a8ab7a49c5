package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

const (
	defaultSnapshotRetentionBlocks = 256
	defaultSnapshotPruneCron       = "0 */5 * * * *"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Network selects the contract names and operation definitions of the registry (e.g., "mainnet").
	Network string

	// OperationExecutorAddress receives every multi-action transaction.
	OperationExecutorAddress common.Address
	// AjnaProxyActionsAddress receives single-call Ajna borrow and earn transactions.
	AjnaProxyActionsAddress common.Address

	// SnapshotRetentionBlocks is how many blocks of pool snapshots the cache keeps.
	SnapshotRetentionBlocks uint64
	// SnapshotPruneCron is the cron spec (with seconds) of the cache pruning job.
	SnapshotPruneCron string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Network and contract addresses are required, everything else falls back to a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Network, err = getEnv("DMA_NETWORK")
	if err != nil {
		return err
	}

	OperationExecutorAddress, err = getEnvAsAddress("OPERATION_EXECUTOR_ADDRESS")
	if err != nil {
		return err
	}

	AjnaProxyActionsAddress, err = getEnvAsAddress("AJNA_PROXY_ACTIONS_ADDRESS")
	if err != nil {
		return err
	}

	SnapshotRetentionBlocks, err = getEnvAsUint64OrDefault("SNAPSHOT_RETENTION_BLOCKS", defaultSnapshotRetentionBlocks)
	if err != nil {
		return err
	}

	SnapshotPruneCron = getEnvOrDefault("SNAPSHOT_PRUNE_CRON", defaultSnapshotPruneCron)

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Network", Network).
		Str("OperationExecutor", OperationExecutorAddress.Hex()).
		Str("AjnaProxyActions", AjnaProxyActionsAddress.Hex()).
		Uint64("SnapshotRetentionBlocks", SnapshotRetentionBlocks).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to defaultValue.
func getEnvOrDefault(key, defaultValue string) string {
	if value, err := getEnv(key); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsAddress retrieves an environment variable as a hex address. Returns error if not set or invalid.
func getEnvAsAddress(key string) (common.Address, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(valueStr) {
		return common.Address{}, errors.New("environment variable " + key + " must be a hex address, got: " + valueStr)
	}
	return common.HexToAddress(valueStr), nil
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64OrDefault(key string, defaultValue uint64) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}
