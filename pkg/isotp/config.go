package isotp

import "time"

// Config holds configuration for the transport layer
type Config struct {
	// MaxTransferSize is the reassembly buffer capacity, i.e. the largest
	// transfer a receiver will accept
	// Default: 4095 bytes (12-bit protocol ceiling)
	MaxTransferSize int

	// SeparationTime is the minimum delay between transmitted Consecutive
	// frames. Zero sends frames back to back.
	SeparationTime time.Duration

	// EnableStatistics enables statistics collection
	EnableStatistics bool
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		MaxTransferSize:  MaxBytesPerTransfer,
		SeparationTime:   0,
		EnableStatistics: true,
	}
}
