package config

import "time"

// Gas limits used as EstimateGas fallbacks when the node cannot simulate the tx.
// These are conservative upper bounds; actual gas used will be lower.
const (
	GasLimitContractCall = uint64(200_000)   // transferOwnership and similar calls
	GasLimitIDODeploy    = uint64(6_000_000) // full IDO contract deployment
)

// Timeout constants used across cmd and the chain package.
const (
	RPCSelectTimeout    = 10 * time.Second // RPC benchmark / selection
	TxConfirmTimeout    = 3 * time.Minute  // standard transaction confirmation wait
	TxDeployTimeout     = 5 * time.Minute  // contract deployment confirmation wait
	ReceiptPollInterval = 2 * time.Second
)

// DefaultSolcVersion is the compiler version the build pipeline pins.
const DefaultSolcVersion = "0.8.12"
