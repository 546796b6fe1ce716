package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidState:       "Invalid state for this operation",
	CodeNotFound:           "Resource not found",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",
	CodeConfigurationError: "Configuration error",

	CodeEthereumConnectionFailed: "Failed to connect to EVM node",
	CodeEthereumRPCError:         "EVM RPC call failed",
	CodeGasPriceUnavailable:      "Gas price unavailable",
	CodeNonceUnavailable:         "Could not determine next nonce",
	CodeNonceStoreFailed:         "Nonce store operation failed",
	CodeTokenListFailed:          "Failed to load token list",
	CodeChainNotReady:            "Chain gateway is not initialized",
	CodeRateLimitExceeded:        "RPC rate limit wait aborted",

	CodeNoRoute:             "No trade route found",
	CodeReserveFetchFailed:  "Failed to fetch pool reserves",
	CodeSubmissionFailed:    "Failed to submit transaction",
	CodeSigningFailed:       "Failed to sign transaction",
	CodeInvalidSlippage:     "Invalid slippage fraction",
	CodeTokenNotFound:       "Token not found",
	CodeUnknownSpender:      "Unknown spender",
	CodeConnectorClosed:     "Connector is closed",
	CodeConnectorNotDefined: "Connector not defined for chain/network",
	CodeContractCallFailed:  "Smart contract call failed",

	CodeCircuitOpen: "Circuit breaker is open",
}
