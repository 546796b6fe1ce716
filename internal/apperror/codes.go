package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"

	// Configuration, raised where a lazily read value is first used
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
)

// Chain gateway error codes
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasPriceUnavailable      Code = "GAS_PRICE_UNAVAILABLE"
	CodeNonceUnavailable         Code = "NONCE_UNAVAILABLE"
	CodeNonceStoreFailed         Code = "NONCE_STORE_FAILED"
	CodeTokenListFailed          Code = "TOKEN_LIST_FAILED"
	CodeChainNotReady            Code = "CHAIN_NOT_READY"
	CodeRateLimitExceeded        Code = "RATE_LIMIT_EXCEEDED"
)

// Connector error codes
const (
	// A viable single-hop trade does not exist for the pair/amount/direction.
	CodeNoRoute             Code = "NO_ROUTE"
	CodeReserveFetchFailed  Code = "RESERVE_FETCH_FAILED"
	CodeSubmissionFailed    Code = "SUBMISSION_FAILED"
	CodeSigningFailed       Code = "SIGNING_FAILED"
	CodeInvalidSlippage     Code = "INVALID_SLIPPAGE"
	CodeTokenNotFound       Code = "TOKEN_NOT_FOUND"
	CodeUnknownSpender      Code = "UNKNOWN_SPENDER"
	CodeConnectorClosed     Code = "CONNECTOR_CLOSED"
	CodeConnectorNotDefined Code = "CONNECTOR_NOT_DEFINED"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"

	// Circuit breaker
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
