package constants

const (
	MAX_PAGE_SIZE           = 100
	DEFAULT_LIMIT           = 20
	DEFAULT_HISTORY_LIMIT   = 50
	DEFAULT_OFFSET          = 0
	MAX_TOKEN_NUMBER_LENGTH = 78 // digits of the largest uint256
	SERVICE_NAME            = "marketplace-indexer-api"
	REQUEST_ID_HEADER       = "X-Request-ID"
)
