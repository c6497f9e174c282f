package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY    = "https://gateway.pinata.cloud"
	DEFAULT_ARWEAVE_GATEWAY = "https://arweave.net"

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// ETHER_DECIMALS is the number of decimals between wei and ether
	ETHER_DECIMALS = 18
)
