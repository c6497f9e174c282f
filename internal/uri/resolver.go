package uri

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/domain"
	"github.com/feral-file/marketplace-indexer/internal/logger"
)

var (
	// ErrEmptyURI is returned when there is nothing to resolve
	ErrEmptyURI = errors.New("empty uri")
	// ErrUnsupportedScheme is returned for schemes that cannot be fetched over HTTP
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
)

// Config holds configuration for the URI resolver
type Config struct {
	// IPFSGateways is the list of IPFS gateways, the first one is used for rewriting
	IPFSGateways []string
	// ArweaveGateways is the list of Arweave gateways, the first one is used for rewriting
	ArweaveGateways []string
}

// Resolver rewrites content-addressed URIs into fetchable HTTP URLs
//
//go:generate mockgen -source=resolver.go -destination=../mocks/uri_resolver.go -package=mocks -mock_names=Resolver=MockURIResolver
type Resolver interface {
	// Resolve returns an HTTP(S) URL for the URI.
	// ipfs:// and ar:// are rewritten to the configured gateways, gateway URLs containing /ipfs/
	// are re-pointed at the preferred IPFS gateway, other HTTP(S) URLs are returned unchanged.
	Resolve(ctx context.Context, uri string) (string, error)
}

type resolver struct {
	ipfsGateway    string
	arweaveGateway string
}

func NewResolver(config *Config) Resolver {
	r := &resolver{
		ipfsGateway:    domain.DEFAULT_IPFS_GATEWAY,
		arweaveGateway: domain.DEFAULT_ARWEAVE_GATEWAY,
	}
	if config != nil {
		if len(config.IPFSGateways) > 0 && config.IPFSGateways[0] != "" {
			r.ipfsGateway = config.IPFSGateways[0]
		}
		if len(config.ArweaveGateways) > 0 && config.ArweaveGateways[0] != "" {
			r.arweaveGateway = config.ArweaveGateways[0]
		}
	}
	r.ipfsGateway = strings.TrimSuffix(r.ipfsGateway, "/")
	r.arweaveGateway = strings.TrimSuffix(r.arweaveGateway, "/")
	return r
}

func (r *resolver) Resolve(ctx context.Context, uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", ErrEmptyURI
	}

	if path, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		// Some contracts emit ipfs://ipfs/<cid>
		path = strings.TrimPrefix(path, "ipfs/")
		resolved := fmt.Sprintf("%s/ipfs/%s", r.ipfsGateway, path)
		logger.DebugCtx(ctx, "Rewrote IPFS URI", zap.String("uri", uri), zap.String("url", resolved))
		return resolved, nil
	}

	if txID, ok := strings.CutPrefix(uri, "ar://"); ok {
		return fmt.Sprintf("%s/%s", r.arweaveGateway, txID), nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, parsed.Scheme)
	}

	// Public gateway URLs are re-pointed at the preferred gateway
	if _, path, ok := strings.Cut(parsed.Path, "/ipfs/"); ok && path != "" {
		resolved := fmt.Sprintf("%s/ipfs/%s", r.ipfsGateway, path)
		if parsed.RawQuery != "" {
			resolved += "?" + parsed.RawQuery
		}
		return resolved, nil
	}

	return uri, nil
}
