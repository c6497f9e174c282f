package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/uri"
)

// Media is one entry of a metadata document's media array
type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Collection is the collection a token declares in its metadata
type Collection struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
}

// Metadata is a normalized token metadata document.
// Nil pointer fields were absent or empty in the source document.
type Metadata struct {
	Name        *string
	Description *string
	Image       *string
	// Media is nil when the document has no media array; a non-nil (possibly empty)
	// slice replaces the token's media set.
	Media      []Media
	Collection *Collection
	// Raw is the document as fetched
	Raw []byte
	// Hash is the hex sha256 of the canonicalized (JCS) document
	Hash string
}

// Config holds metadata resolver configuration
type Config struct {
	// DetectMediaType sniffs the MIME type of media entries that do not declare one
	DetectMediaType bool
}

// Resolver fetches and normalizes token metadata
//
//go:generate mockgen -source=resolver.go -destination=../mocks/metadata_resolver.go -package=mocks -mock_names=Resolver=MockMetadataResolver
type Resolver interface {
	// Resolve fetches the metadata document behind tokenURI.
	// It never fails: any problem is logged and reported as nil (no metadata).
	Resolve(ctx context.Context, tokenURI string) *Metadata
}

type resolver struct {
	config      Config
	httpClient  adapter.HTTPClient
	uriResolver uri.Resolver
	json        adapter.JSON
	jcs         adapter.JCS
}

func NewResolver(config Config, httpClient adapter.HTTPClient, uriResolver uri.Resolver, json adapter.JSON, jcs adapter.JCS) Resolver {
	return &resolver{
		config:      config,
		httpClient:  httpClient,
		uriResolver: uriResolver,
		json:        json,
		jcs:         jcs,
	}
}

func (r *resolver) Resolve(ctx context.Context, tokenURI string) *Metadata {
	if strings.TrimSpace(tokenURI) == "" {
		return nil
	}

	raw, err := r.fetch(ctx, tokenURI)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to fetch metadata", zap.String("uri", tokenURI), zap.Error(err))
		return nil
	}

	var doc map[string]any
	if err := r.json.Unmarshal(raw, &doc); err != nil {
		logger.WarnCtx(ctx, "Metadata is not a JSON object", zap.String("uri", tokenURI), zap.Error(err))
		return nil
	}
	if doc == nil {
		return nil
	}

	md := normalize(doc)
	md.Raw = raw
	md.Hash = r.hash(ctx, raw)

	if r.config.DetectMediaType {
		for i := range md.Media {
			if md.Media[i].Type != "" {
				continue
			}
			if mimeType := detectMimeType(ctx, r.httpClient, r.uriResolver, md.Media[i].URL); mimeType != nil {
				md.Media[i].Type = *mimeType
			}
		}
	}

	return md
}

// fetch returns the raw document, decoding data: URIs locally
func (r *resolver) fetch(ctx context.Context, tokenURI string) ([]byte, error) {
	if uri.IsDataURI(tokenURI) {
		_, data, err := uri.DecodeDataURI(tokenURI)
		if err != nil {
			return nil, err
		}
		return data, nil
	}

	url, err := r.uriResolver.Resolve(ctx, tokenURI)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uri: %w", err)
	}

	return r.httpClient.GetBytes(ctx, url)
}

// hash returns the hex sha256 of the canonical form of raw.
// Documents JCS cannot canonicalize are hashed as-is.
func (r *resolver) hash(ctx context.Context, raw []byte) string {
	canonical, err := r.jcs.Transform(raw)
	if err != nil {
		logger.DebugCtx(ctx, "Failed to canonicalize metadata, hashing raw bytes", zap.Error(err))
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func normalize(doc map[string]any) *Metadata {
	md := &Metadata{
		Name:        stringField(doc, "name"),
		Description: stringField(doc, "description"),
		Image:       stringField(doc, "image"),
	}

	if rawMedia, ok := doc["media"].([]any); ok {
		md.Media = make([]Media, 0, len(rawMedia))
		for _, item := range rawMedia {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			url := stringField(entry, "url")
			if url == nil {
				continue
			}
			m := Media{URL: *url}
			if t := stringField(entry, "type"); t != nil {
				m.Type = *t
			}
			md.Media = append(md.Media, m)
		}
	}

	switch c := doc["collection"].(type) {
	case string:
		if name := strings.TrimSpace(c); name != "" {
			md.Collection = &Collection{Name: name}
		}
	case map[string]any:
		if name := stringField(c, "name"); name != nil {
			md.Collection = &Collection{
				Name:        strings.TrimSpace(*name),
				Description: stringField(c, "description"),
				Image:       stringField(c, "image"),
			}
		}
	}

	return md
}

// stringField returns the value at key when it is a non-blank string
func stringField(doc map[string]any, key string) *string {
	v, ok := doc[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
