package metadata

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/feral-file/marketplace-indexer/internal/adapter"
	"github.com/feral-file/marketplace-indexer/internal/logger"
	"github.com/feral-file/marketplace-indexer/internal/uri"
)

// SNIFF_BYTES is how much of a media file is downloaded for type detection
const SNIFF_BYTES = 512

// detectMimeType detects the MIME type of a media URL from its first bytes.
// Returns nil when detection is not possible.
func detectMimeType(ctx context.Context, httpClient adapter.HTTPClient, uriResolver uri.Resolver, mediaURL string) *string {
	if uri.IsDataURI(mediaURL) {
		mediaType, data, err := uri.DecodeDataURI(mediaURL)
		if err != nil {
			logger.DebugCtx(ctx, "Failed to decode data uri for mime type detection", zap.Error(err))
			return nil
		}
		if mediaType == "text/plain" && len(data) > 0 {
			mediaType = mimetype.Detect(data).String()
		}
		return &mediaType
	}

	resolvedURL, err := uriResolver.Resolve(ctx, mediaURL)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to resolve URI for mime type detection",
			zap.String("url", mediaURL),
			zap.Error(err))
		return nil
	}

	content, err := httpClient.GetPartialContent(ctx, resolvedURL, SNIFF_BYTES)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to download content for mime type detection",
			zap.String("url", resolvedURL),
			zap.Error(err))
		return nil
	}

	mtype := mimetype.Detect(content)
	if mtype == nil {
		return nil
	}

	mimeType := mtype.String()
	logger.DebugCtx(ctx, "Detected mime type",
		zap.String("url", resolvedURL),
		zap.String("mime_type", mimeType))

	return &mimeType
}
