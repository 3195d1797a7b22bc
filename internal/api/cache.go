package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/model"
)

const slotsPath = "/api/slots"

// SlotListing is the outcome of a cached slot listing fetch.
type SlotListing struct {
	Slots     []model.Slot
	FromCache bool // true if the body came from disk (304 or upstream failure)
	Fallback  bool // true only when the API failed and the disk copy stood in
	UpdatedAt time.Time
}

// cacheEntry holds HTTP cache metadata for the slot listing.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SlotCache fetches GET /api/slots with ETag / Last-Modified revalidation
// and keeps the last good body on disk, so listings stay readable while the
// API is unreachable.
type SlotCache struct {
	client   *Client
	cacheDir string
}

// NewSlotCache creates a cache rooted at cacheDir.
func NewSlotCache(client *Client, cacheDir string) *SlotCache {
	if cacheDir == "" {
		cacheDir = "./var/slot-cache"
	}
	return &SlotCache{client: client, cacheDir: cacheDir}
}

// Fetch returns the current listing, falling back to the cached body on
// network errors and non-OK responses.
func (sc *SlotCache) Fetch(ctx context.Context) (SlotListing, error) {
	cachePath := sc.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return SlotListing{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.json"))

	header := http.Header{}
	if meta.ETag != "" {
		header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := sc.client.send(ctx, http.MethodGet, slotsPath, nil, nil, header)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("slot listing network error, using cached body", err)
			return fallbackListing(cachedBody, meta.UpdatedAt)
		}
		return SlotListing{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return SlotListing{}, readErr
		}
		listing, err := decodeListing(body, false, time.Now().UTC())
		if err != nil {
			return SlotListing{}, err
		}
		newMeta := cacheEntry{
			URL:          sc.client.baseURL + slotsPath,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// Still return the freshly fetched listing.
			appLog.Error("slot cache save failed", err, "dir", cachePath)
		}
		appLog.Debug("slot listing fetched", "count", len(listing.Slots), "from_cache", false)
		return listing, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return SlotListing{}, errors.New("received 304 Not Modified but no cached body available")
		}
		return decodeListing(cachedBody, true, meta.UpdatedAt)

	default:
		apiErr := errorFromResponse(http.MethodGet, slotsPath, resp)
		if len(cachedBody) > 0 {
			appLog.Error("slot listing non-OK, using cached body", apiErr, "status", resp.StatusCode)
			return fallbackListing(cachedBody, meta.UpdatedAt)
		}
		return SlotListing{}, apiErr
	}
}

// Invalidate drops the cached body so the next Fetch is unconditional.
func (sc *SlotCache) Invalidate() error {
	return os.RemoveAll(sc.cachePath())
}

func (sc *SlotCache) cachePath() string {
	sum := sha256.Sum256([]byte(sc.client.baseURL + slotsPath))
	return filepath.Join(sc.cacheDir, hex.EncodeToString(sum[:8]))
}

func decodeListing(body []byte, fromCache bool, updatedAt time.Time) (SlotListing, error) {
	var slots []model.Slot
	if err := json.Unmarshal(body, &slots); err != nil {
		return SlotListing{}, fmt.Errorf("api: decode slot listing: %w", err)
	}
	return SlotListing{Slots: slots, FromCache: fromCache, UpdatedAt: updatedAt}, nil
}

func fallbackListing(body []byte, updatedAt time.Time) (SlotListing, error) {
	listing, err := decodeListing(body, true, updatedAt)
	listing.Fallback = err == nil
	return listing, err
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.json"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}
