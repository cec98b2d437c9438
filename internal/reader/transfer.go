package reader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Backup is the export/import document.
type Backup struct {
	Feeds         []Feed   `json:"feeds"`
	SavedArticles []string `json:"savedArticles"`
}

func (e *Engine) Backup() Backup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Backup{
		Feeds:         slices.Clone(e.registry),
		SavedArticles: slices.Clone(e.saved),
	}
}

func (e *Engine) Export(w io.Writer) error {
	b := e.Backup()
	if b.Feeds == nil {
		b.Feeds = []Feed{}
	}
	if b.SavedArticles == nil {
		b.SavedArticles = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Import replaces the registry and the saved set with the document in r. Both
// fields must be present and be arrays; on any format problem the engine is
// left untouched. Callers refresh afterwards to fetch the imported feeds.
func (e *Engine) Import(ctx context.Context, r io.Reader) error {
	backup, err := decodeBackup(r)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.registry = backup.Feeds
	e.saveSetting(ctx, keyFeeds, e.registry)
	e.setSaved(backup.SavedArticles)
	e.saveSetting(ctx, keySaved, e.saved)
	e.articles = registeredOnly(slices.Clone(e.articles), e.registry)
	if id, ok := e.scope.FeedID(); ok && feedIndex(e.registry, id) < 0 {
		e.scope = ScopeAll
		e.clearSelectionLocked()
	}
	e.mu.Unlock()

	e.logger.Info("backup imported", "feeds", len(backup.Feeds), "saved", len(backup.SavedArticles))
	e.notify(Event{Kind: EventFeedsChanged})
	return nil
}

func decodeBackup(r io.Reader) (Backup, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Backup{}, fmt.Errorf("%w: %v", ErrImportFormat, err)
	}
	feedsRaw, ok := doc["feeds"]
	if !ok || !isArray(feedsRaw) {
		return Backup{}, fmt.Errorf("%w: feeds must be an array", ErrImportFormat)
	}
	savedRaw, ok := doc["savedArticles"]
	if !ok || !isArray(savedRaw) {
		return Backup{}, fmt.Errorf("%w: savedArticles must be an array", ErrImportFormat)
	}

	var backup Backup
	if err := json.Unmarshal(feedsRaw, &backup.Feeds); err != nil {
		return Backup{}, fmt.Errorf("%w: feeds: %v", ErrImportFormat, err)
	}
	if err := json.Unmarshal(savedRaw, &backup.SavedArticles); err != nil {
		return Backup{}, fmt.Errorf("%w: savedArticles: %v", ErrImportFormat, err)
	}

	ids := make(map[string]struct{}, len(backup.Feeds))
	urls := make(map[string]struct{}, len(backup.Feeds))
	for i, f := range backup.Feeds {
		if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.URL) == "" {
			return Backup{}, fmt.Errorf("%w: feed %d needs an id and a url", ErrImportFormat, i)
		}
		if _, dup := ids[f.ID]; dup {
			return Backup{}, fmt.Errorf("%w: duplicate feed id %q", ErrImportFormat, f.ID)
		}
		if _, dup := urls[f.URL]; dup {
			return Backup{}, fmt.Errorf("%w: duplicate feed url %q", ErrImportFormat, f.URL)
		}
		ids[f.ID] = struct{}{}
		urls[f.URL] = struct{}{}
	}
	return backup, nil
}

func isArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}
