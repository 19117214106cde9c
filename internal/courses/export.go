package courses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/lectern/pkg/storage"
)

// exporter writes course set renderings under a key prefix.
type exporter struct {
	store  storage.System
	prefix string
}

func (e exporter) jsonKey(cs *CourseSet) string {
	return storage.Key(e.prefix, cs.ID.String()+".json")
}

func (e exporter) htmlKey(cs *CourseSet) string {
	return storage.Key(e.prefix, cs.ID.String()+".html")
}

// write uploads the JSON and HTML renderings and returns the JSON key.
func (e exporter) write(ctx context.Context, cs *CourseSet) (string, error) {
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode course set: %w", err)
	}

	page, err := RenderHTML(cs)
	if err != nil {
		return "", err
	}

	key := e.jsonKey(cs)
	if err := e.store.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	htmlKey := e.htmlKey(cs)
	if err := e.store.Upload(ctx, htmlKey, bytes.NewReader(page), "text/html; charset=utf-8"); err != nil {
		return "", fmt.Errorf("upload %s: %w", htmlKey, err)
	}

	return key, nil
}
