package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"rentwatch/config"
	"rentwatch/models"
	"rentwatch/storage"
)

type snapshot struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Properties []models.Property `json:"properties"`
}

// ExportSnapshot writes the active inventory as JSON to outPath and,
// when S3 export is configured, uploads the same document.
func ExportSnapshot(ctx context.Context, store storage.Store, cfg *config.Config, outPath string) error {
	props, err := store.ActiveProperties(ctx)
	if err != nil {
		return fmt.Errorf("load active properties: %w", err)
	}

	doc := snapshot{
		ExportedAt: time.Now().UTC(),
		Count:      len(props),
		Properties: props,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	log.Printf("Exported %d active properties to %s", len(props), outPath)

	if !cfg.Export.S3Enabled() {
		return nil
	}

	uploader, err := storage.NewSnapshotUploader(ctx, cfg.Export)
	if err != nil {
		return fmt.Errorf("init uploader: %w", err)
	}
	key := fmt.Sprintf("snapshots/rentwatch-%s.json", doc.ExportedAt.Format("20060102-150405"))
	if err := uploader.UploadSnapshot(ctx, key, data); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	log.Printf("Uploaded snapshot to %s", uploader.SnapshotURL(key))
	return nil
}
