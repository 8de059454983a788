package stage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/logger"
)

// File kinds recorded in the extracted-files bucket.
const (
	FileAttachment = "attachment"
	FileDiagram    = "diagram"
)

// ExtractedFile is one payload written to the upload directory.
type ExtractedFile struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Kind         string `json:"kind"`
	AttachmentID int64  `json:"attachment_id,omitempty"`
	DiagramID    int64  `json:"diagram_id,omitempty"`
	Size         int64  `json:"size"`
}

// Extract copies attachment binaries and diagram payloads into Files.
type Extract struct {
	Files FileStore
	Store *bucket.Store
	Log   logger.Logger
}

// Run writes the latest version of each attachment and every diagram.
// Missing source files are logged and skipped.
func (e *Extract) Run(ctx context.Context) ([]ExtractedFile, error) {
	m, err := LoadModel(ctx, e.Store)
	if err != nil {
		return nil, err
	}

	var extracted []ExtractedFile
	for _, id := range sortedKeys(m.Attachments) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		latest, ok := m.Attachments[id].Latest()
		if !ok {
			continue
		}
		log := e.Log.With(map[string]interface{}{
			"attachment_id": id,
			"source_path":   latest.SourcePath,
			"title":         latest.TargetFilename,
		})
		path, size, err := copyFile(e.Files, latest.TargetFilename, latest.SourcePath)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("attachment file missing, skipping")
			continue
		}
		if err != nil {
			log.Error(err, "failed to extract attachment")
			continue
		}
		extracted = append(extracted, ExtractedFile{
			Name:         latest.TargetFilename,
			Path:         path,
			Kind:         FileAttachment,
			AttachmentID: id,
			Size:         size,
		})
	}

	for _, id := range sortedKeys(m.Diagrams) {
		d := m.Diagrams[id]
		path, err := e.Files.Write(d.TargetFilename, bytes.NewReader(d.Payload))
		if err != nil {
			e.Log.With(map[string]interface{}{"diagram_id": id}).Error(err, "failed to extract diagram")
			continue
		}
		extracted = append(extracted, ExtractedFile{
			Name:      d.TargetFilename,
			Path:      path,
			Kind:      FileDiagram,
			DiagramID: id,
			Size:      int64(len(d.Payload)),
		})
	}

	keys := make([]string, 0, len(extracted))
	values := make(map[string]ExtractedFile, len(extracted))
	for _, f := range extracted {
		if _, dup := values[f.Name]; dup {
			e.Log.With(map[string]interface{}{"title": f.Name}).Warn("upload filename written twice")
		} else {
			keys = append(keys, f.Name)
		}
		values[f.Name] = f
	}
	if err := bucket.SaveMap(ctx, e.Store, bucket.ExtractedFiles, keys, values); err != nil {
		return nil, err
	}
	e.Log.With(map[string]interface{}{"files": len(extracted)}).Info("extract: done")
	return extracted, nil
}
