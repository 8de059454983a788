package stage

import (
	"context"
	"fmt"

	"kbmigrate/internal/bucket"
	"kbmigrate/internal/logger"
	"kbmigrate/internal/markup"
	"kbmigrate/internal/model"
	"kbmigrate/internal/service"
)

// Analyze builds the migration model from the source store.
type Analyze struct {
	Builder  *service.ModelBuilder
	Resolver *service.AttachmentResolver
	Custom   model.Customizations
	Store    *bucket.Store
	Log      logger.Logger
}

// Run builds pages and revisions, scans the revision bodies for referenced
// attachments and diagrams, resolves those and persists everything.
func (a *Analyze) Run(ctx context.Context) (*model.Model, error) {
	a.Log.Info("analyze: building pages and revisions")
	m, err := a.Builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %w", err)
	}

	refs := ScanModel(m, a.Custom.Effective().RedmineDomain)
	a.Log.With(map[string]interface{}{
		"diagrams":            len(refs.Diagrams),
		"attachments":         len(refs.Attachments),
		"attachment_versions": len(refs.AttachmentVersions),
	}).Info("analyze: scanned revision bodies")

	if err := a.Resolver.Resolve(ctx, m, refs); err != nil {
		return nil, fmt.Errorf("failed to resolve attachments: %w", err)
	}

	if err := SaveModel(ctx, a.Store, m); err != nil {
		return nil, err
	}
	if err := bucket.SaveValue(ctx, a.Store, bucket.Customizations, a.Custom); err != nil {
		return nil, err
	}
	a.Log.With(map[string]interface{}{
		"pages":       len(m.Pages()),
		"attachments": len(m.Attachments),
		"diagrams":    len(m.Diagrams),
	}).Info("analyze: done")
	return m, nil
}

// ScanModel merges the references of every revision body in m.
func ScanModel(m *model.Model, domain string) markup.References {
	scanner := markup.NewScanner(domain)
	refs := markup.NewReferences()
	for _, p := range m.Pages() {
		for _, r := range m.Revisions[p.ID] {
			refs.Merge(scanner.Scan(r.Text))
		}
	}
	return refs
}
