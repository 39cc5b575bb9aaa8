package settlement

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const proofKeyPrefix = "invoice_"

// CleanupReport summarises one cleanup run
type CleanupReport struct {
	Scanned  int      `json:"scanned"`
	Orphaned []string `json:"orphaned"`
	Deleted  int      `json:"deleted"`
	DryRun   bool     `json:"dry_run"`
}

// ProofCleanupService removes uploaded proofs that no invoice references.
// Uploads happen before the financial transaction, so a failed submission
// leaves its object behind.
type ProofCleanupService struct {
	invoiceRepo invoicing.InvoiceRepository
	storage     ProofStorage
	clock       shared.Clock
	grace       time.Duration
}

// NewProofCleanupService creates a new ProofCleanupService
func NewProofCleanupService(invoiceRepo invoicing.InvoiceRepository, storage ProofStorage, clock shared.Clock, grace time.Duration) *ProofCleanupService {
	if clock == nil {
		clock = shared.NewSystemClock()
	}
	return &ProofCleanupService{invoiceRepo: invoiceRepo, storage: storage, clock: clock, grace: grace}
}

// Cleanup deletes unreferenced proofs older than the grace period.
// With dryRun set it only reports them.
func (s *ProofCleanupService) Cleanup(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	objects, err := s.storage.List(ctx, proofKeyPrefix)
	if err != nil {
		return nil, err
	}

	cutoff := s.clock.Now().Add(-s.grace)
	candidates := make([]StoredObject, 0, len(objects))
	urls := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		if obj.URL == "" {
			obj.URL = s.storage.PublicURL(obj.Key)
		}
		candidates = append(candidates, obj)
		urls = append(urls, obj.URL)
	}

	report := &CleanupReport{Scanned: len(objects), DryRun: dryRun, Orphaned: []string{}}
	if len(candidates) == 0 {
		return report, nil
	}

	referenced, err := s.invoiceRepo.FindReferencedProofURLs(ctx, urls)
	if err != nil {
		return nil, err
	}

	log := logger.L(ctx)
	for _, obj := range candidates {
		if referenced[obj.URL] {
			continue
		}
		report.Orphaned = append(report.Orphaned, obj.Key)
		if dryRun {
			continue
		}
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			log.Error("failed to delete orphaned proof", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		report.Deleted++
	}

	log.Info("proof cleanup finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("orphaned", len(report.Orphaned)),
		zap.Int("deleted", report.Deleted),
		zap.Bool("dry_run", dryRun))
	return report, nil
}
