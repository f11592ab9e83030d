package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/credential"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/queue"
)

// dequeueBackoff spaces out retries after queue errors.
const dequeueBackoff = 2 * time.Second

// RegistrationChecker verifies a registration still holds the credential a
// job refers to. Stale jobs (registration deleted, credential replaced) are
// dropped rather than retried.
type RegistrationChecker interface {
	ApprovedByCredential(ctx context.Context, eventID uuid.UUID, value string) (*models.Registration, error)
}

// ImageProcessor re-renders credential QR images whose upload failed during
// approval. The in-request path does not retry; this is the retry.
type ImageProcessor struct {
	regs   RegistrationChecker
	images *credential.ImageStore
	queue  *queue.Queue
	logger *zap.Logger
}

// NewImageProcessor creates a credential image processor.
func NewImageProcessor(regs RegistrationChecker, images *credential.ImageStore, q *queue.Queue, logger *zap.Logger) *ImageProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageProcessor{regs: regs, images: images, queue: q, logger: logger}
}

// Process executes one credential image job.
func (p *ImageProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeCredentialImage {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.CredentialImagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reg, err := p.regs.ApprovedByCredential(ctx, payload.EventID, payload.Credential)
	if err != nil {
		return fmt.Errorf("lookup registration: %w", err)
	}
	if reg == nil {
		// The credential no longer exists; nothing to render.
		p.logger.Info("dropping stale credential image job",
			zap.String("job_id", job.ID),
			zap.String("registration_id", payload.RegistrationID.String()))
		return nil
	}

	url, err := p.images.Store(ctx, payload.Credential)
	if err != nil {
		return fmt.Errorf("render and upload: %w", err)
	}
	p.logger.Info("credential image rendered",
		zap.String("registration_id", payload.RegistrationID.String()),
		zap.String("url", url))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ImageProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("credential image worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(dequeueBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(dequeueBackoff)
		}
	}
}
