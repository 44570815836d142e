// Package avatar uploads registration photos off the request path.
package avatar

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"portal/internal/cloudinary"
	"portal/internal/live"
	"portal/internal/queue"
)

// Uploader stores an image and returns its public location.
type Uploader interface {
	UploadDataURL(ctx context.Context, dataURL, publicID string) (*cloudinary.UploadResult, error)
}

// PhotoStore records the uploaded URL on the profile.
type PhotoStore interface {
	SetPhotoURL(ctx context.Context, uid, url string) error
}

// ChangeNotifier is told when profiles changed.
type ChangeNotifier interface {
	Changed(ctx context.Context, collection string) error
}

// Recorder counts jobs by result.
type Recorder interface {
	AvatarUpload(result string)
}

// ErrNotConfigured is returned when no uploader is available.
var ErrNotConfigured = errors.New("image storage not configured")

// Processor handles avatar.upload jobs.
type Processor struct {
	uploader Uploader
	photos   PhotoStore
	changes  ChangeNotifier
	recorder Recorder
	log      *zap.Logger
}

// NewProcessor wires a processor. uploader may be nil, in which case jobs are
// dropped and profiles keep the placeholder photo.
func NewProcessor(uploader Uploader, photos PhotoStore, changes ChangeNotifier, recorder Recorder, log *zap.Logger) *Processor {
	return &Processor{uploader: uploader, photos: photos, changes: changes, recorder: recorder, log: log}
}

// Run consumes q until ctx is done.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	p.log.Info("avatar worker started")
	for msg := range messages {
		if msg.Type != queue.TypeAvatarUpload {
			continue
		}
		if err := p.Handle(ctx, msg); err != nil {
			p.log.Warn("avatar upload failed", zap.String("uid", msg.UID), zap.Error(err))
		}
	}
	p.log.Info("avatar worker stopped")
	return nil
}

// Handle uploads one photo and points the profile at it.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	if p.uploader == nil {
		p.record("skipped")
		return ErrNotConfigured
	}
	if msg.UID == "" || msg.Data == "" {
		p.record("invalid")
		return errors.New("avatar job without uid or data")
	}
	res, err := p.uploader.UploadDataURL(ctx, msg.Data, msg.UID)
	if err != nil {
		p.record("failed")
		return err
	}
	if err := p.photos.SetPhotoURL(ctx, msg.UID, res.SecureURL); err != nil {
		p.record("failed")
		return fmt.Errorf("set photo url: %w", err)
	}
	p.record("ok")
	if p.changes != nil {
		if err := p.changes.Changed(ctx, live.CollectionUsers); err != nil {
			p.log.Warn("publish users change", zap.Error(err))
		}
	}
	p.log.Info("avatar uploaded", zap.String("uid", msg.UID), zap.String("public_id", res.PublicID))
	return nil
}

func (p *Processor) record(result string) {
	if p.recorder != nil {
		p.recorder.AvatarUpload(result)
	}
}
