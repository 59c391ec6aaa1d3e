package certificates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/notifications"
	"certificate-studio/certificate-backend/pkg/spreadsheet"
)

// MaxBulkParticipants caps one bulk generation request
const MaxBulkParticipants = 500

// BulkGenerate issues one certificate per participant against a single
// template. The template is validated once up front; after that each
// participant succeeds or fails on its own and progress is pushed to the
// admin's websocket connections after every certificate.
func (s *Service) BulkGenerate(ctx context.Context, owner primitive.ObjectID, req *BulkGenerateRequest) (*BulkGenerateResult, error) {
	names := cleanParticipants(req.Participants)
	if len(names) == 0 {
		return nil, ErrNoParticipants
	}
	if len(names) > MaxBulkParticipants {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyParticipants, len(names), MaxBulkParticipants)
	}

	p, err := s.prepare(ctx, owner, req.TemplateID, req.ContainerDimensions)
	if err != nil {
		return nil, err
	}

	result := &BulkGenerateResult{
		Total:        len(names),
		Certificates: []Certificate{},
		Errors:       []BulkGenerateError{},
	}
	progress := BulkGenerateProgress{Status: "processing", Total: len(names)}

	for i, name := range names {
		if ctx.Err() != nil {
			break
		}

		cert, err := s.generate(ctx, owner, p, name)
		switch {
		case err == nil:
			result.Generated++
			result.Certificates = append(result.Certificates, *cert)
		case cert != nil:
			result.Failed++
			result.Certificates = append(result.Certificates, *cert)
			result.Errors = append(result.Errors, BulkGenerateError{
				Index: i, ParticipantName: name, CertificateID: cert.CertificateID, Error: cert.FailureReason,
			})
		default:
			result.Failed++
			result.Errors = append(result.Errors, BulkGenerateError{Index: i, ParticipantName: name, Error: err.Error()})
		}

		progress.Processed = i + 1
		progress.Generated = result.Generated
		progress.Failed = result.Failed
		progress.Current = name
		progress.Percentage = percentage(progress.Processed, progress.Total)
		s.notify(owner, notifications.WSMessageTypeBulkGenerateProgress, progress)
	}

	progress.Status = "completed"
	progress.Current = ""
	if err := ctx.Err(); err != nil {
		progress.Status = "cancelled"
	}
	s.notify(owner, notifications.WSMessageTypeBulkGenerateProgress, progress)

	s.logger.Info("Bulk generation finished",
		zap.String("template_id", p.tpl.ID.Hex()),
		zap.Int("total", result.Total),
		zap.Int("generated", result.Generated),
		zap.Int("failed", result.Failed),
	)
	if err := ctx.Err(); err != nil && result.Generated+result.Failed < result.Total {
		return result, err
	}
	return result, nil
}

// ParticipantsFromWorkbook reads names from the first column of the first
// sheet. A leading "name" header row is skipped.
func ParticipantsFromWorkbook(r io.Reader) ([]string, error) {
	names, err := spreadsheet.ReadColumn(r, 0, "name")
	if errors.Is(err, spreadsheet.ErrNoSheet) {
		return nil, ErrNoParticipants
	}
	if err != nil {
		return nil, err
	}
	return cleanParticipants(names), nil
}

func cleanParticipants(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}
