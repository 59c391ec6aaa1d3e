package certificates

import (
	"bytes"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"certificate-studio/certificate-backend/pkg/spreadsheet"
)

var exportColumns = []spreadsheet.Column{
	{Key: "certificateId", Header: "Certificate ID"},
	{Key: "participantName", Header: "Participant"},
	{Key: "template", Header: "Template"},
	{Key: "status", Header: "Status"},
	{Key: "downloads", Header: "Downloads"},
	{Key: "generatedAt", Header: "Generated At"},
	{Key: "createdAt", Header: "Created At"},
	{Key: "failureReason", Header: "Failure Reason"},
}

// Export renders every certificate matching filters as an XLSX workbook.
// Paging in filters is ignored.
func (s *Service) Export(ctx context.Context, owner primitive.ObjectID, filters ListFilters) ([]byte, error) {
	filters.Page, filters.PageSize = 0, 0
	certs, _, err := s.repo.ListCertificates(ctx, owner, filters)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]interface{}, 0, len(certs))
	for _, c := range certs {
		row := map[string]interface{}{
			"certificateId":   c.CertificateID,
			"participantName": c.ParticipantName,
			"template":        c.Template.Name,
			"status":          string(c.Status),
			"downloads":       c.DownloadCount,
			"createdAt":       c.CreatedAt,
			"failureReason":   c.FailureReason,
		}
		if c.GeneratedAt != nil {
			row["generatedAt"] = *c.GeneratedAt
		}
		rows = append(rows, row)
	}

	exporter := spreadsheet.NewExporter(spreadsheet.DefaultOptions("Certificates"))
	defer exporter.Close()
	if err := exporter.Write(exportColumns, rows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := exporter.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
