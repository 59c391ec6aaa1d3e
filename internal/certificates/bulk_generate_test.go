package certificates

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"certificate-studio/certificate-backend/internal/notifications"
	"certificate-studio/certificate-backend/internal/render"
)

func TestBulkGenerate_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t, false)
	f.expectTemplate(t)

	for i := int64(1); i <= 3; i++ {
		f.seq.On("Next", mock.Anything, mock.Anything).Return(i, nil).Once()
	}
	f.repo.On("CreateCertificate", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("UpdateCertificate", mock.Anything, mock.Anything).Return(nil)

	isBob := func(job render.Job) bool { return job.Values[render.PlaceholderName] == "Bob" }
	f.renderer.On("Run", mock.Anything, mock.MatchedBy(isBob)).Return(nil, errors.New("boom"))
	f.renderer.On("Run", mock.Anything, mock.MatchedBy(func(job render.Job) bool { return !isBob(job) })).Return(fakeResult(), nil)

	result, err := f.svc.BulkGenerate(context.Background(), f.owner, &BulkGenerateRequest{
		TemplateID:   f.tpl.ID.Hex(),
		Participants: []string{"Alice", " ", "Bob", "Carol"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Generated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Certificates, 3)
	assert.Equal(t, StatusFailed, result.Certificates[1].Status)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Bob", result.Errors[0].ParticipantName)
	assert.Equal(t, "boom", result.Errors[0].Error)

	// The template is resolved once for the whole batch.
	f.templates.AssertNumberOfCalls(t, "GetForGeneration", 1)
	f.templates.AssertNumberOfCalls(t, "LoadAsset", 1)
	f.templates.AssertNumberOfCalls(t, "IncrementUsage", 3)

	progress := f.notifier.ofType(notifications.WSMessageTypeBulkGenerateProgress)
	require.Len(t, progress, 4)
	last := progress[3].Data.(BulkGenerateProgress)
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 3, last.Processed)
	assert.Equal(t, float64(100), last.Percentage)
	mid := progress[0].Data.(BulkGenerateProgress)
	assert.Equal(t, "Alice", mid.Current)
	assert.InDelta(t, 33.33, mid.Percentage, 0.01)
}

func TestBulkGenerate_Rejections(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.BulkGenerate(ctx, f.owner, &BulkGenerateRequest{TemplateID: f.tpl.ID.Hex(), Participants: []string{"", "  "}})
	assert.ErrorIs(t, err, ErrNoParticipants)

	many := make([]string, MaxBulkParticipants+1)
	for i := range many {
		many[i] = "P"
	}
	_, err = f.svc.BulkGenerate(ctx, f.owner, &BulkGenerateRequest{TemplateID: f.tpl.ID.Hex(), Participants: many})
	assert.ErrorIs(t, err, ErrTooManyParticipants)

	f.templates.On("GetForGeneration", mock.Anything, f.owner, f.tpl.ID).Return(nil, render.ErrTemplateIncomplete)
	_, err = f.svc.BulkGenerate(ctx, f.owner, &BulkGenerateRequest{TemplateID: f.tpl.ID.Hex(), Participants: []string{"Ada"}})
	assert.ErrorIs(t, err, render.ErrTemplateIncomplete)

	f.repo.AssertNotCalled(t, "CreateCertificate", mock.Anything, mock.Anything)
}

func TestParticipantsFromWorkbook(t *testing.T) {
	wb := excelize.NewFile()
	defer wb.Close()
	rows := [][]interface{}{{"Name"}, {"Ada Lovelace"}, {""}, {"  Alan Turing  "}}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	_, err := wb.WriteTo(&buf)
	require.NoError(t, err)

	names, err := ParticipantsFromWorkbook(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, names)
}
