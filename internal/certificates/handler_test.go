package certificates

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/auth"
)

func newTestRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		auth.SetAdminID(c, f.owner)
		c.Next()
	})
	NewHandler(f.svc, 1<<20, zap.NewNop()).RegisterRoutes(api)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_DeleteAllConfirmation(t *testing.T) {
	f := newFixture(t, false)
	r := newTestRouter(f)

	w := doJSON(r, http.MethodDelete, "/api/v1/certificates", DeleteAllRequest{Confirmation: "yes please"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), ErrConfirmationMismatch.Error())

	f.repo.On("ListAllByOwner", mock.Anything, f.owner).Return([]Certificate{}, nil)
	f.repo.On("DeleteAllByOwner", mock.Anything, f.owner).Return(int64(0), nil)
	w = doJSON(r, http.MethodDelete, "/api/v1/certificates", DeleteAllRequest{Confirmation: ConfirmationPhrase})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deletedCount":0`)
}

func TestHandler_Generate(t *testing.T) {
	t.Run("validation failure is a 400", func(t *testing.T) {
		f := newFixture(t, false)
		w := doJSON(newTestRouter(f), http.MethodPost, "/api/v1/certificates", GenerateRequest{TemplateID: "bad", ParticipantName: "Ada"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("created", func(t *testing.T) {
		f := newFixture(t, false)
		f.expectTemplate(t)
		f.seq.On("Next", mock.Anything, mock.Anything).Return(int64(1), nil)
		f.repo.On("CreateCertificate", mock.Anything, mock.Anything).Return(nil)
		f.repo.On("UpdateCertificate", mock.Anything, mock.Anything).Return(nil)
		f.renderer.On("Run", mock.Anything, mock.Anything).Return(fakeResult(), nil)

		w := doJSON(newTestRouter(f), http.MethodPost, "/api/v1/certificates", GenerateRequest{TemplateID: f.tpl.ID.Hex(), ParticipantName: "Ada"})
		require.Equal(t, http.StatusCreated, w.Code)

		var cert Certificate
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cert))
		assert.Equal(t, "CERT-2024-001", cert.CertificateID)
		assert.Equal(t, StatusGenerated, cert.Status)
	})
}

func TestHandler_DownloadStates(t *testing.T) {
	f := newFixture(t, false)
	r := newTestRouter(f)

	pending := generatedCert(f, "CERT-2024-001")
	pending.Status = StatusPending
	f.repo.On("GetByCertificateID", mock.Anything, "CERT-2024-001").Return(pending, nil)
	f.repo.On("GetByCertificateID", mock.Anything, "CERT-2024-404").Return(nil, ErrNotFound)

	ready := generatedCert(f, "CERT-2024-002")
	_, err := f.files.Write("CERT-2024-002.png", []byte("png-bytes"))
	require.NoError(t, err)
	f.repo.On("GetByCertificateID", mock.Anything, "CERT-2024-002").Return(ready, nil)
	f.repo.On("IncrementDownloads", mock.Anything, ready.ID).Return(nil)

	assert.Equal(t, http.StatusConflict, doJSON(r, http.MethodGet, "/api/v1/certificates/CERT-2024-001/download/pdf", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/api/v1/certificates/CERT-2024-404/download/pdf", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/v1/certificates/CERT-2024-002/download/gif", nil).Code)

	w := doJSON(r, http.MethodGet, "/api/v1/certificates/CERT-2024-002/download/png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "CERT-2024-002.png")
}

func TestHandler_ListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, false)
	w := doJSON(newTestRouter(f), http.MethodGet, "/api/v1/certificates?status=shredded", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Stats(t *testing.T) {
	f := newFixture(t, false)
	stats := newStats()
	stats.Total = 3
	stats.ByStatus[StatusGenerated] = 3
	f.repo.On("Stats", mock.Anything, f.owner).Return(stats, nil)

	w := doJSON(newTestRouter(f), http.MethodGet, "/api/v1/certificates/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generated":3`)
}
