package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/queue"
	"construction-monitor/internal/shared/metrics"
	"construction-monitor/internal/shared/server/middleware"
	"construction-monitor/internal/shared/server/respond"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/report/model"
)

// Handler wires HTTP handlers to the reports service.
type Handler struct {
	Svc   *Service
	Queue queue.Client
}

// NewHandler constructs a Handler. q may be nil when prefetching is disabled.
func NewHandler(svc *Service, q queue.Client) *Handler {
	return &Handler{Svc: svc, Queue: q}
}

// RegisterRoutes attaches report routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports", h.list)
	rg.GET("/reports/analysis/:analysisId", h.retrieveByAnalysis)
	rg.POST("/reports/analysis/:analysisId/prefetch", h.prefetch)
	rg.GET("/reports/details/:id", h.details)
	rg.GET("/reports/:obraId", h.listByObra)
	rg.POST("/reports/:obraId", h.create)
	rg.DELETE("/reports/:id", h.delete)
}

type retrievalResponse struct {
	ID              int64      `json:"id"`
	AnalysisID      string     `json:"analysisId"`
	NomeRelatorio   string     `json:"nomeRelatorio"`
	AnalyzedAt      *time.Time `json:"analyzedAt"`
	OverallProgress string     `json:"overallProgress"`
	SequenceNumber  *int       `json:"sequenceNumber"`
	NomeObra        string     `json:"nomeObra"`
	Localizacao     string     `json:"localizacao"`
	DownloadURL     string     `json:"downloadUrl"`
	PDFExists       bool       `json:"pdfExists"`
	Generated       bool       `json:"generated"`
}

type reportView struct {
	ID              int64           `json:"id"`
	ObraID          int64           `json:"obra_id"`
	AnalysisID      *string         `json:"analysis_id"`
	NomeRelatorio   string          `json:"nome_relatorio"`
	ConteudoJSON    json.RawMessage `json:"conteudo_json"`
	AnalyzedAt      *string         `json:"analyzed_at"`
	OverallProgress *float64        `json:"overall_progress"`
	SequenceNumber  *int            `json:"sequence_number"`
	PDFS3Key        *string         `json:"pdf_s3_key"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

type createRequest struct {
	DataFoto     string          `json:"data_foto"`
	ConteudoJSON json.RawMessage `json:"conteudo_json"`
}

func (h *Handler) retrieveByAnalysis(c *gin.Context) {
	analysisID := strings.TrimSpace(c.Param("analysisId"))
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysisId é obrigatório", nil)
		return
	}
	c.Set("analysisId", analysisID)

	// A generation that has started runs to completion even if the client disconnects.
	ctx := telemetry.WithRequestID(context.WithoutCancel(c.Request.Context()), middleware.RequestIDFromContext(c))
	out, err := h.Svc.RetrieveByAnalysisID(ctx, analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "analysisId inválido", err.Error())
		case errors.Is(err, obras.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Obra não encontrada", err.Error())
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao obter relatório", err.Error())
		}
		return
	}

	if out.Generated {
		c.Set("reportCache", "generated")
	} else {
		c.Set("reportCache", "hit")
	}
	respond.OK(c, toRetrievalResponse(out))
}

func (h *Handler) prefetch(c *gin.Context) {
	analysisID := strings.TrimSpace(c.Param("analysisId"))
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysisId é obrigatório", nil)
		return
	}
	c.Set("analysisId", analysisID)
	if h.Queue == nil {
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "Fila de relatórios não configurada", nil)
		return
	}

	requestID := middleware.RequestIDFromContext(c)
	err := h.Queue.Send(c.Request.Context(), queue.Message{
		AnalysisID: analysisID,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	})
	if err != nil {
		metrics.IncPrefetchJob("enqueue_failed")
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao agendar relatório", err.Error())
		return
	}
	metrics.IncPrefetchJob("enqueued")

	respond.JSON(c, http.StatusAccepted, gin.H{
		"message":    "Geração de relatório agendada",
		"analysisId": analysisID,
		"requestId":  requestID,
	})
}

func (h *Handler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	items, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao listar relatórios", nil)
		return
	}
	respond.OK(c, gin.H{"relatorios": toViews(items)})
}

func (h *Handler) listByObra(c *gin.Context) {
	obraID, ok := parseID(c, "obraId")
	if !ok {
		return
	}
	items, err := h.Svc.ListByObra(c.Request.Context(), obraID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao listar relatórios", nil)
		return
	}
	respond.OK(c, gin.H{"relatorios": toViews(items)})
}

func (h *Handler) details(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Relatório não encontrado", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao obter relatório", nil)
		return
	}
	respond.OK(c, gin.H{"relatorio": toView(rep)})
}

func (h *Handler) create(c *gin.Context) {
	obraID, ok := parseID(c, "obraId")
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Data da foto e conteúdo JSON são obrigatórios", nil)
		return
	}

	rep, err := h.Svc.CreateManual(c.Request.Context(), obraID, req.DataFoto, req.ConteudoJSON)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Data da foto e conteúdo JSON são obrigatórios", err.Error())
		case errors.Is(err, obras.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Obra não encontrada", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao criar relatório", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{
		"message":   "Relatório criado com sucesso",
		"relatorio": toView(rep),
	})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.Svc.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Relatório não encontrado", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Erro ao deletar relatório", nil)
		return
	}
	respond.OK(c, gin.H{
		"message":   "Relatório deletado com sucesso",
		"relatorio": toView(rep),
	})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", name+" inválido", nil)
		return 0, false
	}
	return id, true
}

func toRetrievalResponse(out Retrieval) retrievalResponse {
	progress := "0.00"
	if out.Report.OverallProgress != nil {
		progress = model.FormatPercent(model.ProgressPercent(*out.Report.OverallProgress))
	}
	return retrievalResponse{
		ID:              out.Report.ID,
		AnalysisID:      out.Report.AnalysisID,
		NomeRelatorio:   out.Report.NomeRelatorio,
		AnalyzedAt:      out.Report.AnalyzedAt,
		OverallProgress: progress,
		SequenceNumber:  out.Report.SequenceNumber,
		NomeObra:        out.Obra.NomeObra,
		Localizacao:     out.Obra.Localizacao,
		DownloadURL:     out.DownloadURL,
		PDFExists:       out.PDFExists,
		Generated:       out.Generated,
	}
}

func toViews(items []Report) []reportView {
	out := make([]reportView, 0, len(items))
	for _, rep := range items {
		out = append(out, toView(rep))
	}
	return out
}

func toView(rep Report) reportView {
	v := reportView{
		ID:              rep.ID,
		ObraID:          rep.ObraID,
		NomeRelatorio:   rep.NomeRelatorio,
		ConteudoJSON:    rep.ConteudoJSON,
		OverallProgress: rep.OverallProgress,
		SequenceNumber:  rep.SequenceNumber,
		CreatedAt:       FormatTimestamp(rep.CreatedAt),
		UpdatedAt:       FormatTimestamp(rep.UpdatedAt),
	}
	if len(v.ConteudoJSON) == 0 {
		v.ConteudoJSON = json.RawMessage("{}")
	}
	if rep.AnalysisID != "" {
		id := rep.AnalysisID
		v.AnalysisID = &id
	}
	if rep.PDFS3Key != "" {
		key := rep.PDFS3Key
		v.PDFS3Key = &key
	}
	if rep.AnalyzedAt != nil {
		ts := FormatTimestamp(*rep.AnalyzedAt)
		v.AnalyzedAt = &ts
	}
	return v
}
