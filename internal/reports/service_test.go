package reports

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/virag"
	"construction-monitor/report/model"
)

func TestRetrieveGeneratesOnFirstCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, out.Generated)
	require.False(t, out.PDFExists)
	require.Equal(t, "reports/abc123.pdf", out.Report.PDFS3Key)
	require.Equal(t, "Ponte Norte", out.Obra.NomeObra)
	require.True(t, strings.HasPrefix(out.DownloadURL, "http://localhost:3000/files/reports/abc123.pdf?"))

	// One fetch to build metadata and one more to render.
	require.EqualValues(t, 2, env.fetcher.calls.Load())
	require.EqualValues(t, 1, env.pdf.renders.Load())

	stored, err := env.repo.FindByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "Relatório-Ponte Norte-Análise-3", stored.NomeRelatorio)
	require.Equal(t, int64(7), stored.ObraID)
	require.Equal(t, "reports/abc123.pdf", stored.PDFS3Key)
	require.NotNil(t, stored.OverallProgress)
	require.Equal(t, "42.00", model.FormatPercent(model.ProgressPercent(*stored.OverallProgress)))
	require.NotNil(t, stored.AnalyzedAt)

	decoded, err := model.Decode(stored.ConteudoJSON)
	require.NoError(t, err)
	require.Equal(t, "abc123", decoded.AnalysisID)
	require.Len(t, decoded.Elements.Detected, 3)

	meta, err := env.store.Meta("reports/abc123.pdf")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", meta.ContentType)
	require.Contains(t, meta.ContentDisposition, "relatorio-abc123.pdf")
}

func TestRetrieveSecondCallIsCacheHit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)

	out, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, out.PDFExists)
	require.False(t, out.Generated)
	require.EqualValues(t, 2, env.fetcher.calls.Load(), "cache hit must not call upstream")
	require.EqualValues(t, 1, env.pdf.renders.Load())
	require.Equal(t, 1, env.repo.Count())
}

func TestRetrieveConcurrentFirstRequestsShareOneRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	outs := make(chan Retrieval, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
			if err != nil {
				errs <- err
				return
			}
			outs <- out
		}()
	}
	wg.Wait()
	close(errs)
	close(outs)

	for err := range errs {
		require.NoError(t, err)
	}
	var first int64
	count := 0
	for out := range outs {
		count++
		if first == 0 {
			first = out.Report.ID
		}
		require.Equal(t, first, out.Report.ID)

		// Every caller gets a URL that resolves to the stored PDF.
		u, err := url.Parse(out.DownloadURL)
		require.NoError(t, err)
		key := strings.TrimPrefix(u.Path, "/files/")
		require.Equal(t, PDFKey("abc123"), key)
		require.NoError(t, env.store.Verify(key, u.Query().Get("expires"), u.Query().Get("signature")))
		exists, err := env.store.Exists(ctx, key)
		require.NoError(t, err)
		require.True(t, exists)
	}
	require.Equal(t, n, count)
	require.Equal(t, 1, env.repo.Count())
}

func TestRetrieveUnknownProjectIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.analysis.ProjectID = "99"

	_, err := env.svc.RetrieveByAnalysisID(context.Background(), "abc123")
	require.ErrorIs(t, err, obras.ErrNotFound)
	require.Equal(t, 0, env.repo.Count())
}

func TestRetrieveNonNumericProjectIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.analysis.ProjectID = "obra-x"

	_, err := env.svc.RetrieveByAnalysisID(context.Background(), "abc123")
	require.ErrorIs(t, err, obras.ErrNotFound)
}

func TestRetrieveUpstreamFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.setErr(&virag.UpstreamError{Status: 502, Body: "bad gateway"})

	_, err := env.svc.RetrieveByAnalysisID(context.Background(), "abc123")
	var upstream *virag.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, 502, upstream.Status)
	require.Equal(t, 0, env.repo.Count())
}

func TestRetrieveRenderFailureLeavesRowAndRecovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pdf.fail.Store(true)
	_, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.Error(t, err)

	stored, err := env.repo.FindByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.Empty(t, stored.PDFS3Key)
	exists, err := env.store.Exists(ctx, PDFKey("abc123"))
	require.NoError(t, err)
	require.False(t, exists)

	env.pdf.fail.Store(false)
	out, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, out.Generated)
	require.Equal(t, stored.ID, out.Report.ID)
	require.Equal(t, PDFKey("abc123"), out.Report.PDFS3Key)
}

func TestRetrieveRecordsKeyForExistingPDF(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A PDF uploaded earlier whose key never reached the row.
	_, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.NoError(t, env.repo.UpdatePDFKey(ctx, "abc123", ""))

	out, err := env.svc.RetrieveByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, out.PDFExists)
	require.Equal(t, PDFKey("abc123"), out.Report.PDFS3Key)

	stored, err := env.repo.FindByAnalysisID(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, PDFKey("abc123"), stored.PDFS3Key)
}

func TestRetrieveRejectsBlankID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RetrieveByAnalysisID(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.EqualValues(t, 0, env.fetcher.calls.Load())
}

func TestCreateManualAndManage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateManual(ctx, 7, "", []byte(`{"a":1}`))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.CreateManual(ctx, 7, "2025-03-10", []byte(`{broken`))
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.CreateManual(ctx, 404, "2025-03-10", []byte(`{"a":1}`))
	require.True(t, errors.Is(err, obras.ErrNotFound))

	rep, err := env.svc.CreateManual(ctx, 7, "2025-03-10", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "Relatório-Ponte Norte-2025-03-10", rep.NomeRelatorio)
	require.Empty(t, rep.AnalysisID)

	byObra, err := env.svc.ListByObra(ctx, 7)
	require.NoError(t, err)
	require.Len(t, byObra, 1)

	got, err := env.svc.Get(ctx, rep.ID)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(got.ConteudoJSON))

	deleted, err := env.svc.Delete(ctx, rep.ID)
	require.NoError(t, err)
	require.Equal(t, rep.ID, deleted.ID)
	_, err = env.svc.Get(ctx, rep.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
