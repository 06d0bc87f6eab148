package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/ragpdf-go/internal/events"
	"github.com/54b3r/ragpdf-go/internal/ingestion"
	"github.com/54b3r/ragpdf-go/internal/version"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func Test_Commands_RootRegistersSubcommands(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ingest", "search", "ask", "delete", "send", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("env-file"))
}

func Test_Commands_Version(t *testing.T) {
	t.Parallel()
	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Equal(t, version.String()+"\n", out.String())
}

func Test_Commands_PostEvent(t *testing.T) {
	t.Parallel()

	var got events.Event
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"ids":["e1"],"runs":[],"duplicates":["e1"]}`))
	}))
	t.Cleanup(srv.Close)

	body, status, err := postEvent(context.Background(), srv.URL+"/", "secret", events.Event{
		ID:   "e1",
		Name: events.TriggerIngestPDF,
		Data: map[string]any{"pdf_path": "/tmp/a.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "duplicates")
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "rag/ingest_pdf", got.Name)
	assert.Equal(t, "/tmp/a.pdf", got.String("pdf_path"))
}

func Test_Commands_PostEventRequiresName(t *testing.T) {
	t.Parallel()
	_, _, err := postEvent(context.Background(), "http://127.0.0.1:1", "", events.Event{})
	assert.Error(t, err)
}

func Test_Commands_SendRejectsNonObjectData(t *testing.T) {
	t.Parallel()
	cmd := NewSendCmd()
	cmd.SetArgs([]string{"--name", "rag/ingest_pdf", "--data", "[1,2]"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON object")
}

func Test_Commands_DeleteNeedsTarget(t *testing.T) {
	t.Parallel()
	cmd := NewDeleteCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}

func Test_Commands_EnvHelpers(t *testing.T) {
	t.Setenv("RAGPDF_TEST_INT", "12")
	t.Setenv("RAGPDF_TEST_BAD_INT", "twelve")
	t.Setenv("RAGPDF_TEST_DUR", "90s")
	t.Setenv("RAGPDF_TEST_BAD_DUR", "soon")

	assert.Equal(t, 12, getEnvInt("RAGPDF_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("RAGPDF_TEST_BAD_INT", 1))
	assert.Equal(t, "x", getEnvOrDefault("RAGPDF_TEST_UNSET", "x"))

	d, err := getEnvDuration("RAGPDF_TEST_DUR", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = getEnvDuration("RAGPDF_TEST_UNSET", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	_, err = getEnvDuration("RAGPDF_TEST_BAD_DUR", time.Second)
	assert.Error(t, err)
}

func Test_Commands_PipelineConfigFromEnv(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("RAGPDF_PDF_ROOT", "")
	cfg := pipelineConfigFromEnv()
	assert.Equal(t, ingestion.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, ingestion.DefaultChunkOverlap, cfg.ChunkOverlap)
	assert.Empty(t, cfg.PDFRoot)

	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("RAGPDF_PDF_ROOT", "/srv/pdfs")
	cfg = pipelineConfigFromEnv()
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, "/srv/pdfs", cfg.PDFRoot)
}

func Test_Commands_OpenLedgerDisabled(t *testing.T) {
	t.Setenv("RAGPDF_LEDGER_DB", ledgerDisabled)
	assert.Nil(t, openLedger(quietLog))
}

func Test_Commands_OpenLedgerPath(t *testing.T) {
	t.Setenv("RAGPDF_LEDGER_DB", t.TempDir()+"/ledger.db")
	ledger := openLedger(quietLog)
	require.NotNil(t, ledger)
	assert.NoError(t, ledger.Close())
}

func Test_Commands_BuildDeduperMemory(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("DEDUP_TTL", "")
	ds, client, err := buildDeduper(context.Background(), quietLog)
	require.NoError(t, err)
	assert.Nil(t, client)
	t.Cleanup(func() { _ = ds.Close() })

	seen, err := ds.Seen(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func Test_Commands_BuildChatModelNotConfigured(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "none")
	chat, err := buildChatModel(context.Background(), quietLog)
	require.NoError(t, err)
	assert.Nil(t, chat)
}

func Test_Commands_BuildRAGMemory(t *testing.T) {
	t.Setenv("VECTOR_STORE", "memory")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("OLLAMA_HOST", "http://127.0.0.1:1")

	deps, err := buildRAG(context.Background(), quietLog)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	assert.Nil(t, deps.qdrant)
	assert.Equal(t, 768, deps.settings.Dimensions)
}

func Test_Commands_BuildRAGUnknownStore(t *testing.T) {
	t.Setenv("VECTOR_STORE", "faiss")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	_, err := buildRAG(context.Background(), quietLog)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "VECTOR_STORE"))
}
