package output

import (
	"context"
	"element-scout/internal/config"
	"element-scout/internal/entity"
	"element-scout/pkg/apperr"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWriter(dir string) *Writer {
	return NewWriter(Params{
		Config: &config.Config{OutputConfig: &config.OutputConfig{Dir: dir}},
		Logger: zap.NewNop(),
	})
}

func testReport(records ...*entity.ElementRecord) *entity.CaptureReport {
	return &entity.CaptureReport{
		SessionID:    uuid.MustParse("aabbccdd-1111-2222-3333-444455556666"),
		TargetURL:    "https://example.com/login",
		StartedAt:    time.Date(2025, 6, 1, 11, 58, 0, 0, time.UTC),
		StoppedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		StopReason:   entity.StopReasonUser,
		TotalSeen:    len(records) + 1,
		UniqueCount:  len(records),
		VisibleCount: len(records),
		Records:      records,
	}
}

func TestWriteResults(t *testing.T) {
	rec := &entity.ElementRecord{
		Tag:           "button",
		ID:            "loginBtn",
		CSSSelector:   "button#loginBtn",
		XPathSelector: "/html[1]/body[1]/button[1]",
		Visible:       true,
		Source:        entity.SourcePointer,
	}

	t.Run("writes the element dump and the prompt file", func(t *testing.T) {
		dir := t.TempDir()
		w := newTestWriter(dir)

		paths, err := w.WriteResults(context.Background(), testReport(rec))
		require.NoError(t, err)
		require.Len(t, paths, 2)

		assert.Equal(t, filepath.Join(dir, "elements_aabbccdd.json"), paths[0])
		assert.Equal(t, filepath.Join(dir, "prompts_aabbccdd.md"), paths[1])
		for _, p := range paths {
			_, err := os.Stat(p)
			assert.NoError(t, err, p)
		}
	})

	t.Run("the dump unmarshals back into the report", func(t *testing.T) {
		dir := t.TempDir()
		w := newTestWriter(dir)

		paths, err := w.WriteResults(context.Background(), testReport(rec))
		require.NoError(t, err)

		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)

		var got entity.CaptureReport
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "https://example.com/login", got.TargetURL)
		assert.Equal(t, entity.StopReasonUser, got.StopReason)
		assert.Equal(t, 2, got.TotalSeen)
		require.Len(t, got.Records, 1)
		assert.Equal(t, "button#loginBtn", got.Records[0].CSSSelector)
		assert.Equal(t, entity.SourcePointer, got.Records[0].Source)
		assert.Empty(t, got.OutputPaths, "output paths never serialize")
	})

	t.Run("the prompt file carries the session header and selectors", func(t *testing.T) {
		dir := t.TempDir()
		w := newTestWriter(dir)

		paths, err := w.WriteResults(context.Background(), testReport(rec))
		require.NoError(t, err)

		data, err := os.ReadFile(paths[1])
		require.NoError(t, err)
		doc := string(data)
		assert.Contains(t, doc, "# Automation test prompts")
		assert.Contains(t, doc, "`button#loginBtn`")
		assert.Contains(t, doc, "`/html[1]/body[1]/button[1]`")
	})

	t.Run("creates nested output directories", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		w := newTestWriter(dir)

		paths, err := w.WriteResults(context.Background(), testReport(rec))
		require.NoError(t, err)
		_, err = os.Stat(paths[0])
		assert.NoError(t, err)
	})

	t.Run("zero-capture sessions still write a counts-only dump", func(t *testing.T) {
		dir := t.TempDir()
		w := newTestWriter(dir)

		paths, err := w.WriteResults(context.Background(), testReport())
		require.NoError(t, err)

		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		var got entity.CaptureReport
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, 0, got.UniqueCount)

		prompts, err := os.ReadFile(paths[1])
		require.NoError(t, err)
		assert.Contains(t, string(prompts), "No elements were captured")
	})

	t.Run("an unusable output directory is an internal error", func(t *testing.T) {
		tmp := t.TempDir()
		blocking := filepath.Join(tmp, "occupied")
		require.NoError(t, os.WriteFile(blocking, []byte("x"), 0644))

		w := newTestWriter(blocking)
		_, err := w.WriteResults(context.Background(), testReport(rec))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.CodeInternal))
	})
}
