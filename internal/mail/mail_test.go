package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestBrevo_SendCode_PostsPayload(t *testing.T) {
	t.Parallel()
	var (
		got    brevoPayload
		method string
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, header = r.Method, r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<m1@brevo>"}`))
	}))
	defer srv.Close()

	b := NewBrevo(BrevoConfig{APIKey: "secret", URL: srv.URL, SenderEmail: "no-reply@ditrix.app"}, zaptest.NewLogger(t))
	require.NoError(t, b.SendCode(context.Background(), "a@example.com", "123456", PurposeReset))

	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "secret", header.Get("api-key"))
	require.Equal(t, "application/json", header.Get("Content-Type"))

	require.Equal(t, "DITrix", got.Sender.Name)
	require.Equal(t, "no-reply@ditrix.app", got.Sender.Email)
	require.Equal(t, []brevoAddress{{Email: "a@example.com"}}, got.To)
	require.Equal(t, "DITrix password reset code", got.Subject)
	require.Contains(t, got.HTMLContent, "123456")
	require.Contains(t, got.HTMLContent, "Password reset")
}

func TestBrevo_SendCode_Non2xxIsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := NewBrevo(BrevoConfig{APIKey: "bad", URL: srv.URL}, zaptest.NewLogger(t))
	err := b.SendCode(context.Background(), "a@example.com", "123456", PurposeVerify)
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "unauthorized")
}

func TestBody_EscapesCode(t *testing.T) {
	t.Parallel()
	require.Contains(t, body("<b>", PurposeVerify), "&lt;b&gt;")
	require.Equal(t, "DITrix email verification code", Subject(PurposeVerify))
}

func TestLogSender_LogsCode(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))
	require.NoError(t, s.SendCode(context.Background(), "a@example.com", "654321", PurposeVerify))
	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	require.Equal(t, "654321", e.ContextMap()["code"])
	require.Equal(t, "verify", e.ContextMap()["purpose"])
}
