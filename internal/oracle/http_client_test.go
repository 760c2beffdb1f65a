package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

func TestHTTPClientExtract(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"stated":{"age":"45"},"inferred":{"occupation":"farmer"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL, APIKey: "secret"})

	delta, err := client.Extract(context.Background(), "I am 45", "en", profile.NewContext())
	require.NoError(t, err)

	require.Equal(t, "/v1/extract", gotPath)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "45", delta.Stated["age"])
	require.Equal(t, "farmer", delta.Inferred["occupation"])
}

func TestHTTPClientReasonProseWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Here you go:\n[{\"program_id\":\"a\",\"score\":85,\"verdict\":\"eligible\"}]"))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL})

	candidates, err := client.Reason(context.Background(), profile.NewContext(), nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "a", candidates[0].ProgramID)
	require.Equal(t, 85, candidates[0].Score)
}

func TestHTTPClientPhraseQuestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"question":"How old are you?"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL})

	text, err := client.PhraseQuestion(context.Background(), "age", "en")
	require.NoError(t, err)
	require.Equal(t, "How old are you?", text)
}

func TestHTTPClientNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL})

	_, err := client.Reason(context.Background(), profile.NewContext(), nil)
	require.Error(t, err)

	var oracleErr *apperrors.OracleError
	require.ErrorAs(t, err, &oracleErr)
	require.Equal(t, http.StatusServiceUnavailable, oracleErr.StatusCode)
	require.True(t, apperrors.IsTransient(err))
}

func TestHTTPClientUnreachable(t *testing.T) {
	client := NewHTTPClient(HTTPClientConfig{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Timeout: 200 * time.Millisecond,
	})

	_, err := client.Extract(context.Background(), "hello", "en", profile.NewContext())
	require.ErrorIs(t, err, apperrors.ErrOracleUnavailable)
}

func TestHTTPClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("I refuse to answer in JSON today."))
	}))
	defer server.Close()

	client := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL})

	_, err := client.Extract(context.Background(), "hello", "en", profile.NewContext())
	require.ErrorIs(t, err, apperrors.ErrOracleMalformed)
}
