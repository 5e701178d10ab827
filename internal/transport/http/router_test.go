package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/mocks"
	"github.com/cwrk-planet/chat-service/internal/store"
	"github.com/cwrk-planet/chat-service/internal/store/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func okPing(context.Context) error { return nil }

func do(t *testing.T, h http.Handler, method, target string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func seed(t *testing.T, st *memory.Store, n int) {
	t.Helper()
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i := range n {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		_, err := st.Append(context.Background(), domain.Message{
			SenderID: from, ReceiverID: to, Content: "m", CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

func TestHistory_FullAndSymmetric(t *testing.T) {
	st := memory.New()
	seed(t, st, 5)
	h := NewRouter(Deps{Handler: NewHandler(st, pingFunc(okPing)), Log: discard})

	ab := do(t, h, http.MethodGet, "/api/chat/history/alice/bob")
	require.Equal(t, http.StatusOK, ab.Code)
	ba := do(t, h, http.MethodGet, "/api/chat/history/bob/alice")
	require.Equal(t, http.StatusOK, ba.Code)

	got := decodeBody[HistoryResponse](t, ab)
	require.Len(t, got.Items, 5)
	require.Empty(t, got.NextCursor)
	require.Equal(t, got, decodeBody[HistoryResponse](t, ba))
	for i := 1; i < len(got.Items); i++ {
		require.False(t, got.Items[i].Timestamp.Before(got.Items[i-1].Timestamp))
	}
}

func TestMessages_PortalShape(t *testing.T) {
	st := memory.New()
	seed(t, st, 3)
	h := NewRouter(Deps{Handler: NewHandler(st, pingFunc(okPing)), Log: discard})

	rec := do(t, h, http.MethodGet, "/api/messages/bob/alice")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]PortalMessage](t, rec)
	require.Len(t, got, 3)
	require.Equal(t, "alice", got[0].SenderID)
	require.Equal(t, "bob", got[1].SenderID)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
	require.Contains(t, rec.Body.String(), `"senderId"`)

	empty := do(t, h, http.MethodGet, "/api/messages/carol/dave")
	require.Equal(t, http.StatusOK, empty.Code)
	require.JSONEq(t, "[]", empty.Body.String())

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/messages/alice/%00").Code)
}

func TestMessages_RequiresParticipantToken(t *testing.T) {
	v := auth.NewVerifier("s3cret", 0)
	h := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard, Verifier: v})

	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/messages/alice/bob").Code)

	alice, err := v.Sign("alice", time.Now(), time.Minute)
	require.NoError(t, err)
	rec := do(t, h, http.MethodGet, "/api/messages/alice/bob", "Authorization", "Bearer "+alice)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistory_Pagination(t *testing.T) {
	st := memory.New()
	seed(t, st, 5)
	h := NewRouter(Deps{Handler: NewHandler(st, pingFunc(okPing)), Log: discard})

	var (
		all    []MessageItem
		cursor string
	)
	for range 3 {
		rec := do(t, h, http.MethodGet, "/api/chat/history/alice/bob?limit=2&cursor="+cursor)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodeBody[HistoryResponse](t, rec)
		all = append(all, page.Items...)
		cursor = page.NextCursor
		if cursor == "" {
			break
		}
	}
	require.Len(t, all, 5)
	require.Empty(t, cursor)
}

func TestHistory_BadRequests(t *testing.T) {
	h := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard})

	for _, target := range []string{
		"/api/chat/history/alice/bob?limit=abc",
		"/api/chat/history/alice/bob?limit=0",
		"/api/chat/history/alice/bob?cursor=***",
		"/api/chat/history/alice/%00",
	} {
		rec := do(t, h, http.MethodGet, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	garbage := "bm90LWpzb24" // base64url of "not-json"
	rec := do(t, h, http.MethodGet, "/api/chat/history/alice/bob?cursor="+garbage)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_cursor", decodeBody[ErrorResponse](t, rec).Error)
}

func TestHistory_StorageFailureIs503(t *testing.T) {
	ctrl := gomock.NewController(t)
	hist := mocks.NewMockHistoryReader(ctrl)
	hist.EXPECT().History(gomock.Any(), "alice", "bob").
		Return(nil, domain.NewStorageError("history", errors.New("disk gone")))
	hist.EXPECT().HistoryPage(gomock.Any(), "alice", "bob", "", store.MaxPageSize).
		Return([]domain.Message{{ID: uuid.New(), SenderID: "alice", ReceiverID: "bob", Content: "x"}}, "", nil)

	h := NewRouter(Deps{Handler: NewHandler(hist, pingFunc(okPing)), Log: discard})

	rec := do(t, h, http.MethodGet, "/api/chat/history/alice/bob")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk gone")

	// Oversized limits are clamped, not rejected.
	rec = do(t, h, http.MethodGet, "/api/chat/history/alice/bob?limit=5000")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistory_RequiresParticipantToken(t *testing.T) {
	v := auth.NewVerifier("s3cret", 0)
	h := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard, Verifier: v})

	rec := do(t, h, http.MethodGet, "/api/chat/history/alice/bob")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	carol, err := v.Sign("carol", time.Now(), time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/chat/history/alice/bob", "Authorization", "Bearer "+carol)
	require.Equal(t, http.StatusForbidden, rec.Code)

	bob, err := v.Sign("bob", time.Now(), time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/chat/history/alice/bob", "Authorization", "Bearer "+bob)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistory_RateLimited(t *testing.T) {
	h := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard, HistoryPerMinute: 2})

	for range 2 {
		require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/chat/history/alice/bob").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/chat/history/alice/bob").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(Deps{
		Handler:        NewHandler(memory.New(), pingFunc(okPing)),
		Log:            discard,
		AllowedOrigins: []string{"http://portal.local"},
	})

	rec := do(t, h, http.MethodOptions, "/api/chat/history/alice/bob",
		"Origin", "http://portal.local",
		"Access-Control-Request-Method", "GET",
	)
	require.Equal(t, "http://portal.local", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		h := NewRouter(Deps{
			Handler:        NewHandler(memory.New(), pingFunc(okPing)),
			Log:            discard,
			AllowedOrigins: origins,
		})

		rec := do(t, h, http.MethodOptions, "/api/messages/alice/bob",
			"Origin", "http://evil.example",
			"Access-Control-Request-Method", "GET",
		)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), "%v", origins)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), "%v", origins)
	}
}

func TestProbes(t *testing.T) {
	healthy := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard})
	require.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/healthz").Code)
	require.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/readyz").Code)

	rec := do(t, healthy, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")

	down := NewRouter(Deps{
		Handler: NewHandler(memory.New(), pingFunc(func(context.Context) error { return errors.New("closed") })),
		Log:     discard,
	})
	require.Equal(t, http.StatusOK, do(t, down, http.MethodGet, "/healthz").Code)
	require.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz").Code)
}

func TestRequestIDEchoed(t *testing.T) {
	h := NewRouter(Deps{Handler: NewHandler(memory.New(), pingFunc(okPing)), Log: discard})

	rec := do(t, h, http.MethodGet, "/healthz", HeaderRequestID, "req-42")
	require.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	rec = do(t, h, http.MethodGet, "/healthz")
	_, err := uuid.Parse(rec.Header().Get(HeaderRequestID))
	require.NoError(t, err)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusFor(domain.ErrNotJoined))
	require.Equal(t, http.StatusBadRequest, statusFor(store.ErrInvalidCursor))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(domain.NewStorageError("append", io.EOF)))
	require.Equal(t, http.StatusForbidden, statusFor(errForbidden))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
