package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/alexjbarnes/ampwidgets/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestClient creates a Client pointed at the given httptest server.
func newTestClient(srv *httptest.Server, store session.Store, reauth Reauthenticator) *Client {
	return NewClient(store, reauth,
		WithBaseURL(srv.URL+"/v2.9"),
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
}

func grantedStore(t *testing.T, token string) *session.MemoryStore {
	t.Helper()
	s := session.NewMemoryStore()
	require.NoError(t, s.Put(token))
	return s
}

func TestCall_ResolvesRelativeLocatorAgainstBase(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"summary":{"total_count":5,"has_liked":true}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	body, err := c.Call(context.Background(), "123/likes?summary=true", "")
	require.NoError(t, err)

	assert.Equal(t, "/v2.9/123/likes", gotPath)
	assert.Equal(t, "summary=true", gotQuery)
	assert.Equal(t, int64(5), body.Get("summary.total_count").Int())
	assert.True(t, body.Get("summary.has_liked").Bool())
}

func TestCall_AbsoluteLocatorSentUnmodified(t *testing.T) {
	var gotURI string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	abs := srv.URL + "/v9.9/obj/comments?after=CURSOR"
	_, err := c.Get(context.Background(), abs)
	require.NoError(t, err)
	assert.Equal(t, "/v9.9/obj/comments?after=CURSOR", gotURI)
}

func TestResolve(t *testing.T) {
	c := NewClient(session.NewMemoryStore(), nil)
	assert.Equal(t, DefaultBaseURL+"?id=x", c.Resolve("?id=x"))
	assert.Equal(t, "https://graph.facebook.com/v2.9/1/comments?after=a",
		c.Resolve("https://graph.facebook.com/v2.9/1/comments?after=a"))
	assert.Equal(t, "//cdn.example.com/x", c.Resolve("//cdn.example.com/x"))

	c = NewClient(session.NewMemoryStore(), nil, WithBaseURL("http://localhost:8095/v2.9"))
	assert.Equal(t, "http://localhost:8095/v2.9/me", c.Resolve("me"))
}

func TestCall_SendsBearerFromStore(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := grantedStore(t, "first")
	c := newTestClient(srv, store, nil)

	_, err := c.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, "Bearer first", gotAuth)

	// A later redirect-back overwrites the token; the next call uses it.
	require.NoError(t, store.Put("second"))
	_, err = c.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, "Bearer second", gotAuth)
}

func TestCall_AbsentTokenStillSendsBearerHeader(t *testing.T) {
	var gotAuth string
	var sawHeader bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, session.NewMemoryStore(), nil)
	_, err := c.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.True(t, sawHeader)
	assert.Equal(t, "Bearer", strings.TrimSpace(gotAuth))
}

func TestCall_Methods(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			var gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				w.Write([]byte(`{"success":true}`))
			}))
			defer srv.Close()

			c := newTestClient(srv, grantedStore(t, "tok"), nil)
			body, err := c.Call(context.Background(), "1/likes", method)
			require.NoError(t, err)
			assert.Equal(t, method, gotMethod)
			assert.True(t, body.Get("success").Bool())
		})
	}
}

func TestDo_SendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		var got map[string]string
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "hello", got["message"])
		w.Write([]byte(`{"id":"c1"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	body, err := c.Do(context.Background(), Request{
		Locator: "1/comments",
		Method:  http.MethodPost,
		Body:    map[string]string{"message": "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", body.Get("id").String())
}

func TestCall_ExpiredTokenTriggersSignInAndStillFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"OAuthException","code":190,"message":"Expired"}}`))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Return(nil).Times(1)

	store := grantedStore(t, "stale")
	c := newTestClient(srv, store, reauth)

	body, err := c.Get(context.Background(), "1/likes?summary=true")
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "Expired", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindExpiredToken, apiErr.Kind())
	assert.Equal(t, int64(190), apiErr.Code)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))

	// The stale token is not cleared by the client.
	tok, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "stale", tok)
}

func TestCall_ExpiredTokenSignInFailureStillReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"OAuthException","code":190,"message":"Session has expired"}}`))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Return(errors.New("no browser"))

	c := newTestClient(srv, grantedStore(t, "tok"), reauth)
	_, err := c.Get(context.Background(), "me")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Session has expired", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestCall_OtherProviderErrorDoesNotSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"Other","code":1,"message":"X"}}`))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Times(0)

	c := newTestClient(srv, grantedStore(t, "tok"), reauth)
	_, err := c.Get(context.Background(), "me")
	require.Error(t, err)
	assert.Equal(t, "X", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindProvider, apiErr.Kind())
	assert.False(t, errors.Is(err, apperrors.ErrInvalidToken))
}

func TestCall_OAuthExceptionWithOtherCodeDoesNotSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"OAuthException","code":200,"message":"(#200) Permissions error"}}`))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Times(0)

	c := newTestClient(srv, grantedStore(t, "tok"), reauth)
	_, err := c.Call(context.Background(), "1/likes", http.MethodPost)
	assert.EqualError(t, err, "(#200) Permissions error")
}

func TestCall_StringCodeStillMatchesExpiredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"OAuthException","code":"190","message":"Expired"}}`))
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Return(nil)

	c := newTestClient(srv, grantedStore(t, "tok"), reauth)
	_, err := c.Get(context.Background(), "me")
	assert.EqualError(t, err, "Expired")
}

func TestCall_NonObjectErrorValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(context.Background(), "me")
	assert.EqualError(t, err, "rate limited")
}

func TestCall_FalsyErrorMemberIsIgnored(t *testing.T) {
	for _, body := range []string{`{"error":null,"ok":1}`, `{"error":false,"ok":1}`, `{"error":"","ok":1}`, `{"error":0,"ok":1}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		c := newTestClient(srv, grantedStore(t, "tok"), nil)
		got, err := c.Get(context.Background(), "me")
		require.NoError(t, err, body)
		assert.Equal(t, int64(1), got.Get("ok").Int())
		srv.Close()
	}
}

func TestCall_ExpiredWithoutReauthenticatorStillFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"type":"OAuthException","code":190,"message":"Expired"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(context.Background(), "me")
	assert.EqualError(t, err, "Expired")
}

func TestCall_NonJSONBodyIsResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(context.Background(), "me")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAPIResponse))
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestCall_EmptyBodyIsResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(context.Background(), "me")
	assert.True(t, errors.Is(err, apperrors.ErrAPIResponse))
}

func TestCall_SuccessBodyParsedRegardlessOfStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"data":[1,2]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	body, err := c.Get(context.Background(), "me")
	require.NoError(t, err)
	assert.Len(t, body.Get("data").Array(), 2)
}

func TestCall_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ctrl := gomock.NewController(t)
	reauth := NewMockReauthenticator(ctrl)
	reauth.EXPECT().SignIn(gomock.Any()).Times(0)

	c := newTestClient(srv, grantedStore(t, "tok"), reauth)
	_, err := c.Get(context.Background(), "me")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAPIRequest))
}

func TestCall_SingleAttemptNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"type":"Other","code":2,"message":"Service temporarily unavailable"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(context.Background(), "me")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv, grantedStore(t, "tok"), nil)
	_, err := c.Get(ctx, "me")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBody_Decode(t *testing.T) {
	body := Body(`{"data":[{"id":"c1","message":"hi","from":{"id":"u1","name":"Ann"},"created_time":"2017-05-01T12:00:00+0000"}],"paging":{"next":"https://graph.facebook.com/v2.9/1/comments?after=x"}}`)

	var resp CommentsResponse
	require.NoError(t, body.Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Ann", resp.Data[0].From.Name)
	assert.Equal(t, "", resp.Paging.Previous)
	assert.Contains(t, resp.Paging.Next, "after=x")
}

func TestSanitizeResponseBody(t *testing.T) {
	assert.Equal(t, "a?b", sanitizeResponseBody([]byte("a\x00b")))
	assert.Len(t, sanitizeResponseBody([]byte(strings.Repeat("x", 1000))), 256)
	assert.Equal(t, "ok\n", sanitizeResponseBody([]byte("ok\n")))
	assert.Equal(t, "?", sanitizeResponseBody([]byte{0xff}))
}
