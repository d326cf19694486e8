package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nigersavoir/savoir-client/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) GetToken(context.Context) (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens TokenSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", tokens, 2*time.Second)
}

func TestClient_AttachesBearerAndQuery(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}, staticTokens("tok-1"))

	_, err := c.ListBooks(context.Background(), BookFilter{Query: "maths", SchoolID: 3, IDs: []int64{4, 5}})
	require.NoError(t, err)

	assert.Equal(t, "/api/books", got.URL.Path)
	assert.Equal(t, "Bearer tok-1", got.Header.Get("Authorization"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Empty(t, got.Header.Get("Content-Type"))
	assert.Equal(t, []string{"4", "5"}, got.URL.Query()["ids"])
	assert.Equal(t, "maths", got.URL.Query().Get("q"))
	assert.Equal(t, "3", got.URL.Query().Get("schoolId"))
	assert.False(t, got.URL.Query().Has("subject"))
}

func TestClient_AnonymousRequestHasNoAuthorization(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}, staticTokens(""))

	_, err := c.ListSchools(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_JSONBodyHasContentType(t *testing.T) {
	var contentType string
	var body LoginRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"t","email":"a@b.c","name":"A","role":"USER"}`))
	}, nil)

	resp, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "pw", body.Password)
	assert.Equal(t, &domain.User{DisplayName: "A", EmailAddress: "a@b.c", Role: "USER"}, resp.User())
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		message     string
	}{
		{name: "error field", status: 400, contentType: "application/json", body: `{"error":"Stock insuffisant"}`, message: "Stock insuffisant"},
		{name: "message field", status: 401, contentType: "application/json; charset=utf-8", body: `{"message":"Token expiré"}`, message: "Token expiré"},
		{name: "error preferred", status: 409, contentType: "application/json", body: `{"error":"conflit","message":"other"}`, message: "conflit"},
		{name: "blank error falls through", status: 409, contentType: "application/json", body: `{"error":"  ","message":"other"}`, message: "other"},
		{name: "plain text", status: 502, contentType: "text/plain", body: "Bad Gateway\n", message: "Bad Gateway"},
		{name: "unparseable json", status: 500, contentType: "application/json", body: `{oops`, message: "API error (500)"},
		{name: "empty body", status: 503, contentType: "", body: "", message: "API error (503)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, nil)

			_, err := c.MyOrders(context.Background())

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.body, string(apiErr.Payload))
		})
	}
}

func TestClient_MalformedSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "not a number"`))
	}, nil)

	_, err := c.GetBook(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, nil, 20*time.Millisecond)

	_, err := c.Me(context.Background())
	require.Error(t, err)
	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestReactionSummary_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{name: "valid", body: `[{"bookId":1,"likeCount":2,"dislikeCount":0,"myReaction":"LIKE"}]`, ok: true},
		{name: "null reaction", body: `[{"bookId":1,"likeCount":2,"dislikeCount":0,"myReaction":null}]`, ok: true},
		{name: "missing reaction", body: `[{"bookId":1,"likeCount":2,"dislikeCount":0}]`, ok: true},
		{name: "missing id", body: `[{"likeCount":2,"dislikeCount":0}]`},
		{name: "wrong id field", body: `[{"documentId":1,"likeCount":2,"dislikeCount":0}]`},
		{name: "missing count", body: `[{"bookId":1,"likeCount":2}]`},
		{name: "negative count", body: `[{"bookId":1,"likeCount":-1,"dislikeCount":0}]`},
		{name: "unknown reaction", body: `[{"bookId":1,"likeCount":1,"dislikeCount":0,"myReaction":"LOVE"}]`},
		{name: "lowercase reaction", body: `[{"bookId":1,"likeCount":1,"dislikeCount":0,"myReaction":"like"}]`},
		{name: "wrong type", body: `[{"bookId":"1","likeCount":1,"dislikeCount":0}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}, nil)

			tallies, err := c.BookReactionSummary(context.Background(), []int64{1})
			if tt.ok {
				require.NoError(t, err)
				require.Len(t, tallies, 1)
				assert.Equal(t, int64(1), tallies[0].SubjectID)
				return
			}
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestReactionSummary_EmptyIDsSkipsRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls++ }, nil)

	tallies, err := c.DocumentReactionSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tallies)
	assert.Equal(t, 0, calls)
}

func TestSetReaction_RejectsOtherSubject(t *testing.T) {
	var body map[string]string
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documentId":9,"likeCount":1,"dislikeCount":0,"myReaction":"LIKE"}`))
	}, staticTokens("t"))

	_, err := c.SetDocumentReaction(context.Background(), 4, domain.ReactionPositive)

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, "/api/reactions/documents/4", path)
	assert.Equal(t, map[string]string{"reactionType": "LIKE"}, body)
}

func TestDownloadDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="bac-2023.pdf"`)
		w.Write([]byte("%PDF"))
	}, nil)

	d, err := c.DownloadDocument(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "bac-2023.pdf", d.Filename)
	assert.Equal(t, "application/pdf", d.ContentType)
	assert.Equal(t, []byte("%PDF"), d.Data)
}

func TestUploadDocument_SendsMultipartForm(t *testing.T) {
	fields := map[string]string{}
	var (
		file    string
		name    string
		auth    string
		hasSize bool
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		hasSize = r.ContentLength > 0
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		file, name = string(data), header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":7,"title":"Sujet","format":"PDF"}`))
	}, staticTokens("tok"))

	doc, err := c.UploadDocument(context.Background(), DocumentUpload{
		Title:    "Sujet",
		Subject:  "Français",
		Level:    "3ème",
		Type:     "EXAMEN",
		Year:     "2022",
		SchoolID: 3,
		Filename: "sujet.pdf",
		Content:  strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.ID)
	assert.Equal(t, "Bearer tok", auth)
	assert.True(t, hasSize)
	assert.Equal(t, map[string]string{
		"title":    "Sujet",
		"subject":  "Français",
		"level":    "3ème",
		"type":     "EXAMEN",
		"year":     "2022",
		"schoolId": "3",
	}, fields)
	assert.Equal(t, "%PDF", file)
	assert.Equal(t, "sujet.pdf", name)
}

func TestUploadDocument_RequiresFile(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true }, nil)

	_, err := c.UploadDocument(context.Background(), DocumentUpload{Title: "T", Filename: "a.pdf"})
	assert.ErrorIs(t, err, ErrEmptyUpload)
	_, err = c.UploadDocument(context.Background(), DocumentUpload{Title: "T", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrEmptyUpload)
	assert.False(t, called)
}
