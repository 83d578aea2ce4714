package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/tests"
)

func Test_quizApi_create(t *testing.T) {
	a := setup(t)
	adminToken := getAdminToken(t, a.conf)

	tests := []httpTest{
		{name: "missing token", body: []byte("{}"), wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name:     "empty data",
			body:     []byte("{}"),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"title": "this field is required",
				"kind":  "this field is required",
			}),
		},
		{
			name:     "academic",
			body:     marshallObj(t, map[string]string{"title": "Compilers", "kind": "academic", "subject": "CS", "class": "3-1:a,b"}),
			token:    adminToken,
			wantCode: http.StatusCreated,
		},
		{
			name:     "event",
			body:     marshallObj(t, map[string]string{"title": "Tech fest", "kind": "event"}),
			token:    adminToken,
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes", tt.token, tt.body)
			a.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	quizzes, err := a.quizRepo.FilterQuizzes(context.Background(), quiz.QueryFilter{Kind: quiz.KindAcademic})
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, "3-1:A,B", quizzes[0].Class())
	assert.True(t, quizzes[0].IsActive)
}

func Test_quizApi_detail(t *testing.T) {
	a := setup(t)
	now := time.Now()
	q1 := testutil.CreateQuiz(t, a.quizRepo, "Graph theory", quiz.KindAcademic, true, now.Add(-time.Hour))
	q2 := testutil.CreateQuiz(t, a.quizRepo, "Tech fest", quiz.KindEvent, true, now)
	adminToken := getAdminToken(t, a.conf)

	t.Run("query", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes", adminToken)
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallList(t, q2, q1)}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/"+q1.ID, adminToken)
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, q1)}, rec)
	})

	t.Run("not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/quizzes/nope", adminToken)
		a.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("update", func(t *testing.T) {
		data := marshallObj(t, map[string]string{"title": "Graph theory II", "class": "4-2:C"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/quizzes/"+q1.ID, adminToken, data)
		a.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var got quiz.Quiz
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "Graph theory II", got.Title)
		assert.Equal(t, "Algorithms", got.Subject)
		assert.Equal(t, 4, got.Year)
		assert.Equal(t, []string{"C"}, got.Sections)
	})

	t.Run("deactivate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/quizzes/"+q2.ID, adminToken)
		a.serve(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		q, err := a.quizRepo.GetQuiz(context.Background(), q2.ID)
		require.NoError(t, err)
		assert.False(t, q.IsActive)
	})
}
