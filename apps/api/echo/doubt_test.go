package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/user"
)

type doubtResp struct {
	Doubt doubt.Doubt `json:"doubt"`
}

type doubtsResp struct {
	Doubts []doubt.Doubt `json:"doubts"`
}

func Test_doubtApi(t *testing.T) {
	e := setup(t)
	junior := e.createUser(t, "June Junior", "june@campus.edu", user.RoleJunior, "CSE")
	other := e.createUser(t, "Omar Junior", "omar@campus.edu", user.RoleJunior, "CSE")
	senior := e.createUser(t, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE")
	e.createUser(t, "Fay Faculty", "fay@campus.edu", user.RoleFaculty, "CSE")
	juniorToken := getToken(t, e, junior)
	seniorToken := getToken(t, e, senior)

	question := marchallObj(t, doubt.NewDoubt{Subject: "DSA", Question: "Why is quicksort O(n log n) on average?"})
	answer := marchallObj(t, doubt.NewAnswer{Answer: "Because random pivots split the input evenly on average."})

	runHTTPTests(t, e, []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/api/doubts",
			body:     question,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "seniors cannot ask",
			method:   http.MethodPost,
			path:     "/api/doubts",
			body:     question,
			token:    seniorToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "question too short",
			method:   http.MethodPost,
			path:     "/api/doubts",
			body:     marchallObj(t, doubt.NewDoubt{Question: "why quicksort?"}),
			token:    juniorToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "juniors cannot list assigned doubts",
			method:   http.MethodGet,
			path:     "/api/doubts/assigned",
			token:    juniorToken,
			wantCode: http.StatusForbidden,
		},
	})

	// submit
	req, rec := newAuthRequest(http.MethodPost, "/api/doubts", juniorToken, question)
	rec = e.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created doubtResp
	unmarshal(t, rec, &created)
	d := created.Doubt
	assert.Equal(t, doubt.StatusOpen, d.Status)
	assert.Equal(t, "CSE", d.Department)
	require.NotNil(t, d.AssignedSeniorID)
	assert.Equal(t, senior.ID, *d.AssignedSeniorID)

	var list doubtsResp
	req, rec = newAuthRequest(http.MethodGet, "/api/doubts/assigned", seniorToken)
	unmarshal(t, e.do(req, rec), &list)
	require.Len(t, list.Doubts, 1)
	assert.Equal(t, "June Junior", list.Doubts[0].AskerName)

	req, rec = newAuthRequest(http.MethodGet, "/api/doubts/"+d.ID, getToken(t, e, other))
	assert.Equal(t, http.StatusNotFound, e.do(req, rec).Code, "strangers cannot see a doubt")

	runHTTPTests(t, e, []httpTest{
		{
			name:     "answer too short",
			method:   http.MethodPatch,
			path:     "/api/doubts/" + d.ID + "/answer",
			body:     marchallObj(t, doubt.NewAnswer{Answer: "because"}),
			token:    seniorToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "juniors cannot answer",
			method:   http.MethodPatch,
			path:     "/api/doubts/" + d.ID + "/answer",
			body:     answer,
			token:    juniorToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown doubt",
			method:   http.MethodPatch,
			path:     "/api/doubts/missing/answer",
			body:     answer,
			token:    seniorToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "doubt not found"}),
		},
		{
			name:     "answer",
			method:   http.MethodPatch,
			path:     "/api/doubts/" + d.ID + "/answer",
			body:     answer,
			token:    seniorToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "answer twice",
			method:   http.MethodPatch,
			path:     "/api/doubts/" + d.ID + "/answer",
			body:     answer,
			token:    seniorToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "this doubt has already been answered"}),
		},
	})

	req, rec = newAuthRequest(http.MethodGet, "/api/doubts/my", juniorToken)
	unmarshal(t, e.do(req, rec), &list)
	require.Len(t, list.Doubts, 1)
	assert.Equal(t, doubt.StatusAnswered, list.Doubts[0].Status)
	assert.Equal(t, "Sam Senior", list.Doubts[0].AnswererName)

	req, rec = newAuthRequest(http.MethodGet, "/api/users/points", seniorToken)
	var stmt ledger.Statement
	unmarshal(t, e.do(req, rec), &stmt)
	assert.Equal(t, 5, stmt.Points)
}

func Test_doubtApi_escalated(t *testing.T) {
	e := setup(t)
	junior := e.createUser(t, "June Junior", "june@campus.edu", user.RoleJunior, "CSE")
	senior := e.createUser(t, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE")
	faculty := e.createUser(t, "Fay Faculty", "fay@campus.edu", user.RoleFaculty, "CSE")

	question := marchallObj(t, doubt.NewDoubt{Question: "How do B-trees stay balanced on insert?"})
	req, rec := newAuthRequest(http.MethodPost, "/api/doubts", getToken(t, e, junior), question)
	rec = e.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created doubtResp
	unmarshal(t, rec, &created)

	e.clock.Advance(49 * time.Hour)
	escalated, failed, err := e.doubts.EscalateStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, escalated)
	require.Equal(t, 0, failed)

	answer := marchallObj(t, doubt.NewAnswer{Answer: "Nodes split and push the median up."})
	path := "/api/doubts/" + created.Doubt.ID + "/answer"

	req, rec = newAuthRequest(http.MethodPatch, path, getToken(t, e, senior), answer)
	rec = e.do(req, rec)
	assert.Equal(t, http.StatusConflict, rec.Code)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), marchallObj(t, httpErr{Error: "this doubt has been escalated to faculty"}))
	require.NoError(t, err)
	assert.True(t, ok, rec.Body.String())

	req, rec = newAuthRequest(http.MethodPatch, path, getToken(t, e, faculty), answer)
	rec = e.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var answered doubtResp
	unmarshal(t, rec, &answered)
	assert.Equal(t, doubt.StatusEscalated, answered.Doubt.Status)
	require.NotNil(t, answered.Doubt.Answer)
	assert.Equal(t, "Nodes split and push the median up.", *answered.Doubt.Answer)

	req, rec = newAuthRequest(http.MethodPatch, path, getToken(t, e, faculty), answer)
	assert.Equal(t, http.StatusConflict, e.do(req, rec).Code)
}
