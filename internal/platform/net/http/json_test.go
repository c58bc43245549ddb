package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketfeed/internal/platform/net/http/bind"
)

type exportReq struct {
	Files  []string `json:"files" validate:"required,min=1"`
	Format string   `json:"format"`
}

func post(h Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/export", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestJSONHandler(t *testing.T) {
	t.Parallel()

	h := JSONHandler(bind.JSONOptions{MaxBytes: 1 << 10}, func(_ *http.Request, in exportReq) (any, error) {
		if in.Format == "yaml" {
			return nil, errors.New("no yaml")
		}
		return map[string]int{"total": len(in.Files)}, nil
	})

	cases := []struct {
		body string
		code int
		want string
	}{
		{`{"files":["a_parsed.json","b_parsed.json"]}`, http.StatusOK, `"total":2`},
		{`{"files":[]}`, http.StatusBadRequest, `"status":"Bad Request"`},
		{`{`, http.StatusBadRequest, `"status":"Bad Request"`},
		{`{"files":["a"],"format":"yaml"}`, http.StatusInternalServerError, "no yaml"},
	}
	for _, c := range cases {
		rr := post(h, c.body)
		if rr.Code != c.code || !strings.Contains(rr.Body.String(), c.want) {
			t.Fatalf("%s => %d %q", c.body, rr.Code, rr.Body.String())
		}
	}
}

func TestJSONHandlerNoBody_ResponsePassthrough(t *testing.T) {
	t.Parallel()

	h := JSONHandlerNoBody(func(*http.Request) (any, error) {
		return Created(map[string]string{"filename": "a.bz2"}), nil
	})
	rr := post(h, "")
	if rr.Code != http.StatusCreated || !strings.Contains(rr.Body.String(), `"filename":"a.bz2"`) {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}
