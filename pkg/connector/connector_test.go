package connector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestHTTPConnector_FetchJiraIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"PROJ-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPConnector(srv.URL+"/issue/", rate.Inf, 10)
	artifact, err := c.FetchJiraIssue(context.Background(), "PROJ-1")
	if err != nil {
		t.Fatal(err)
	}
	if artifact.Kind != "jira_issue" || string(artifact.Content) != `{"key":"PROJ-1"}` {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
}

func TestHTTPConnector_RegisterSwaggerRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`openapi: 3.0.0`))
	}))
	defer srv.Close()

	c := NewHTTPConnector("", rate.Inf, 10)
	artifact, err := c.RegisterSwaggerRef(context.Background(), srv.URL+"/spec.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if artifact.Kind != "swagger_spec" {
		t.Fatalf("expected swagger_spec kind, got %s", artifact.Kind)
	}
}

func TestHTTPConnector_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPConnector(srv.URL+"/issue/", rate.Inf, 10)
	_, err := c.FetchJiraIssue(context.Background(), "MISSING-1")
	if err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestStubConnector_AlwaysUnavailable(t *testing.T) {
	var c Connector = StubConnector{}
	_, err := c.FetchJiraIssue(context.Background(), "X")
	if !errors.Is(err, ErrConnectorUnavailable) {
		t.Fatalf("expected ErrConnectorUnavailable, got %v", err)
	}
	_, err = c.RegisterSwaggerRef(context.Background(), "http://example.com/spec.yaml")
	if !errors.Is(err, ErrConnectorUnavailable) {
		t.Fatalf("expected ErrConnectorUnavailable, got %v", err)
	}
}
