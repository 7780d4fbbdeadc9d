package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestListClassifiers(t *testing.T) {
	tests := []struct {
		name      string
		verbose   *bool
		wantQuery string
	}{
		{"default", nil, "version=2018-03-19"},
		{"verbose", boolPtr(true), "version=2018-03-19&verbose=true"},
		{"brief", boolPtr(false), "version=2018-03-19&verbose=false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/v3/classifiers" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.URL.RawQuery != tt.wantQuery {
					t.Errorf("query = %q, want %q", r.URL.RawQuery, tt.wantQuery)
				}
				_, _ = w.Write([]byte(`{"classifiers":[{"classifier_id":"dogs_1","name":"dogs","status":"ready"},{"classifier_id":"cats_2","name":"cats"}]}`))
			}))
			defer server.Close()

			client := newTestClient(server.URL, "t")
			list, err := client.Classifiers().List(context.Background(), tt.verbose, nil)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].ClassifierID != "dogs_1" || list[0].Status != "ready" {
				t.Errorf("unexpected list: %+v", list)
			}
		})
	}
}

func TestGetClassifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/v3/classifiers/my%20dogs" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		if r.Header.Get("X-Custom") != "1" {
			t.Error("extra header missing")
		}
		_, _ = w.Write([]byte(`{"classifier_id":"my dogs","name":"dogs","classes":[{"class":"beagle"}],"core_ml_enabled":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	c, err := client.Classifiers().Get(context.Background(), "my dogs", http.Header{"X-Custom": {"1"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Name != "dogs" || len(c.Classes) != 1 || c.Classes[0].Class != "beagle" || !c.CoreMLEnabled {
		t.Errorf("unexpected classifier: %+v", c)
	}
}

func TestGetClassifier_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"description":"Cannot find classifier","error_id":"not_found"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	_, err := client.Classifiers().Get(context.Background(), "nope", nil)
	if !IsNotFoundError(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	httpErr := err.(*HTTPError)
	if httpErr.Metadata["errorID"] != "not_found" || httpErr.MessageOr("") != "Cannot find classifier" {
		t.Errorf("unexpected error: %+v", httpErr)
	}
}

func TestGetClassifier_InvalidID(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", "t")
	_, err := client.Classifiers().Get(context.Background(), "bad\xff", nil)
	if !IsURLEncodingError(err) {
		t.Fatalf("expected URLEncodingError, got %T: %v", err, err)
	}
}

func TestCreateClassifier(t *testing.T) {
	beagles := writeTempFile(t, "beagle.zip", []byte("PK\x03\x04beagles"))
	husky := writeTempFile(t, "husky.zip", []byte("PK\x03\x04huskies"))
	cats := writeTempFile(t, "cats.zip", []byte("PK\x03\x04cats"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/classifiers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		reader, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("MultipartReader: %v", err)
		}
		var names []string
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			names = append(names, part.FormName())
		}
		want := "name,beagle_positive_examples,husky_positive_examples,negative_examples"
		if got := strings.Join(names, ","); got != want {
			t.Errorf("parts = %s, want %s", got, want)
		}
		_, _ = w.Write([]byte(`{"classifier_id":"dogs_123","name":"dogs","status":"training"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	c, err := client.Classifiers().Create(context.Background(), CreateClassifierOptions{
		Name: "dogs",
		PositiveExamples: []ClassExamples{
			{Class: "beagle", File: beagles},
			{Class: "husky", File: husky},
		},
		NegativeExamples: cats,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ClassifierID != "dogs_123" || c.Status != "training" {
		t.Errorf("unexpected classifier: %+v", c)
	}
}

func TestUpdateClassifier(t *testing.T) {
	goldens := writeTempFile(t, "golden.zip", []byte("PK\x03\x04golden"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/classifiers/dogs_123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, _, err := r.FormFile("goldenretriever_positive_examples"); err != nil {
			t.Errorf("missing positive examples: %v", err)
		}
		if _, ok := r.MultipartForm.Value["name"]; ok {
			t.Error("update must not send name")
		}
		_, _ = w.Write([]byte(`{"classifier_id":"dogs_123","name":"dogs","status":"retraining"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	c, err := client.Classifiers().Update(context.Background(), "dogs_123", UpdateClassifierOptions{
		PositiveExamples: []ClassExamples{{Class: "goldenretriever", File: goldens}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if c.Status != "retraining" {
		t.Errorf("unexpected classifier: %+v", c)
	}
}

func TestDeleteClassifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v3/classifiers/dogs_123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	if err := client.Classifiers().Delete(context.Background(), "dogs_123", nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestGetCoreMLModel(t *testing.T) {
	model := []byte{0x00, 0x01, 0xfe, 0xff}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/classifiers/dogs_123/core_ml_model" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/octet-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(model)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	got, err := client.Classifiers().CoreMLModel(context.Background(), "dogs_123", nil)
	if err != nil {
		t.Fatalf("CoreMLModel: %v", err)
	}
	if string(got) != string(model) {
		t.Errorf("model = %v", got)
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func TestGetClassifier_NullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	c, err := client.Classifiers().Get(context.Background(), "x", nil)
	if !IsSerializationError(err) {
		t.Fatalf("expected SerializationError, got %T (%v)", err, err)
	}
	if c != nil {
		t.Errorf("expected nil classifier, got %+v", c)
	}
}

func TestGetClassifier_LowercaseAcceptOverridden(t *testing.T) {
	var accepts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepts = append(accepts, strings.Join(r.Header.Values("Accept"), ","))
		_, _ = w.Write([]byte(`{"classifier_id":"x","name":"x"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "t")
	for i := 0; i < 20; i++ {
		if _, err := client.Classifiers().Get(context.Background(), "x", http.Header{"accept": {"text/plain"}}); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	for i, got := range accepts {
		if got != "application/json" {
			t.Fatalf("request %d Accept = %q, want application/json", i, got)
		}
	}
}
