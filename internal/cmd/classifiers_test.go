package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dogsClassifierBody = `{
	"classifier_id": "dogs_1941945966",
	"name": "dogs",
	"owner": "me",
	"status": "ready",
	"core_ml_enabled": true,
	"created": "2016-05-18T20:17:34.123Z",
	"classes": [{"class": "beagle"}, {"class": "husky"}]
}`

func runCmdCapture(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	stdout = captureStdout(t, func() {
		stderr = captureStderr(t, func() {
			err = Execute(context.Background(), args)
		})
	})
	return stdout, stderr, err
}

func TestClassifiersList_Text(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Has("verbose") {
				t.Errorf("verbose should be omitted, got %q", r.URL.RawQuery)
			}
			jsonResponse(200, classifiersListBody)(w, r)
		})
	env := setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "dogs_1941945966")
	assert.Contains(t, out, "training")

	entries, err := os.ReadDir(env.cacheDir)
	require.NoError(t, err, "list should populate the cache")
	assert.Len(t, entries, 1)
}

func TestClassifiersList_VerboseJSON(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("verbose"))
			jsonResponse(200, `{"classifiers": [`+dogsClassifierBody+`]}`)(w, r)
		})
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "list", "--verbose", "--json")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "dogs", items[0]["name"])
	assert.Len(t, items[0]["classes"], 2)
}

func TestClassifiersList_Empty(t *testing.T) {
	handler := newRouteHandler().On("GET", "/v3/classifiers", jsonResponse(200, `{"classifiers": []}`))
	setupTestEnvWithHandler(t, handler)

	out, stderr, err := runCmdCapture(t, "classifiers", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "No classifiers found.")

	out, _, err = runCmdCapture(t, "classifiers", "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestClassifiersGet_ByName(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody)).
		On("GET", "/v3/classifiers/dogs_1941945966", jsonResponse(200, dogsClassifierBody))
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "get", "dogs")
	require.NoError(t, err)
	assert.Contains(t, out, "ID:       dogs_1941945966")
	assert.Contains(t, out, "Classes:  beagle, husky")
	assert.Contains(t, out, "Core ML:  true")
}

func TestClassifiersGet_StaleCacheRefreshes(t *testing.T) {
	listed := 0
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", func(w http.ResponseWriter, r *http.Request) {
			listed++
			if listed == 1 {
				jsonResponse(200, `{"classifiers": [{"classifier_id": "cats_2044121", "name": "cats"}]}`)(w, r)
				return
			}
			jsonResponse(200, classifiersListBody)(w, r)
		}).
		On("GET", "/v3/classifiers/dogs_1941945966", jsonResponse(200, dogsClassifierBody))
	setupTestEnvWithHandler(t, handler)

	_, _, err := runCmdCapture(t, "classifiers", "list")
	require.NoError(t, err)

	out, _, err := runCmdCapture(t, "classifiers", "get", "dogs_1941945966")
	require.NoError(t, err)
	assert.Contains(t, out, "dogs_1941945966")
	assert.Equal(t, 2, listed)
}

func TestClassifiersGet_NotFound(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, `{"classifiers": [{"classifier_id": "gone_1", "name": "gone"}]}`)).
		On("GET", "/v3/classifiers/gone_1", jsonResponse(404, `{"error": {"description": "Cannot find classifier", "error_id": "not_found"}}`))
	setupTestEnvWithHandler(t, handler)

	_, stderr, err := runCmdCapture(t, "classifiers", "get", "gone")
	require.Error(t, err)
	assert.Equal(t, exitNotFound, ExitCode(err))
	assert.Contains(t, stderr, "Cannot find classifier")
	assert.Contains(t, stderr, "errorID=not_found")
}

func TestClassifiersCreate(t *testing.T) {
	dir := t.TempDir()
	beagle := filepath.Join(dir, "beagle.zip")
	husky := filepath.Join(dir, "husky.zip")
	cats := filepath.Join(dir, "cats.zip")
	for _, p := range []string{beagle, husky, cats} {
		require.NoError(t, os.WriteFile(p, []byte("PK\x03\x04"), 0o600))
	}

	var fields []string
	var name string
	handler := newRouteHandler().
		On("POST", "/v3/classifiers", func(w http.ResponseWriter, r *http.Request) {
			reader, err := r.MultipartReader()
			if err != nil {
				t.Errorf("MultipartReader: %v", err)
				return
			}
			for {
				part, err := reader.NextPart()
				if err != nil {
					break
				}
				fields = append(fields, part.FormName())
				if part.FormName() == "name" {
					buf := make([]byte, 64)
					n, _ := part.Read(buf)
					name = string(buf[:n])
				}
			}
			jsonResponse(200, `{"classifier_id": "dogs_1941945966", "name": "dogs", "status": "training"}`)(w, r)
		})
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "create", "--name", "dogs",
		"--positive", "beagle="+beagle, "--positive", "husky="+husky, "--negative", cats)
	require.NoError(t, err)
	assert.Contains(t, out, "Created classifier dogs_1941945966 (training)")
	assert.Equal(t, "dogs", name)
	assert.Equal(t, []string{"name", "beagle_positive_examples", "husky_positive_examples", "negative_examples"}, fields)
}

func TestClassifiersCreate_Validation(t *testing.T) {
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing name", []string{"--positive", "a=a.zip", "--positive", "b=b.zip"}, "classifier name cannot be empty"},
		{"no examples", []string{"--name", "x"}, "at least one --positive"},
		{"bad positive", []string{"--name", "x", "--positive", "nopath"}, "must be class=path"},
		{"bad class", []string{"--name", "x", "--positive", "two words=a.zip", "--negative", "n.zip"}, "invalid class name"},
		{"single class", []string{"--name", "x", "--positive", "a=a.zip"}, "--negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCmdCapture(t, append([]string{"classifiers", "create"}, tc.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.Equal(t, 0, handler.Hits("POST", "/v3/classifiers"))
}

func TestClassifiersUpdate(t *testing.T) {
	poodle := writeTestFile(t, "poodle.zip", []byte("PK\x03\x04"))
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody)).
		On("POST", "/v3/classifiers/dogs_1941945966", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			} else if _, ok := r.MultipartForm.File["poodle_positive_examples"]; !ok {
				t.Errorf("missing poodle_positive_examples part")
			}
			jsonResponse(200, `{"classifier_id": "dogs_1941945966", "name": "dogs", "status": "retraining"}`)(w, r)
		})
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "update", "dogs", "--positive", "poodle="+poodle)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated classifier dogs_1941945966 (retraining)")

	_, _, err = runCmdCapture(t, "classifiers", "update", "dogs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one --positive or --negative")
}

func TestClassifiersDelete(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody)).
		On("DELETE", "/v3/classifiers/cats_2044121", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "delete", "cats", "--yes", "--json")
	require.NoError(t, err)
	assert.Equal(t, 1, handler.Hits("DELETE", "/v3/classifiers/cats_2044121"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, true, payload["deleted"])
	assert.Equal(t, "cats_2044121", payload["classifier_id"])
}

func TestClassifiersDelete_RequiresConfirmation(t *testing.T) {
	origTTY := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = origTTY })

	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody))
	setupTestEnvWithHandler(t, handler)

	_, _, err := runCmdCapture(t, "classifiers", "delete", "cats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation required")
	assert.Equal(t, 0, handler.Hits("DELETE", "/v3/classifiers/cats_2044121"))
}

func TestClassifiersDelete_Ambiguous(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, `{"classifiers": [
			{"classifier_id": "dogs_1", "name": "dogs-a"},
			{"classifier_id": "dogs_2", "name": "dogs-b"}
		]}`))
	setupTestEnvWithHandler(t, handler)

	_, _, err := runCmdCapture(t, "classifiers", "delete", "dogs", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous match")
}

func TestClassifiersCoreML(t *testing.T) {
	model := []byte{0x08, 0x01, 0x12, 0x00, 0xff}
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody)).
		On("GET", "/v3/classifiers/dogs_1941945966/core_ml_model", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(model)
		})
	setupTestEnvWithHandler(t, handler)

	path := filepath.Join(t.TempDir(), "dogs.mlmodel")
	out, _, err := runCmdCapture(t, "classifiers", "core-ml", "dogs", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved "+path+" (5 bytes)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, model, data)

	out, _, err = runCmdCapture(t, "classifiers", "core-ml", "dogs", "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, string(model), out)
}

func TestClassifiersCreate_DryRun(t *testing.T) {
	beagle := writeTestFile(t, "beagle.zip", []byte("PK\x03\x04"))
	handler := newRouteHandler()
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "create", "--dry-run", "--name", "dogs",
		"--positive", "beagle="+beagle, "--negative", "/nonexistent/cats.zip")
	require.NoError(t, err)
	assert.Contains(t, out, "[DRY-RUN] Would create classifier: POST /v3/classifiers")
	assert.Contains(t, out, "  name: dogs")
	assert.Contains(t, out, "beagle_positive_examples: "+beagle+" (4 bytes)")
	assert.Contains(t, out, "! /nonexistent/cats.zip")
	assert.Equal(t, 0, handler.Hits("POST", "/v3/classifiers"))
}

func TestClassifiersDelete_DryRunJSON(t *testing.T) {
	handler := newRouteHandler().
		On("GET", "/v3/classifiers", jsonResponse(200, classifiersListBody))
	setupTestEnvWithHandler(t, handler)

	out, _, err := runCmdCapture(t, "classifiers", "delete", "cats", "--dry-run", "--json")
	require.NoError(t, err)
	assert.Equal(t, 0, handler.Hits("DELETE", "/v3/classifiers/cats_2044121"))

	var payload struct {
		DryRun  bool `json:"dry_run"`
		Request struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"request"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.True(t, payload.DryRun)
	assert.Equal(t, "DELETE", payload.Request.Method)
	assert.Equal(t, "/v3/classifiers/cats_2044121", payload.Request.Path)
}
