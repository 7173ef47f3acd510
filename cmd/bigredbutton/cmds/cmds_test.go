package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type fakeAppflow struct {
	mu      sync.Mutex
	dev     string
	prod    string
	patches []string
}

func (f *fakeAppflow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/graphql":
		var req struct {
			OperationName string `json:"operationName"`
		}
		_ = json.Unmarshal(b, &req)
		if req.OperationName == "BuildsList" {
			_, _ = io.WriteString(w, `{"data":{"app":{"builds":{"edges":[{"node":{"__typename":"PackageBuild","id":"9","number":7,"uuid":"`+f.dev+`"}}]}}}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"app":{"channels":{"edges":[
			{"node":{"id":"chan-dev","name":"Development","build":{"uuid":"`+f.dev+`"}}},
			{"node":{"id":"chan-prod","name":"Production","build":{"uuid":"`+f.prod+`"}}}
		]}}}}`)
	case r.Method == http.MethodPatch && r.URL.Path == "/apps/app-1/channels/chan-prod":
		var body map[string]string
		_ = json.Unmarshal(b, &body)
		f.patches = append(f.patches, body["snapshot_id"])
		f.prod = body["snapshot_id"]
		_, _ = io.WriteString(w, `{}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupEnv(t *testing.T, api *fakeAppflow) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Chdir(t.TempDir())
	t.Setenv("API_URL", srv.URL)
	t.Setenv("GRAPHQL_URL", srv.URL+"/graphql")
	t.Setenv("APP_ID", "app-1")
	t.Setenv("APPFLOW_TOKEN", "tok")
	t.Setenv("PRODUCTION_CHANNEL_ID", "chan-prod")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "bigredbutton", SilenceUsage: true, SilenceErrors: true}
	AddRootFlags(root)
	require.NoError(t, AddCommands(root))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheck_ReportsReadiness(t *testing.T) {
	setupEnv(t, &fakeAppflow{dev: "dev-2", prod: "prod-1"})

	out, err := execute(t, "check")
	require.NoError(t, err)
	require.Contains(t, out, "development: dev-2")
	require.Contains(t, out, "production:  prod-1")
	require.Contains(t, out, "latest:      #7")
	require.Contains(t, out, "ready:       true")
}

func TestCheck_MissingConfigListsEveryValue(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, name := range []string{"API_URL", "GRAPHQL_URL", "APP_ID", "APPFLOW_TOKEN", "PRODUCTION_CHANNEL_ID"} {
		t.Setenv(name, "")
	}
	_, err := execute(t, "check")
	require.Error(t, err)
	for _, name := range []string{"API_URL", "GRAPHQL_URL", "APP_ID", "APPFLOW_TOKEN", "PRODUCTION_CHANNEL_ID"} {
		require.True(t, strings.Contains(err.Error(), name), name)
	}
}

func TestDeploy_CurrentDevelopmentBuild(t *testing.T) {
	api := &fakeAppflow{dev: "dev-2", prod: "prod-1"}
	setupEnv(t, api)

	out, err := execute(t, "deploy")
	require.NoError(t, err)
	require.Contains(t, out, `"build_id": "dev-2"`)
	require.Contains(t, out, `"source": "manual"`)
	require.Equal(t, []string{"dev-2"}, api.patches)
}

func TestDeploy_NothingToDeploy(t *testing.T) {
	api := &fakeAppflow{dev: "same", prod: "same"}
	setupEnv(t, api)

	_, err := execute(t, "deploy")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nothing to deploy")
	require.Empty(t, api.patches)
}

func TestDeploy_ExplicitBuild(t *testing.T) {
	api := &fakeAppflow{dev: "same", prod: "same"}
	setupEnv(t, api)

	_, err := execute(t, "deploy", "--build", "abc-123")
	require.NoError(t, err)
	require.Equal(t, []string{"abc-123"}, api.patches)
}

func TestRun_UnknownHardware(t *testing.T) {
	setupEnv(t, &fakeAppflow{})
	t.Setenv("SSID", "office")
	t.Setenv("SSID_PASSWORD", "pw")

	_, err := execute(t, "run", "--hardware", "abacus")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown hardware backend")
}
