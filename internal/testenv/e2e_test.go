// e2e_test.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package testenv_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/localnerve/jam-build-cmdb/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// TestFullStack runs the database, the Authorizer and the server image
func TestFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("e2e test")
	}
	if os.Getenv("AUTHZ_IMAGE") == "" {
		t.Skip("AUTHZ_IMAGE not set")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	opts := testenv.OptionsFromEnv()
	opts.WithServer = true
	if os.Getenv("TESTCONTAINERS_BUILD_CONTEXT") == "" {
		opts.BuildContext = "../.."
	}

	env, err := testenv.Start(ctx, opts, t.Logf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Terminate(context.Background()) })

	get := func(t *testing.T, path string) (int, string) {
		t.Helper()
		resp, err := http.Get(env.BaseURL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	t.Run("Health", func(t *testing.T) {
		status, body := get(t, "/health")
		assert.Equal(t, http.StatusOK, status, body)
	})

	t.Run("Metrics", func(t *testing.T) {
		status, body := get(t, "/metrics")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, "cmdb_")
	})

	t.Run("Swagger", func(t *testing.T) {
		status, _ := get(t, "/swagger/index.html")
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("PublicReads", func(t *testing.T) {
		for _, path := range []string{"/api/config/topics", "/api/collections/getLargestCollections", "/api/items/getLatestItems"} {
			status, body := get(t, path)
			assert.Equal(t, http.StatusOK, status, path)
			var decoded map[string]interface{}
			assert.NoError(t, json.Unmarshal([]byte(body), &decoded), path)
		}
	})

	t.Run("MutationsNeedSession", func(t *testing.T) {
		req, err := http.NewRequest("POST", env.BaseURL+"/api/config/createtopic", strings.NewReader(`{"topic":"Books"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "cookie_session", Value: "not-a-session"})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("AuthorizerAccount", func(t *testing.T) {
		token, err := testenv.AcquireAccount(opts.AuthzClientID, env.AuthzURL, "e2e@example.com", testenv.GeneratePassword(), []string{"user"})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})
}
