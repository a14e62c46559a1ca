// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/pkg/config"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "default", provider: ""},
		{name: "env", provider: "env"},
		{name: "memory", provider: "memory"},
		{name: "vault", provider: "vault"},
		{name: "unknown", provider: "k8s", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(config.SecretsConfig{Provider: tc.provider})
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported secret provider")
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestMemoryAndEnvStore(t *testing.T) {
	ctx := context.Background()
	t.Setenv("SECRETS_TEST_KEY", "")
	for _, s := range []Store{NewMemoryStore(), NewEnvStore()} {
		_, err := s.Get(ctx, "SECRETS_TEST_KEY")
		assert.Error(t, err)

		require.NoError(t, s.Set(ctx, "SECRETS_TEST_KEY", "value"))
		got, err := s.Get(ctx, "SECRETS_TEST_KEY")
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
}

func TestVaultStoreReadsKVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/kv/data/openai" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": map[string]interface{}{"value": "sk-from-vault"},
			},
		})
	}))
	defer srv.Close()

	store, err := NewVaultStore(config.VaultConfig{Address: srv.URL, Token: "root-token", PathPrefix: "kv/data"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-vault", got)

	_, err = store.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestResolveBackendKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "primary-key", "sk-primary"))

	primary := &config.BackendConfig{Name: "primary", APIKeySecret: "primary-key"}
	explicit := &config.BackendConfig{Name: "fallback", APIKey: "sk-explicit", APIKeySecret: "ignored"}
	require.NoError(t, ResolveBackendKeys(ctx, store, primary, explicit))
	assert.Equal(t, "sk-primary", primary.APIKey)
	assert.Equal(t, "sk-explicit", explicit.APIKey)

	missing := &config.BackendConfig{Name: "x", APIKeySecret: "nope"}
	assert.Error(t, ResolveBackendKeys(ctx, store, missing))
}
