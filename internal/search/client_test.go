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

package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompt-enhance/pkg/config"
)

const sampleResponse = `{"web":{"results":[
	{"title":"Go\u200b Generics","description":"desc one","extra_snippets":["snip a","snip   b"]},
	{"title":"Second","description":"desc\u0007 two"},
	{"title":"Third","description":"desc three"}
]}}`

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go generics", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	c := NewClient(config.SearchConfig{BaseURL: srv.URL, APIKey: "key", QPS: 100})
	got, err := c.Search(context.Background(), "go generics", 2)
	require.NoError(t, err)
	assert.Equal(t, "- Go Generics\nsnip a snip b\n----------\n- Second\ndesc two\n----------", got)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(config.SearchConfig{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := NewClient(config.SearchConfig{}).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a\n\tb \u200d c\ufeff "))
	assert.Equal(t, "fi 2", CleanText("\ufb01 \u00b2"))
	assert.Equal(t, "bell", CleanText("be\u0007ll"))
}
