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

package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Toggles(t *testing.T) {
	plain := System(SystemOptions{})
	assert.NotContains(t, plain, "web_search")
	assert.Contains(t, plain, "get_user_input")
	assert.Contains(t, plain, "step by step")
	assert.Contains(t, plain, "<improved-prompt>")

	full := System(SystemOptions{UseWebSearch: true, ReasoningNative: true, HasAdditionalContext: true})
	assert.Contains(t, full, "web_search(query)")
	assert.NotContains(t, full, "step by step")
	assert.Contains(t, full, "additional information")
}

func TestUser(t *testing.T) {
	got := User(Input{
		Task:              "cover letter",
		LazyPrompt:        "write a cover letter for X",
		AdditionalContext: "- X Corp\nmakes widgets\n----------",
		TargetModel:       "gpt-5.1",
		Style:             Style{Length: "Concise", Formatting: "Any", Technique: "Few-Shot"},
		Now:               time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, got, "<task>\ncover letter\n</task>")
	assert.Contains(t, got, "<raw_input>\nwrite a cover letter for X\n</raw_input>")
	assert.Contains(t, got, "makes widgets")
	assert.Contains(t, got, "<target-model>gpt-5.1</target-model>")
	assert.Contains(t, got, "- Length: Keep it short")
	assert.Contains(t, got, "- Technique: Few-shot")
	assert.NotContains(t, got, "Formatting:")
	assert.Contains(t, got, "<date>March 05, 2026</date>")
}

func TestUser_OmitsEmptySections(t *testing.T) {
	got := User(Input{Task: "t", LazyPrompt: "p"})
	assert.NotContains(t, got, "<additional-information>")
	assert.NotContains(t, got, "<target-model>")
	assert.NotContains(t, got, "<prompt-style>")
}

func TestStyleSection(t *testing.T) {
	assert.Empty(t, StyleSection(Style{}))
	assert.Empty(t, StyleSection(Style{Length: "Detailed", Formatting: "Any", Technique: "Any"}))

	got := StyleSection(Style{Length: "Comprehensive", Formatting: "XML", Technique: "Chain-of-Thought"})
	lines := strings.Split(got, "\n")
	assert.Equal(t, "<prompt-style>", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "- Formatting:"))
	assert.True(t, strings.HasPrefix(lines[2], "- Length:"))
	assert.True(t, strings.HasPrefix(lines[3], "- Technique:"))
	assert.Equal(t, "</prompt-style>", lines[4])
}

func TestEditUser(t *testing.T) {
	got := EditUser("make it shorter", "You are a recruiter...")
	assert.Contains(t, got, "<current-prompt>\nYou are a recruiter...\n</current-prompt>")
	assert.Contains(t, got, "<edit-instructions>\nmake it shorter\n</edit-instructions>")
}
