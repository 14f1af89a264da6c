package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/faqbot/internal/model"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["seed"])
	assert.True(t, names["reembed"])
	assert.True(t, names["search"])

	search, _, err := root.Find([]string{"search"})
	require.NoError(t, err)
	assert.NotNil(t, search.Flags().Lookup("keyword"))
}

func TestWriteCandidates(t *testing.T) {
	results := []model.SearchCandidate{
		{ID: 1, Question: "How do I return an item?", Category: "returns"},
	}

	var buf bytes.Buffer
	require.NoError(t, writeCandidates(&buf, results, false))
	assert.Contains(t, buf.String(), "ID")
	assert.Contains(t, buf.String(), "How do I return an item?")

	buf.Reset()
	require.NoError(t, writeCandidates(&buf, results, true))
	var decoded []model.SearchCandidate
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, results[0].Question, decoded[0].Question)

	buf.Reset()
	require.NoError(t, writeCandidates(&buf, nil, false))
	assert.Equal(t, "No matching FAQs\n", buf.String())
}
