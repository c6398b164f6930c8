package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"collect", "ingest", "query", "ask", "runs", "serve"})
}

func TestQuestionArg(t *testing.T) {
	q, err := questionArg([]string{"critical redshift cases"})
	require.NoError(t, err)
	assert.Equal(t, "critical redshift cases", q)

	_, err = questionArg([]string{""})
	assert.Error(t, err)

	_, err = questionArg([]string{strings.Repeat("a", 2001)})
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]string{"q": "a<b"}))
	assert.Equal(t, "{\n  \"q\": \"a<b\"\n}\n", buf.String())
}
