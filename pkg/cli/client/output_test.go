package client

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"service", "amount"}, [][]string{
		{"Amazon EC2", "145.20"},
		{"Amazon S3", "89.30"},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SERVICE")
	assert.Contains(t, lines[0], "AMOUNT")
	assert.Contains(t, lines[1], "Amazon EC2  145.20")
	assert.Contains(t, lines[2], "Amazon S3")
}

func TestPrintTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, nil, [][]string{{"a"}})
	assert.Empty(t, buf.String())

	PrintTable(&buf, []string{"id"}, nil)
	assert.Equal(t, "ID\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]string{"hello": "world"}))

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "world", parsed["hello"])
	assert.Contains(t, buf.String(), "\n  ")

	buf.Reset()
	require.NoError(t, PrintJSON(&buf, nil))
	assert.Equal(t, "null\n", buf.String())
}

func TestPrintDetail(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, map[string]any{
		"status": "ok",
		"checks": map[string]any{"bucket": "ok"},
		"extra":  nil,
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, `checks:  {"bucket":"ok"}`, lines[0])
	assert.Equal(t, "extra:", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "status:  ok", lines[2])
}

func TestFormatValue(t *testing.T) {
	s := "x"
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"string pointer", &s, "x"},
		{"nil string pointer", (*string)(nil), ""},
		{"float", 12.45, "12.45"},
		{"slice", []any{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestIsTerminal_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	assert.False(t, IsTerminal(r))
}
