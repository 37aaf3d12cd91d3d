package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/exa-sheets/internal/grid"
	"github.com/sells-group/exa-sheets/internal/store"
)

func testSession(t *testing.T) *store.Session {
	t.Helper()
	in, err := grid.New([]string{"Company", "CEO"})
	require.NoError(t, err)
	in.AddRow("Apple", nil)
	in.AddRow("Nvidia", nil)
	in.AddRow("Tesla", nil)

	out := grid.NewOutput(in)
	require.NoError(t, out.Set(0, "CEO", "Tim Cook"))
	require.NoError(t, out.Set(1, "CEO", grid.Unavailable))

	return &store.Session{ID: "s-1", Name: "demo", Input: in, Output: out}
}

func TestFormatRecords(t *testing.T) {
	var buf bytes.Buffer
	formatRecords(&buf, testSession(t).Output.Records())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "COMPANY")
	assert.Contains(t, lines[0], "CEO")
	assert.Contains(t, lines[2], "Tim Cook")
	assert.Contains(t, lines[3], "NA")
	assert.True(t, strings.HasSuffix(lines[4], "-"), lines[4])
}

func TestFormatRecords_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRecords(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestWriteSession_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSession(&buf, testSession(t), "json", 0))

	var v sheetView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	assert.Equal(t, "s-1", v.ID)
	assert.Equal(t, []string{"Company", "CEO"}, v.Header)
	assert.Equal(t, [][]string{{"Apple", "Tim Cook"}, {"Nvidia", "NA"}, {"Tesla", ""}}, v.Rows)
	assert.Equal(t, []int{2}, v.Pending)
}

func TestWriteSession_YAMLWithLimit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSession(&buf, testSession(t), "yaml", 1))

	var v sheetView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &v))
	assert.Equal(t, "demo", v.Name)
	assert.Equal(t, [][]string{{"Apple", "Tim Cook"}}, v.Rows)
}

func TestWriteSession_UnsupportedFormat(t *testing.T) {
	err := writeSession(&bytes.Buffer{}, testSession(t), "xml", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestFormatSessionList(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	list := []store.Summary{
		{ID: "a", Name: "done sheet", Rows: 2, Attributes: 3, Cells: 6, UpdatedAt: ts},
		{ID: "b", Name: strings.Repeat("x", 50), Rows: 4, Attributes: 2, Cells: 1, UpdatedAt: ts},
	}

	var buf bytes.Buffer
	formatSessionList(&buf, list)

	out := buf.String()
	assert.Contains(t, out, "DATA_POINTS")
	assert.Contains(t, out, "6/6 done")
	assert.Contains(t, out, "1/8")
	assert.NotContains(t, out, "1/8 done")
	assert.Contains(t, out, strings.Repeat("x", 27)+"...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "Zürich ...", truncate("Zürich Insurance", 10))
}
