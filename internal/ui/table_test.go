package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// KeyValueBlock
// ---------------------------------------------------------------------------

func TestKeyValueBlockContainsTitleAndPairs(t *testing.T) {
	result := KeyValueBlock("Deployment", [][2]string{
		{"Network", "harmony-testnet"},
		{"Address", "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
	})
	assert.Contains(t, result, "Deployment")
	assert.Contains(t, result, "harmony-testnet")
	assert.Contains(t, result, "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	assert.Contains(t, result, "╭")
	assert.Contains(t, result, "╰")
}

func TestKeyValueBlockPreservesOrder(t *testing.T) {
	result := KeyValueBlock("", [][2]string{
		{"First", "AAA"},
		{"Second", "BBB"},
		{"Third", "CCC"},
	})
	a, b, c := strings.Index(result, "First"), strings.Index(result, "Second"), strings.Index(result, "Third")
	require.Greater(t, a, -1)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

func TestNewTableCreatesEmptyTable(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Network", Width: 10}, {Title: "Address"}})
	assert.Len(t, tbl.Columns, 2)
	assert.Empty(t, tbl.Rows)
	assert.Equal(t, -1, tbl.SelIdx)
}

func TestTableRenderContainsRows(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Network", Width: 16}, {Title: "Owner", Width: 12}})
	tbl.AddRow(Row{"harmony", "transferred"})
	tbl.AddRow(Row{"harmony-testnet", "deployer"})

	result := tbl.Render()
	assert.Contains(t, result, "Network")
	assert.Contains(t, result, "harmony-testnet")
	assert.Contains(t, result, "deployer")
	assert.Less(t, strings.Index(result, "transferred"), strings.Index(result, "deployer"))
}

func TestTableAutoWidthFitsLongestCell(t *testing.T) {
	addr := "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	tbl := NewTable([]Column{{Title: "Address"}, {Title: "Tx", Width: 4}})
	tbl.AddRow(Row{addr, "0xabcdef"})

	result := tbl.Render()
	assert.Contains(t, result, addr, "auto width must not truncate")
	assert.Contains(t, result, strings.Repeat("-", len(addr)))
	assert.NotContains(t, result, "0xabcdef", "fixed width truncates")
	assert.Contains(t, result, "0xab")
}

func TestTableRenderRowShorterThanColumns(t *testing.T) {
	tbl := NewTable([]Column{{Title: "A", Width: 5}, {Title: "B", Width: 5}, {Title: "C"}})
	tbl.AddRow(Row{"only1"})
	assert.Contains(t, tbl.Render(), "only1")
}

func TestTableRenderSelectedRow(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Name", Width: 10}})
	tbl.AddRow(Row{"row0"})
	tbl.AddRow(Row{"row1"})
	tbl.SelIdx = 1

	result := tbl.Render()
	assert.Contains(t, result, "row0")
	assert.Contains(t, result, "row1")
}
