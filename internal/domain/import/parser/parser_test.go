package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
)

func TestDecodeCSV(t *testing.T) {
	t.Run("parses standard CSV", func(t *testing.T) {
		data := []byte(`Invoice Date,Ship To Name,Product Code,Extended Price,Cases,Rep Name
01/15/2024,Acme Liquors,CAB-750,"$1,234.56",12,J. Smith
01/16/2024,Corner Store,MER-750,$99.90,3,A. Jones
`)
		table, err := DecodeCSV(data, DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, 0, table.HeaderRow)
		assert.Equal(t, "Extended Price", table.Headers[3])
		require.Len(t, table.Rows, 2)
		assert.Equal(t, mapping.String("$1,234.56"), table.Rows[0][3])
		assert.Equal(t, mapping.String("12"), table.Rows[0][4])
	})

	t.Run("skips preamble and detects semicolons", func(t *testing.T) {
		data := []byte("Relatorio mensal\n\nData;Cliente;Produto;Quantidade\n15/01/2024;Adega;Vinho;4\n")
		table, err := DecodeCSV(data, DefaultConfig())
		require.NoError(t, err)

		assert.Equal(t, 1, table.HeaderRow) // blank lines are not records
		assert.Equal(t, []string{"Data", "Cliente", "Produto", "Quantidade"}, table.Headers)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, mapping.String("Adega"), table.Rows[0][1])
	})

	t.Run("short rows are padded with nulls", func(t *testing.T) {
		data := []byte("Account,Product,Quantity\nAcme,Merlot\n,,\n")
		table, err := DecodeCSV(data, DefaultConfig())
		require.NoError(t, err)

		require.Len(t, table.Rows, 1)
		assert.True(t, table.Rows[0][2].IsNull())
	})

	t.Run("explicit header row", func(t *testing.T) {
		data := []byte("x,y\nAccount,Product\nAcme,Merlot\n")
		cfg := DefaultConfig()
		cfg.HeaderRowIndex = 1
		table, err := DecodeCSV(data, cfg)
		require.NoError(t, err)
		assert.Equal(t, []string{"Account", "Product"}, table.Headers)

		cfg.HeaderRowIndex = 9
		_, err = DecodeCSV(data, cfg)
		assert.ErrorIs(t, err, ErrHeaderOutOfRange)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := DecodeCSV([]byte("  \n"), DefaultConfig())
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Account", "Product", "Quantity"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Acme Liquors", "Merlot 750ml", 6}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"Corner Store", "Cabernet", 2}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := Decode("report.xlsx", buf.Bytes(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"Account", "Product", "Quantity"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "6", table.Rows[0][2].Text())
	assert.Equal(t, "Cabernet", table.Rows[1][1].Text())
}

func TestDecodeText(t *testing.T) {
	data := []byte("Account     Product        Cases\nAcme Liquors  Merlot 750ml  6\nCorner Store\tCabernet\t2\n")
	table, err := DecodeText(data, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"Account", "Product", "Cases"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Merlot 750ml", table.Rows[0][1].Text())
	assert.Equal(t, "2", table.Rows[1][2].Text())
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	_, err := Decode("report.pdf", bytes.Repeat([]byte("x"), 4), DefaultConfig())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
