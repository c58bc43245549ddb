package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"marketfeed/internal/core/feed"
)

// SheetName is the single worksheet written by XLSX
const SheetName = "markets"

// ErrCellTooLong is returned by XLSX when a value exceeds the spreadsheet cell limit
// excelize would otherwise truncate it without telling anyone
var ErrCellTooLong = errors.New("export: value exceeds xlsx cell limit")

// JSON writes the parsed document, wrapped as {"metadata":..,"data":..} when meta is set
func JSON(res *feed.ParseResult, meta *Metadata) ([]byte, error) {
	if meta == nil {
		return json.Marshal(res)
	}
	return json.Marshal(struct {
		Metadata *Metadata         `json:"metadata"`
		Data     *feed.ParseResult `json:"data"`
	}{meta, res})
}

// CSV writes a header row then one row per market
func CSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XLSX writes the table into a single sheet; update_count cells are numeric
// busy markets whose updates text passes the cell limit fail with ErrCellTooLong, use csv or parquet for those
func XLSX(t *Table) (out []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	header := make([]any, len(t.Columns))
	countCol := -1
	for i, c := range t.Columns {
		header[i] = c
		if c == ColUpdateCount {
			countCol = i
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}

	for r, row := range t.Rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
				return nil, fmt.Errorf("%w: column %s row %d has %d characters, max %d",
					ErrCellTooLong, t.Columns[i], r+2, n, excelize.TotalCellChars)
			}
			vals[i] = v
			if i == countCol {
				if n, aerr := strconv.Atoi(v); aerr == nil {
					vals[i] = n
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
			return nil, fmt.Errorf("export: xlsx row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParquetRow is the fixed parquet schema, one row per market
// Updates and Definition hold JSON text; Definition is empty when no snapshot was seen
type ParquetRow struct {
	MarketID    string `parquet:"market_id"`
	UpdateCount int64  `parquet:"update_count"`
	Updates     string `parquet:"updates"`
	Definition  string `parquet:"definition"`
}

// ParquetRows maps a result onto the fixed schema in first seen order
func ParquetRows(res *feed.ParseResult) ([]ParquetRow, error) {
	rows := make([]ParquetRow, 0, len(res.Markets))
	var err error
	res.Each(func(m *feed.MarketAggregate) {
		if err != nil {
			return
		}
		updates, merr := json.Marshal(m.Updates)
		if merr != nil {
			err = merr
			return
		}
		row := ParquetRow{MarketID: m.MarketID, UpdateCount: int64(len(m.Updates)), Updates: string(updates)}
		if m.HasDefinition() {
			var def bytes.Buffer
			if cerr := json.Compact(&def, m.Definition); cerr != nil {
				err = cerr
				return
			}
			row.Definition = def.String()
		}
		rows = append(rows, row)
	})
	return rows, err
}

// Parquet writes the fixed schema
func Parquet(res *feed.ParseResult) ([]byte, error) {
	rows, err := ParquetRows(res)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
