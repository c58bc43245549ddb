package feed

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(ss ...string) []byte {
	var b bytes.Buffer
	for _, s := range ss {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func TestReconstruct_Example(t *testing.T) {
	in := lines(
		`{"marketId":"1.1","mc":[{"id":"1.1"}],"marketDefinition":{"status":"OPEN"}}`,
		`{"id":"1.2","mc":[]}`,
		`{"marketId":"1.1","marketDefinition":{"status":"CLOSED"}}`,
	)
	res, rep := Reconstruct(in)

	assert.Equal(t, 3, res.RecordCount)
	assert.Equal(t, 2, res.MarketCount)
	assert.Equal(t, []string{"1.1", "1.2"}, res.MarketIDs())
	assert.Equal(t, 3, rep.Parsed)
	assert.Zero(t, rep.Skipped)

	m11, ok := res.Market("1.1")
	require.True(t, ok)
	require.Len(t, m11.Updates, 1)
	assert.JSONEq(t, `{"marketId":"1.1","mc":[{"id":"1.1"}],"marketDefinition":{"status":"OPEN"}}`, string(m11.Updates[0]))
	assert.JSONEq(t, `{"status":"CLOSED"}`, string(m11.Definition))

	m12, ok := res.Market("1.2")
	require.True(t, ok)
	assert.Len(t, m12.Updates, 1)
	assert.Nil(t, m12.Definition)
	assert.False(t, m12.HasDefinition())
}

func TestReconstruct_SkipsInvalidLines(t *testing.T) {
	in := lines(
		`{"marketId":"1.1","mc":[]}`,
		`{not json`,
		``,
		`   `,
		`{"marketId":"1.1","mc":[1]}`,
		`{"marketId":"1.1"`,
	)
	res, rep := Reconstruct(in)

	assert.Equal(t, 2, res.RecordCount)
	assert.Equal(t, 1, res.MarketCount)
	assert.Equal(t, 4, rep.Lines)
	assert.Equal(t, 2, rep.Parsed)
	assert.Equal(t, 2, rep.Skipped)
	require.Len(t, rep.Samples, 2)
	assert.Equal(t, 2, rep.Samples[0].Line)
	assert.Equal(t, 6, rep.Samples[1].Line)
	assert.Equal(t, ReasonInvalidJSON, rep.Samples[0].Reason)
	assert.NotEmpty(t, rep.Samples[0].Detail)
}

func TestReconstruct_UnkeyedRecordsCountButDoNotAggregate(t *testing.T) {
	in := lines(
		`{"op":"mcm","clk":"1","mc":[{"id":"1.9"}]}`,
		`{"marketId":"","mc":[]}`,
		`{"marketId":0,"id":null,"mc":[]}`,
		`[1,2,3]`,
		`"just a string"`,
		`{"marketId":{"nested":true},"id":"1.5"}`,
	)
	res, rep := Reconstruct(in)

	assert.Equal(t, 6, res.RecordCount)
	assert.Equal(t, 1, res.MarketCount)
	assert.Equal(t, 5, rep.Unkeyed)
	m, ok := res.Market("1.5")
	require.True(t, ok)
	assert.Empty(t, m.Updates)
	assert.NotNil(t, m.Updates)
}

func TestReconstruct_KeyPrecedence(t *testing.T) {
	res, _ := Reconstruct(lines(`{"marketId":"A","id":"B","mc":[]}`, `{"marketId":null,"id":"B","mc":[]}`))
	assert.Equal(t, []string{"A", "B"}, res.MarketIDs())

	res, _ = Reconstruct(lines(`{"marketId":1.25,"mc":[]}`, `{"id":7,"mc":[]}`))
	assert.Equal(t, []string{"1.25", "7"}, res.MarketIDs())
}

func TestReconstruct_LastDefinitionWins(t *testing.T) {
	res, _ := Reconstruct(lines(
		`{"marketId":"1.1","marketDefinition":{"v":1}}`,
		`{"marketId":"1.1","mc":[]}`,
		`{"marketId":"1.1","marketDefinition":{"v":2}}`,
		`{"marketId":"1.1","mc":[]}`,
	))
	m, _ := res.Market("1.1")
	assert.JSONEq(t, `{"v":2}`, string(m.Definition))
	assert.Len(t, m.Updates, 2)

	res, _ = Reconstruct(lines(
		`{"marketId":"1.1","marketDefinition":{"v":1}}`,
		`{"marketId":"1.1","marketDefinition":null}`,
	))
	m, _ = res.Market("1.1")
	assert.Nil(t, m.Definition)
}

func TestReconstruct_UpdatesKeepInputOrder(t *testing.T) {
	res, _ := Reconstruct(lines(
		`{"marketId":"a","mc":[1]}`,
		`{"marketId":"b","mc":[2]}`,
		`{"marketId":"a","mc":[3]}`,
		`{"marketId":"a","mc":null}`,
	))
	m, _ := res.Market("a")
	require.Len(t, m.Updates, 3)
	assert.Contains(t, string(m.Updates[0]), "[1]")
	assert.Contains(t, string(m.Updates[1]), "[3]")
	assert.Contains(t, string(m.Updates[2]), "null")
	assert.Equal(t, 4, res.UpdateCount())
}

func TestReconstruct_EmptyAndBlank(t *testing.T) {
	for _, in := range [][]byte{nil, {}, []byte("\n\n  \r\n\t")} {
		res, rep := Reconstruct(in)
		assert.Zero(t, res.RecordCount)
		assert.Zero(t, res.MarketCount)
		assert.Empty(t, res.Markets)
		assert.Zero(t, rep.Lines)
	}
}

func TestReconstruct_CRLFAndBOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("{\"marketId\":\"1.1\",\"mc\":[]}\r\n{\"marketId\":\"1.2\",\"mc\":[]}\r\n")...)
	res, rep := Reconstruct(in)
	assert.Equal(t, 2, res.RecordCount)
	assert.Equal(t, 2, res.MarketCount)
	assert.Zero(t, rep.Skipped)
}

func TestReconstruct_InvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	rc := NewReconstructor(&l)

	res, rep := rc.Reconstruct([]byte("{\"marketId\":\"1.1\"}\n\xff\xfe"))
	assert.True(t, rep.InvalidUTF8)
	assert.Zero(t, res.RecordCount)
	assert.Zero(t, res.MarketCount)
	assert.Empty(t, res.Markets)
	assert.Contains(t, buf.String(), "could not decode buffer as UTF-8")
}

func TestReconstruct_SkipLoggingIsBounded(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.WarnLevel)
	rc := NewReconstructor(&l)

	var in [][]byte
	for i := 0; i < maxSkipSamples+10; i++ {
		in = append(in, []byte("nope"))
	}
	_, rep := rc.Reconstruct(bytes.Join(in, []byte("\n")))

	assert.Equal(t, maxSkipSamples+10, rep.Skipped)
	assert.Len(t, rep.Samples, maxSkipSamples)
	assert.Equal(t, maxSkipSamples, bytes.Count(buf.Bytes(), []byte("skipping invalid JSON line")))
	assert.Contains(t, buf.String(), "buffer had invalid lines")
}

func TestReconstruct_Deterministic(t *testing.T) {
	in := lines(
		`{"marketId":"z","mc":[1],"marketDefinition":{"a":1}}`,
		`{"marketId":"y","mc":[2]}`,
		`garbage`,
		`{"marketId":"z","mc":[3]}`,
	)
	a, _ := Reconstruct(in)
	b, _ := Reconstruct(in)

	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))
}

func TestParseResult_JSONRoundTripKeepsOrder(t *testing.T) {
	res, _ := Reconstruct(lines(
		`{"marketId":"9.9","mc":[1]}`,
		`{"marketId":"1.1","marketDefinition":{"eventName":"Ascot"}}`,
		`{"marketId":"5.5","mc":[2]}`,
	))

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte(`{"market_count":3,"record_count":3,"markets":{"9.9":`)))

	var back ParseResult
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []string{"9.9", "1.1", "5.5"}, back.MarketIDs())
	assert.Equal(t, 3, back.MarketCount)
	assert.Equal(t, 3, back.RecordCount)

	m, ok := back.Market("1.1")
	require.True(t, ok)
	assert.Empty(t, m.Updates)
	assert.JSONEq(t, `{"eventName":"Ascot"}`, string(m.Definition))

	m, _ = back.Market("9.9")
	assert.Nil(t, m.Definition)
}

func TestParseResult_EmptyMarshal(t *testing.T) {
	out, err := json.Marshal(NewParseResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"market_count":0,"record_count":0,"markets":{}}`, string(out))
}

func TestDecodeLine(t *testing.T) {
	out := DecodeLine(3, []byte(`{"marketId":"1.1","mc":[],"marketDefinition":{"x":1},"pt":1}`))
	assert.False(t, out.Skipped)
	assert.Equal(t, 3, out.Line)
	assert.Equal(t, "1.1", out.Record.MarketID)
	assert.True(t, out.Record.HasMC)
	assert.True(t, out.Record.HasDefinition)
	assert.JSONEq(t, `{"x":1}`, string(out.Record.MarketDefinition))

	out = DecodeLine(4, []byte(`{"marketId":"1.1",}`))
	assert.True(t, out.Skipped)
	assert.Equal(t, ReasonInvalidJSON, out.Reason)

	out = DecodeLine(5, []byte(`42`))
	assert.False(t, out.Skipped)
	assert.False(t, out.Record.Keyed())
}
