package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/trasporti/internal/metrics"
	"github.com/JonMunkholm/trasporti/internal/schema"
	"github.com/JonMunkholm/trasporti/internal/store"
)

// writeWorkbook saves a single-sheet workbook whose first row is headers.
func writeWorkbook(t *testing.T, headers []string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for c, h := range headers {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	path := filepath.Join(t.TempDir(), "usato.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// trackingStore records whether Close was called.
type trackingStore struct {
	*store.Memory
	closed bool
}

func (s *trackingStore) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func connectTo(st store.Store) ConnectFunc {
	return func(ctx context.Context) (store.Store, error) {
		return st, nil
	}
}

func TestReadSource(t *testing.T) {
	path := writeWorkbook(t,
		[]string{" CLIENTE ", "DATA", "PAGAMENTO", "CLIENTE"},
		[][]any{
			{"Acme", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 120.5, "ignored"},
			{},
			{"Beta"},
		})

	sheet, err := ReadSource(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"CLIENTE", "DATA", "PAGAMENTO", "CLIENTE"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2, "blank rows are skipped")
	assert.Equal(t, map[string]string{"CLIENTE": "Acme", "DATA": "2024-01-15", "PAGAMENTO": "120.5"}, sheet.Rows[0])
	assert.Equal(t, map[string]string{"CLIENTE": "Beta", "DATA": "", "PAGAMENTO": ""}, sheet.Rows[1])
}

func TestReadSource_Errors(t *testing.T) {
	_, err := ReadSource(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, ErrSourceMissing)

	headersOnly := writeWorkbook(t, []string{"CLIENTE"}, nil)
	_, err = ReadSource(headersOnly)
	assert.ErrorIs(t, err, ErrEmptySource)

	empty := writeWorkbook(t, nil, nil)
	_, err = ReadSource(empty)
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"[$-410]d mmmm yyyy", true},
		{"0.00", false},
		{`#,##0 "days"`, false},
		{"hh:mm", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dateFormatCode(tt.code), tt.code)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"CLIENTE", "TARGA", "DATA"},
		[][]any{{"Acme", "AB123CD", "2024-01-15"}})

	mem := store.NewMemory()
	ctx := context.Background()
	_, err := mem.Insert(ctx, map[string]any{"cliente": "old"})
	require.NoError(t, err)

	st := &trackingStore{Memory: mem}
	schemaOut := filepath.Join(t.TempDir(), "models", "trasporto.schema.json")
	m := metrics.New()

	res, err := New(Options{
		Source:    path,
		SchemaOut: schemaOut,
		Connect:   connectTo(st),
		Metrics:   m,
	}).Run(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, res.Removed)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.SchemaVersion)
	assert.True(t, st.closed, "the run closes the store it opened")

	docs, err := mem.Find(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{
		"cliente": "Acme",
		"targa":   "AB123CD",
		"data":    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}, docs[0].Fields)

	desc, err := mem.LatestSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usato.xlsx", desc.Source)
	assert.Equal(t, []schema.Column{
		{Header: "CLIENTE", Field: "cliente", Type: schema.TypeText},
		{Header: "TARGA", Field: "targa", Type: schema.TypeText},
		{Header: "DATA", Field: "data", Type: schema.TypeDate},
	}, desc.Columns)

	artifact, err := os.ReadFile(schemaOut)
	require.NoError(t, err)
	want, err := schema.MarshalArtifact(desc.Columns)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(artifact))
}

func TestRun_FullReplace(t *testing.T) {
	rows := [][]any{
		{"Rossi", "x", "12"},
		{"Bianchi", "", "abc"},
		{"Verdi", "y", ""},
	}
	path := writeWorkbook(t, []string{"CLIENTE", "IGNORATA", "PAGAMENTO"}, rows)

	mem := store.NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := mem.Insert(ctx, map[string]any{"cliente": "old"})
		require.NoError(t, err)
	}

	im := New(Options{Source: path, Connect: connectTo(mem), BatchSize: 2})
	for run := 1; run <= 2; run++ {
		res, err := im.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, run, res.SchemaVersion)
	}

	docs, err := mem.Find(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, docs, len(rows))
	for _, d := range docs {
		assert.Len(t, d.Fields, 2)
		assert.Contains(t, d.Fields, "cliente")
		assert.Contains(t, d.Fields, "pagamento")
		assert.NotContains(t, d.Fields, "ignorata")
	}
}

func TestRun_Failures(t *testing.T) {
	valid := writeWorkbook(t, []string{"CLIENTE"}, [][]any{{"Acme"}})
	noAllowed := writeWorkbook(t, []string{"FOO", "BAR"}, [][]any{{"1", "2"}})
	boom := errors.New("boom")

	tests := []struct {
		name      string
		opts      Options
		wantPhase Phase
		wantErr   error
	}{
		{
			name:      "missing source",
			opts:      Options{Source: filepath.Join(t.TempDir(), "nope.xlsx")},
			wantPhase: PhaseReadSource,
			wantErr:   ErrSourceMissing,
		},
		{
			name:      "no allowed columns",
			opts:      Options{Source: noAllowed},
			wantPhase: PhaseFilterColumns,
			wantErr:   ErrNoColumns,
		},
		{
			name:      "no connection string",
			opts:      Options{Source: valid, Connect: Connector(store.Options{})},
			wantPhase: PhaseConnect,
			wantErr:   store.ErrNoURL,
		},
		{
			name: "connect fails",
			opts: Options{Source: valid, Connect: func(ctx context.Context) (store.Store, error) {
				return nil, boom
			}},
			wantPhase: PhaseConnect,
			wantErr:   boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts).Run(context.Background())
			require.Error(t, err)

			var pe *PhaseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantPhase, pe.Phase)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	path := writeWorkbook(t, []string{"CLIENTE", "PAGAMENTO"}, [][]any{
		{"Acme", "10"},
		{"Beta", "12,5"},
		{"Gamma", "15"},
		{"Delta", "n/d"},
	})

	res, err := New(Options{
		Source: path,
		DryRun: true,
		Connect: func(ctx context.Context) (store.Store, error) {
			t.Fatal("dry run must not connect")
			return nil, nil
		},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Report.Rows)
	assert.Equal(t, schema.TypeNumber, res.Columns[1].Type)
	assert.Equal(t, 1, res.Report.Invalid["pagamento"])
	assert.Zero(t, res.Inserted)
}

func TestConnector_MemoryURL(t *testing.T) {
	st, err := Connector(store.Options{URL: "memory://"})(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
}
