package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/conciliar-dev/conciliar/internal/document"
	"github.com/conciliar-dev/conciliar/internal/model"
)

func textDoc(name string, lines ...string) *document.Document {
	return document.New(name, []byte(strings.Join(lines, "\n")))
}

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.Resolve("inter")
	require.NoError(t, err)
	assert.Equal(t, "INTER", p.Bank())

	p, err = r.Resolve(" Itau ")
	require.NoError(t, err)
	assert.Equal(t, "ITAU", p.Bank())

	_, err = r.Resolve("caixa")
	var unsupported *model.UnsupportedBankError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "caixa", unsupported.Bank)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&InterParser{})
	assert.Panics(t, func() { r.Register(&InterParser{}) })
}

func TestRegistry_Banks(t *testing.T) {
	assert.Equal(t, []string{"BB", "BTG", "INTER", "ITAU", "NUBANK", "SANTANDER", "SICREDI"}, DefaultRegistry().Banks())
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports(&NubankParser{}, document.FormatCSV))
	assert.False(t, Supports(&NubankParser{}, document.FormatPDF))
	assert.True(t, Supports(&ItauParser{}, document.FormatXLSX))
}

func TestInterParser_Text(t *testing.T) {
	doc := textDoc("inter.txt",
		"Solicitado em: 28/10/2025",
		"Período: 01/10/2025 a 27/10/2025",
		"27 de Outubro de 2025 Saldo do dia: R$ 1.150,00",
		"PIX RECEBIDO - Fulano R$ 200,00 R$ 1.200,00",
		"Compra no debito -R$ 50,00 R$ 1.150,00",
		"Valor Saldo por transação",
	)
	recs, err := (&InterParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, model.RawRecord{
		Row: 1, Kind: model.RecordMovement, Date: "27/10/2025",
		Description: "PIX RECEBIDO - Fulano", Amount: "R$ 200,00", Balance: "R$ 1.200,00",
	}, recs[0])
	assert.Equal(t, "Compra no debito", recs[1].Description)
	assert.Equal(t, "-R$ 50,00", recs[1].Amount)
	assert.Equal(t, 2, recs[1].Row)
}

func TestInterParser_LinesBeforeFirstDayIgnored(t *testing.T) {
	doc := textDoc("inter.txt",
		"PIX R$ 1,00 R$ 2,00",
		"1 de Março de 2025",
		"PIX R$ 1,00 R$ 2,00",
	)
	recs, err := (&InterParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "01/03/2025", recs[0].Date)
}

func TestInterParser_CSV(t *testing.T) {
	doc := textDoc("inter.csv",
		"Extrato Conta Corrente",
		"Conta ;12345",
		"Saldo ;1.150,00",
		"",
		"Data Lançamento;Histórico;Descrição;Valor;Saldo",
		"27/10/2025;Pix recebido;Fulano;200,00;1.200,00",
		"27/10/2025;Compra no debito;Padaria;-50,00;1.150,00",
	)
	require.Equal(t, document.FormatCSV, doc.Format)

	recs, err := (&InterParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Pix recebido Fulano", recs[0].Description)
	assert.Equal(t, "200,00", recs[0].Amount)
	assert.Equal(t, "1.200,00", recs[0].Balance)
	assert.Equal(t, "-50,00", recs[1].Amount)
}

func TestInterParser_CSVWithoutHeader(t *testing.T) {
	_, err := (&InterParser{}).Parse(textDoc("inter.csv", "a;b;c"))
	assert.Error(t, err)
}

func TestNubankParser(t *testing.T) {
	doc := textDoc("nubank.csv",
		"Data,Valor,Identificador,Descrição",
		"01/10/2025,200.00,abc-1,Transferência recebida pelo Pix - FULANO",
		"02/10/2025,-107.00,abc-2,Compra no débito - PADARIA",
	)
	recs, err := (&NubankParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "200.00", recs[0].Amount)
	assert.Equal(t, "", recs[0].Balance)
	assert.Equal(t, "abc-1", recs[0].Extra[ExtraExternalID])
	assert.Equal(t, "Compra no débito - PADARIA", recs[1].Description)
	assert.Equal(t, "-107.00", recs[1].Amount)
}

func TestNubankParser_MissingColumns(t *testing.T) {
	_, err := (&NubankParser{}).Parse(textDoc("nubank.csv", "Data,Valor", "01/10/2025,1.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTIFICADOR")
}

func TestSicrediParser(t *testing.T) {
	doc := textDoc("sicredi.txt",
		"SICREDI - Extrato de conta corrente",
		"Data Descrição Documento Valor (R$) Saldo (R$)",
		"01/10/2025 SALDO ANTERIOR 495,87",
		"02/10/2025 LIQUIDACAO BOLETO COB000013 -34,19 461,68",
		"03/10/2025 PIX RECEBIDO 100,00 561,68",
		"Lançamentos futuros",
		"04/10/2025 AGENDADO XYZ -10,00 551,68",
	)
	recs, err := (&SicrediParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "495,87", recs[0].Balance)

	assert.Equal(t, "LIQUIDACAO BOLETO", recs[1].Description)
	assert.Equal(t, "COB000013", recs[1].Reference)
	assert.Equal(t, "-34,19", recs[1].Amount)
	assert.Equal(t, "461,68", recs[1].Balance)

	assert.Equal(t, "PIX RECEBIDO", recs[2].Description)
	assert.Empty(t, recs[2].Reference)
	assert.Equal(t, 3, recs[2].Row)
}

func TestSantanderParser(t *testing.T) {
	doc := textDoc("santander.txt",
		"Santander - Extrato",
		"Data Histórico Valor",
		"01/10/2025 SALDO ANTERIOR 1.000,00",
		"02/10/2025 PIX ENVIADO FULANO - R$ 1.234,56",
		"03/10/2025 TED RECEBIDA 2.000,00",
		"TOTAL 765,44",
	)
	recs, err := (&SantanderParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "PIX ENVIADO FULANO", recs[0].Description)
	assert.Equal(t, "- R$ 1.234,56", recs[0].Amount)
	assert.Equal(t, "TED RECEBIDA", recs[1].Description)
	assert.Equal(t, "2.000,00", recs[1].Amount)
	assert.Empty(t, recs[1].Balance)
}

func TestBTGParser(t *testing.T) {
	doc := textDoc("btg.txt",
		"Extrato BTG Pactual",
		"Saldo de abertura R$ 1.000,00",
		"05/10/2025 Pix recebido Fulano 250,00 1.250,00",
		"06/10/2025 Pagamento boleto -300,00 950,00",
		"Total de entradas 250,00",
		"Total de saídas -300,00",
		"Saldo de fechamento 950,00",
	)
	recs, err := (&BTGParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "R$ 1.000,00", recs[0].Balance)
	assert.Equal(t, "Pix recebido Fulano", recs[1].Description)
	assert.Equal(t, "250,00", recs[1].Amount)
	assert.Equal(t, "950,00", recs[2].Balance)
}

func TestItauParser_Text(t *testing.T) {
	doc := textDoc("itau.txt",
		"Lançamentos do período",
		"Data Lançamentos Razão Social CNPJ/CPF Valor (R$) Saldo (R$)",
		"30/09/2025 SALDO ANTERIOR 1.000,00",
		"01/10/2025 PIX TRANSF FULANO",
		"ACME LTDA 12.345.678/0001-90 500,00",
		"01/10/2025 TAR PACOTE -25,00",
		"01/10/2025 SALDO TOTAL DISPONÍVEL DIA 1.475,00",
		"Aviso: os saldos acima são baseados nas informações disponíveis",
		"02/10/2025 BOLETO PAGO 75,00-",
	)
	recs, err := (&ItauParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "1.000,00", recs[0].Balance)

	assert.Equal(t, "PIX TRANSF FULANO ACME LTDA", recs[1].Description)
	assert.Equal(t, "12.345.678/0001-90", recs[1].Reference)
	assert.Equal(t, "500,00", recs[1].Amount)
	assert.Empty(t, recs[1].Balance)

	assert.Equal(t, "TAR PACOTE", recs[2].Description)
	assert.Equal(t, "-25,00", recs[2].Amount)
	assert.Equal(t, "1.475,00", recs[2].Balance, "day balance goes to the last movement of the day")

	assert.Equal(t, "75,00-", recs[3].Amount)
	assert.Equal(t, 4, recs[3].Row)
}

func TestItauParser_XLSX(t *testing.T) {
	xl := excelize.NewFile()
	rows := [][]any{
		{"Extrato Conta Corrente"},
		{},
		{"Data", "Lançamentos", "Razão Social", "CNPJ/CPF", "Valor (R$)", "Saldo (R$)"},
		{"30/09/2025", "SALDO ANTERIOR", "", "", "", "1.000,00"},
		{"01/10/2025", "PIX TRANSF", "ACME LTDA", "12.345.678/0001-90", "500,00", ""},
		{"01/10/2025", "SALDO TOTAL DISPONÍVEL DIA", "", "", "", "1.500,00"},
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, xl.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)

	doc := document.New("itau.xlsx", buf.Bytes())
	require.Equal(t, document.FormatXLSX, doc.Format)

	recs, err := (&ItauParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "1.000,00", recs[0].Balance)
	assert.Equal(t, "PIX TRANSF ACME LTDA", recs[1].Description)
	assert.Equal(t, "12.345.678/0001-90", recs[1].Reference)
	assert.Equal(t, "500,00", recs[1].Amount)
	assert.Equal(t, "1.500,00", recs[1].Balance)
	assert.Equal(t, "01/10/2025 PIX TRANSF ACME LTDA 12.345.678/0001-90 500,00", recs[1].Source)
}

// itauSheet writes rows under the Itaú header. Cells keep their Go type, so
// dates and numbers become typed spreadsheet cells.
func itauSheet(t *testing.T, rows ...[]any) *document.Document {
	t.Helper()
	xl := excelize.NewFile()
	header := []any{"Data", "Lançamentos", "Razão Social", "CNPJ/CPF", "Valor (R$)", "Saldo (R$)"}
	require.NoError(t, xl.SetSheetRow("Sheet1", "A1", &header))

	dateStyle, err := xl.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	moneyStyle, err := xl.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			require.NoError(t, err)
			require.NoError(t, xl.SetCellValue("Sheet1", cell, v))
			switch v.(type) {
			case time.Time:
				require.NoError(t, xl.SetCellStyle("Sheet1", cell, cell, dateStyle))
			case float64, int:
				require.NoError(t, xl.SetCellStyle("Sheet1", cell, cell, moneyStyle))
			}
		}
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return document.New("itau.xlsx", buf.Bytes())
}

func TestItauParser_XLSXTypedCells(t *testing.T) {
	doc := itauSheet(t,
		[]any{time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), "SALDO ANTERIOR", "", "", "", 1000.0},
		[]any{time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), "PIX TRANSF", "ACME LTDA", "12.345.678/0001-90", 500.0, 1500.0},
		[]any{time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC), "TAR PACOTE", "", "", -25.1, 1474.9},
	)

	recs, err := (&ItauParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "30/09/2025", recs[0].Date)
	assert.Equal(t, "1000.00", recs[0].Balance)

	assert.Equal(t, "01/10/2025", recs[1].Date)
	assert.Equal(t, "500.00", recs[1].Amount)
	assert.Equal(t, "1500.00", recs[1].Balance)
	assert.Equal(t, "PIX TRANSF ACME LTDA", recs[1].Description)

	assert.Equal(t, "02/10/2025", recs[2].Date)
	assert.Equal(t, "-25.10", recs[2].Amount)
	assert.Equal(t, "1474.90", recs[2].Balance)

	lines, err := doc.Lines()
	require.NoError(t, err)
	assert.Contains(t, lines, recs[1].Source, "source matches the document line")
}

func TestItauParser_XLSXUnreadableCells(t *testing.T) {
	tests := []struct {
		name  string
		row   []any
		field string
	}{
		{"date", []any{"ontem", "PIX TRANSF", "", "", 500.0, 1500.0}, "date"},
		{"amount", []any{"01/10/2025", "PIX TRANSF", "", "", "quinhentos", ""}, "amount"},
		{"missing amount", []any{"01/10/2025", "PIX TRANSF", "", "", "", ""}, "amount"},
		{"balance", []any{"01/10/2025", "PIX TRANSF", "", "", 500.0, "n/d"}, "balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := itauSheet(t,
				[]any{"30/09/2025", "SALDO ANTERIOR", "", "", "", 1000.0},
				tt.row,
			)
			_, err := (&ItauParser{}).Parse(doc)
			var fe *model.ParseFieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, 3, fe.Row, "spreadsheet row number")
		})
	}
}

func TestItauParser_XLSXWithoutHeader(t *testing.T) {
	xl := excelize.NewFile()
	require.NoError(t, xl.SetCellValue("Sheet1", "A1", "Extrato"))
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)

	_, err = (&ItauParser{}).Parse(document.New("itau.xlsx", buf.Bytes()))
	assert.ErrorContains(t, err, "header row")
}

func TestSheetMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"500", "500.00", true},
		{"-25.1", "-25.10", true},
		{"300.00000000000006", "300.00", true},
		{"0.005", "0.005", true},
		{"1.000,00", "1.000,00", true},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		got, ok := sheetMoney(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSheetDate(t *testing.T) {
	got, ok := sheetDate("45931")
	require.True(t, ok)
	assert.Equal(t, "01/10/2025", got)

	got, ok = sheetDate("01/10/2025")
	require.True(t, ok)
	assert.Equal(t, "01/10/2025", got)

	for _, bad := range []string{"", "0", "2025-10-01", "ontem"} {
		_, ok := sheetDate(bad)
		assert.False(t, ok, bad)
	}
}

func TestBBParser(t *testing.T) {
	doc := textDoc("bb.txt",
		"Extrato de conta corrente",
		"Lançamentos",
		"Dia Lote Documento Histórico Valor R$ Saldo",
		"31/12/2025 Saldo Anterior 1.000,00 C",
		"05/01/2026 0000 13105 144 Pix - Enviado 10.501 277,00 D",
		"05/01 12:55 C ASSESSORIA CONTABIL L",
		"06/01/2026 0000 14020 821 Pix - Recebido 98.765 500,00 C 1.223,00 C",
		"S A L D O 1.223,00 C",
		"Lançamentos futuros",
		"10/01/2026 Agendamento 100,00 D",
	)
	recs, err := (&BBParser{}).Parse(doc)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, model.RecordOpeningBalance, recs[0].Kind)
	assert.Equal(t, "1.000,00", recs[0].Balance)

	assert.Equal(t, "277,00", recs[1].Amount)
	assert.Equal(t, "D", recs[1].Direction)
	assert.Equal(t, "10.501", recs[1].Reference)
	assert.Contains(t, recs[1].Description, "ASSESSORIA CONTABIL")
	assert.Empty(t, recs[1].Balance)

	assert.Equal(t, "500,00", recs[2].Amount)
	assert.Equal(t, "C", recs[2].Direction)
	assert.Equal(t, "1.223,00", recs[2].Balance)
}

func TestBBSigned(t *testing.T) {
	assert.Equal(t, "-10,00", bbSigned("10,00", "d"))
	assert.Equal(t, "10,00", bbSigned("10,00", "C"))
}

func TestParseIsDeterministic(t *testing.T) {
	doc := textDoc("sicredi.txt",
		"01/10/2025 SALDO ANTERIOR 495,87",
		"02/10/2025 LIQUIDACAO BOLETO COB000013 -34,19 461,68",
	)
	p := &SicrediParser{}
	first, err := p.Parse(doc)
	require.NoError(t, err)
	second, err := p.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "LANCAMENTOS FUTUROS", fold("Lançamentos futuros"))
	assert.Equal(t, "SAIDAS", fold("saídas"))
}
