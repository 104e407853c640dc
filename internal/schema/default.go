package schema

import "time"

// Default is the record shape used until the first import has registered
// one. It matches the last committed Trasporto model.
func Default() Descriptor {
	return Descriptor{
		Name:        ModelName,
		Version:     0,
		GeneratedAt: time.Time{},
		Columns: []Column{
			{Header: "#", Field: "f_", Type: TypeDate},
			{Header: "CLIENTE", Field: "cliente", Type: TypeText},
			{Header: "DATA", Field: "data", Type: TypeText},
			{Header: "MODELLO", Field: "modello", Type: TypeText},
			{Header: "TARGA", Field: "targa", Type: TypeText},
			{Header: "REGIONE CARICO", Field: "regione_carico", Type: TypeText},
			{Header: "CARICO", Field: "carico", Type: TypeText},
			{Header: "SCARICO", Field: "scarico", Type: TypeText},
			{Header: "PAGAMENTO", Field: "pagamento", Type: TypeText},
			{Header: "AUTISTA CARICO", Field: "autista_carico", Type: TypeText},
			{Header: "AUTISTA SCARICO", Field: "autista_scarico", Type: TypeText},
			{Header: "INDIRIZZO RITIRO", Field: "indirizzo_ritiro", Type: TypeText},
			{Header: "n° FATTURA", Field: "n_fattura", Type: TypeText},
			{Header: "DEPOSITO", Field: "deposito", Type: TypeText},
		},
	}
}
