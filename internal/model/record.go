package model

// RecordKind distinguishes movements from statement anchors.
type RecordKind int

const (
	// RecordMovement is a transaction line.
	RecordMovement RecordKind = iota
	// RecordOpeningBalance carries the balance before the first movement.
	RecordOpeningBalance
)

func (k RecordKind) String() string {
	if k == RecordOpeningBalance {
		return "opening"
	}
	return "movement"
}

// RawRecord is what a bank parser extracts from one statement line, before any
// validation. All values are kept as the text found in the document.
type RawRecord struct {
	Row         int // position in document order
	Kind        RecordKind
	Date        string
	Description string
	Reference   string
	Amount      string
	Direction   string // optional marker (C/D, ENTRADA/SAIDA, ...)
	Balance     string // optional, as reported by the bank
	Source      string // statement line the record was read from
	Extra       map[string]string
}
