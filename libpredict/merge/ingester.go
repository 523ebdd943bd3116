package merge

import (
	"bufio"
	"io"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/pairstore"
	"github.com/pkg/errors"
)

// Ingester replays merge lines into a pair store.
type Ingester struct {
	parser *Parser
	store  *pairstore.Store

	NumLines   int64
	NumEntries int64
}

func NewIngester(store *pairstore.Store, names gopredict.NameResolver) *Ingester {
	return &Ingester{
		parser: NewParser(names, store.NumNodes()),
		store:  store,
	}
}

func (ing *Ingester) Store() *pairstore.Store {
	return ing.store
}

// IngestLine accumulates every entry of one merge line.
func (ing *Ingester) IngestLine(line string) error {
	rec, err := ing.parser.ParseLine(line)
	if err != nil {
		return err
	}
	return ing.IngestRecord(rec)
}

// IngestRecord accumulates every entry of an already parsed merge line.
func (ing *Ingester) IngestRecord(rec *Record) error {
	h, err := ing.store.Lookup(rec.U, rec.V)
	if err != nil {
		return err
	}
	for _, entry := range rec.Entries {
		if err = ing.store.Accumulate(h, entry.Sig, entry.Tally); err != nil {
			return err
		}
	}
	ing.NumLines++
	ing.NumEntries += int64(len(rec.Entries))
	return nil
}

// IngestReader ingests lines from r until EOF, or until stop returns true after a line.
// Errors are annotated with the line number.  stopped reports whether stop ended ingestion.
func (ing *Ingester) IngestReader(r io.Reader, stop func() bool) (stopped bool, err error) {
	reader := bufio.NewReaderSize(r, 256*1024)
	for lineNum := 1; ; lineNum++ {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if err = ing.IngestLine(line); err != nil {
				return false, errors.Wrapf(err, "merge line %d", lineNum)
			}
			if stop != nil && stop() {
				return true, nil
			}
		}
		if readErr == io.EOF {
			return false, nil
		}
		if readErr != nil {
			return false, readErr
		}
	}
}
