package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"carddash/internal/cards"
	"carddash/pkg/models"
)

// CSV columns after the raw fields.
const (
	ColumnSet    = "set"
	ColumnErrata = "errata_enable"
)

// CSVFields are the raw record columns, in CSV order.
var CSVFields = []models.Field{
	models.FieldName,
	models.FieldNumber,
	models.FieldRarity,
	models.FieldFeature,
	models.FieldType,
	models.FieldSection,
	models.FieldDisplayCardBundleNames,
	models.FieldParticipatingWorks,
	models.FieldCharacterName,
	models.FieldIllustratorName,
	models.FieldPublicationYear,
}

var ErrNoHeader = errors.New("csv: missing header row")

// WriteCSV writes one row per card: the raw fields, then the derived set
// and the errata flag. Missing values are empty cells.
func WriteCSV(w io.Writer, all []models.Card) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(CSVFields)+2)
	for _, f := range CSVFields {
		header = append(header, string(f))
	}
	header = append(header, ColumnSet, ColumnErrata)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, c := range all {
		row := make([]string, 0, len(header))
		for _, f := range CSVFields {
			row = append(row, c.Get(f).String)
		}
		row = append(row, cards.DeriveSet(c), strconv.FormatBool(bool(c.ErrataEnable)))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads cards written by WriteCSV. Columns are matched by header
// name, so extra or reordered columns are fine. Empty cells become missing
// values and the derived set column is ignored.
func ReadCSV(r io.Reader) ([]models.Card, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.ToLower(h))] = i
	}

	out := make([]models.Card, 0)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}

		valueAt := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		text := func(f models.Field) models.Text {
			if v := valueAt(string(f)); v != "" {
				return models.NewText(v)
			}
			return models.Text{}
		}

		out = append(out, models.Card{
			Name:                   text(models.FieldName),
			Rarity:                 text(models.FieldRarity),
			Feature:                text(models.FieldFeature),
			Type:                   text(models.FieldType),
			Section:                text(models.FieldSection),
			Number:                 text(models.FieldNumber),
			DisplayCardBundleNames: text(models.FieldDisplayCardBundleNames),
			ParticipatingWorks:     text(models.FieldParticipatingWorks),
			CharacterName:          text(models.FieldCharacterName),
			IllustratorName:        text(models.FieldIllustratorName),
			PublicationYear:        text(models.FieldPublicationYear),
			ErrataEnable:           models.Flag(valueAt(ColumnErrata) == "true"),
		})
	}
	return out, nil
}

// CSVSource reads the collection from a CSV export.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) FetchAll(ctx context.Context) ([]models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	out, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return out, nil
}
