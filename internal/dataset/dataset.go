// Package dataset loads the play-tracking CSV and reduces it to one standardized
// row per ball carrier.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// TargetColumn holds the rushing yards gained on the play.
const TargetColumn = "Yards"

var stringColumns = []string{
	"GameId", "PlayDirection", "PlayerHeight", "PlayerBirthDate",
	"PossessionTeam", "FieldPosition", "OffenseFormation",
}

var floatColumns = []string{
	"X", "Y", "S", "A", "Dis", "Dir",
	"NflId", "NflIdRusher", "Down", "Distance", "DefendersInTheBox",
	"PlayerWeight", TargetColumn,
}

// RequiredColumns must be present for Build to succeed.
var RequiredColumns = []string{
	"GameId", "NflId", "NflIdRusher", "X", "Y", "S", "A", "Dis", "Dir",
	"PlayDirection", "Down", "Distance", "DefendersInTheBox",
	"PlayerHeight", "PlayerWeight", "PlayerBirthDate", TargetColumn,
}

var teamAbbrCorrections = map[string]string{
	"BLT": "BAL",
	"CLV": "CLE",
	"ARZ": "ARI",
	"HST": "HOU",
}

// Set is a model-ready design matrix with its target.
type Set struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (s *Set) Len() int {
	return len(s.Y)
}

// LoadFile reads the CSV at path.
func LoadFile(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses a tracking CSV. Known columns get fixed types so that NA cells
// become NaN; everything else is kept as text.
func Load(r io.Reader) (dataframe.DataFrame, error) {
	types := make(map[string]series.Type, len(stringColumns)+len(floatColumns))
	for _, c := range stringColumns {
		types[c] = series.String
	}
	for _, c := range floatColumns {
		types[c] = series.Float
	}

	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
		dataframe.NaNValues([]string{"NA", "NaN", "<nil>", ""}),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

// Clean applies the categorical fix-ups of the training pipeline: missing
// field position becomes "None", relocated team abbreviations are unified and
// an empty formation becomes "Unknown". Absent columns are skipped.
func Clean(df dataframe.DataFrame) dataframe.DataFrame {
	df = replaceStrings(df, "FieldPosition", func(v string, na bool) string {
		if na {
			return "None"
		}
		return v
	})
	df = replaceStrings(df, "PossessionTeam", func(v string, na bool) string {
		if fixed, ok := teamAbbrCorrections[v]; ok {
			return fixed
		}
		return v
	})
	df = replaceStrings(df, "OffenseFormation", func(v string, na bool) string {
		if na {
			return "Unknown"
		}
		return v
	})
	return df
}

// Build walks the table row by row, keeps the ball carrier of each play and
// standardizes it. Rows that fail standardization or lack a target are dropped
// and counted in the report by offending field.
func Build(df dataframe.DataFrame) (*Set, models.DatasetReport, error) {
	report := models.DatasetReport{Rows: df.Nrow(), Dropped: map[string]int{}}

	if err := checkColumns(df); err != nil {
		return nil, report, err
	}

	floats := make(map[string][]float64, len(floatColumns))
	for _, c := range floatColumns {
		floats[c] = df.Col(c).Float()
	}
	strs := make(map[string][]string, len(stringColumns))
	for _, c := range stringColumns {
		if !hasColumn(df, c) {
			continue
		}
		strs[c] = stringValues(df.Col(c))
	}

	set := &Set{}
	for i := 0; i < df.Nrow(); i++ {
		if !isRusher(floats["NflId"][i], floats["NflIdRusher"][i]) {
			continue
		}
		report.Rushers++

		yards := floats[TargetColumn][i]
		if math.IsNaN(yards) {
			report.Dropped[TargetColumn]++
			continue
		}

		rec, err := recordAt(i, floats, strs)
		if err == nil {
			var fv features.FeatureVector
			fv, err = features.Standardize(rec)
			if err == nil {
				set.X = append(set.X, fv.Values())
				set.Y = append(set.Y, yards)
				continue
			}
		}

		field, ok := droppedField(err)
		if !ok {
			return nil, report, fmt.Errorf("row %d: %w", i, err)
		}
		report.Dropped[field]++
	}

	report.Usable = set.Len()
	return set, report, nil
}

// Split shuffles rows with the given seed and holds out ceil(n*testSize) of
// them for evaluation. The same seed always yields the same split.
func Split(set *Set, testSize float64, seed int64) (train, test *Set, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size %.3f must be in (0, 1)", testSize)
	}

	n := set.Len()
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %.3f", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	test = subset(set, perm[:nTest])
	train = subset(set, perm[nTest:])
	return train, test, nil
}

func subset(set *Set, idx []int) *Set {
	out := &Set{
		X: make([][]float64, len(idx)),
		Y: make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = set.X[j]
		out.Y[i] = set.Y[j]
	}
	return out
}

func recordAt(i int, floats map[string][]float64, strs map[string][]string) (features.PlayRecord, error) {
	down, err := intAt("Down", floats["Down"][i])
	if err != nil {
		return features.PlayRecord{}, err
	}
	distance, err := intAt("Distance", floats["Distance"][i])
	if err != nil {
		return features.PlayRecord{}, err
	}
	box, err := intAt("DefendersInTheBox", floats["DefendersInTheBox"][i])
	if err != nil {
		return features.PlayRecord{}, err
	}

	return features.PlayRecord{
		X:                 floats["X"][i],
		Y:                 floats["Y"][i],
		S:                 floats["S"][i],
		A:                 floats["A"][i],
		Dis:               floats["Dis"][i],
		Dir:               floats["Dir"][i],
		PlayDirection:     strs["PlayDirection"][i],
		Down:              down,
		Distance:          distance,
		DefendersInTheBox: box,
		PlayerHeight:      strs["PlayerHeight"][i],
		PlayerWeight:      floats["PlayerWeight"][i],
		PlayerBirthDate:   strs["PlayerBirthDate"][i],
		GameID:            strs["GameId"][i],
		IsRusher:          true,
	}, nil
}

func intAt(field string, v float64) (int, error) {
	if math.IsNaN(v) {
		return 0, &features.MissingFieldError{Field: field}
	}
	if v != math.Trunc(v) {
		return 0, &features.ParseError{Field: field, Value: strconv.FormatFloat(v, 'f', -1, 64), Err: errors.New("not an integer")}
	}
	return int(v), nil
}

func isRusher(nflID, rusherID float64) bool {
	return !math.IsNaN(nflID) && nflID == rusherID
}

func droppedField(err error) (string, bool) {
	var perr *features.ParseError
	if errors.As(err, &perr) {
		return perr.Field, true
	}
	var merr *features.MissingFieldError
	if errors.As(err, &merr) {
		return merr.Field, true
	}
	return "", false
}

func checkColumns(df dataframe.DataFrame) error {
	for _, c := range RequiredColumns {
		if !hasColumn(df, c) {
			return fmt.Errorf("dataset is missing column %s", c)
		}
	}
	return nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// stringValues returns the column with NA cells as empty strings.
func stringValues(s series.Series) []string {
	records := s.Records()
	na := s.IsNaN()
	for i := range records {
		if na[i] {
			records[i] = ""
		}
	}
	return records
}

func replaceStrings(df dataframe.DataFrame, col string, fn func(v string, na bool) string) dataframe.DataFrame {
	if !hasColumn(df, col) {
		return df
	}

	s := df.Col(col)
	records := s.Records()
	na := s.IsNaN()
	out := make([]string, len(records))
	for i, v := range records {
		out[i] = fn(v, na[i])
	}
	return df.Mutate(series.New(out, series.String, col))
}
