// Package features turns raw play-tracking rows into model feature vectors.
//
// Every play is normalized so the offense moves toward increasing X with the
// yard line 0 at X_std = 0. The same transform runs at training and serving
// time, so any change here invalidates persisted models.
package features

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	fieldLength = 120.0       // end line to end line, yards
	fieldWidth  = 160.0 / 3.0 // sideline to sideline, yards
	endZone     = 10.0

	daysPerYear = 365.25
)

var birthDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// Standardize maps a play record to its feature vector. It does not default
// anything: a malformed value yields a *ParseError and an absent value a
// *MissingFieldError.
func Standardize(rec PlayRecord) (FeatureVector, error) {
	if err := checkPresent(rec); err != nil {
		return FeatureVector{}, err
	}

	toLeft, err := isToLeft(rec.PlayDirection)
	if err != nil {
		return FeatureVector{}, err
	}

	if rec.Down < 1 || rec.Down > 4 {
		return FeatureVector{}, &ParseError{Field: "Down", Value: strconv.Itoa(rec.Down), Err: errors.New("must be between 1 and 4")}
	}
	if rec.Distance < 0 {
		return FeatureVector{}, &ParseError{Field: "Distance", Value: strconv.Itoa(rec.Distance), Err: errors.New("must not be negative")}
	}
	if rec.DefendersInTheBox < 0 {
		return FeatureVector{}, &ParseError{Field: "DefendersInTheBox", Value: strconv.Itoa(rec.DefendersInTheBox), Err: errors.New("must not be negative")}
	}

	height, err := ParseHeight(rec.PlayerHeight)
	if err != nil {
		return FeatureVector{}, err
	}

	gameDate, err := ParseGameDate(rec.GameID)
	if err != nil {
		return FeatureVector{}, err
	}
	birthDate, err := ParseBirthDate(rec.PlayerBirthDate)
	if err != nil {
		return FeatureVector{}, err
	}

	xStd, yStd := StandardizePosition(rec.X, rec.Y, toLeft)
	dirStd := StandardizeDirection(rec.Dir, toLeft)
	xEnd, yEnd := ProjectEnd(xStd, yStd, rec.S, dirStd)

	return FeatureVector{
		XStd:              xStd,
		YStd:              yStd,
		S:                 rec.S,
		A:                 rec.A,
		Dis:               rec.Dis,
		DirStd:            dirStd,
		XStdEnd:           xEnd,
		YStdEnd:           yEnd,
		PlayerHeight:      height,
		PlayerWeight:      rec.PlayerWeight,
		PlayerAge:         PlayerAge(birthDate, gameDate),
		Down:              rec.Down,
		Distance:          rec.Distance,
		DefendersInTheBox: rec.DefendersInTheBox,
	}, nil
}

// ParseHeight converts "<feet>-<inches>" to inches.
func ParseHeight(s string) (float64, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, &ParseError{Field: "PlayerHeight", Value: s, Err: errors.New("want <feet>-<inches>")}
	}

	feet, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, &ParseError{Field: "PlayerHeight", Value: s, Err: err}
	}
	inches, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, &ParseError{Field: "PlayerHeight", Value: s, Err: err}
	}

	return feet*12 + inches, nil
}

// ParseGameDate reads the game date from the first 8 characters of a game id.
func ParseGameDate(gameID string) (time.Time, error) {
	if len(gameID) < 8 {
		return time.Time{}, &ParseError{Field: "GameId", Value: gameID, Err: errors.New("shorter than YYYYMMDD")}
	}

	t, err := time.Parse("20060102", gameID[:8])
	if err != nil {
		return time.Time{}, &ParseError{Field: "GameId", Value: gameID, Err: err}
	}
	return t, nil
}

// ParseBirthDate accepts ISO dates and the MM/DD/YYYY form used by the
// tracking CSV.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ParseError{Field: "PlayerBirthDate", Value: s, Err: errors.New("empty")}
	}

	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Field: "PlayerBirthDate", Value: s, Err: errors.New("unrecognized date format")}
}

// PlayerAge is the age in years on the game date, counted in whole days.
func PlayerAge(birthDate, gameDate time.Time) float64 {
	days := math.Floor(gameDate.Sub(birthDate).Hours() / 24)
	return days / daysPerYear
}

// StandardizePosition mirrors leftward plays and shifts X so that the
// offense's own goal line sits at 0.
func StandardizePosition(x, y float64, toLeft bool) (xStd, yStd float64) {
	if toLeft {
		return (fieldLength - x) - endZone, fieldWidth - y
	}
	return x - endZone, y
}

// StandardizeDirection rotates the heading of leftward plays by 180 degrees.
// The wrap adjustments run first and in this order; reordering changes the
// result for angles near 0/360.
func StandardizeDirection(dir float64, toLeft bool) float64 {
	if toLeft && dir < 90 {
		dir += 360
	}
	if !toLeft && dir > 270 {
		dir -= 360
	}
	if toLeft {
		dir -= 180
	}
	return dir
}

// ProjectEnd advances the standardized position one second along the
// heading at the current speed. A heading of 0 points toward +Y.
func ProjectEnd(xStd, yStd, speed, dirStd float64) (xEnd, yEnd float64) {
	rad := (90 - dirStd) * math.Pi / 180
	return xStd + speed*math.Cos(rad), yStd + speed*math.Sin(rad)
}

func isToLeft(direction string) (bool, error) {
	switch direction {
	case "left":
		return true, nil
	case "right":
		return false, nil
	default:
		return false, &ParseError{Field: "PlayDirection", Value: direction, Err: errors.New("want left or right")}
	}
}

func checkPresent(rec PlayRecord) error {
	floats := []struct {
		name  string
		value float64
	}{
		{"X", rec.X},
		{"Y", rec.Y},
		{"S", rec.S},
		{"A", rec.A},
		{"Dis", rec.Dis},
		{"Dir", rec.Dir},
		{"PlayerWeight", rec.PlayerWeight},
	}
	for _, f := range floats {
		if math.IsNaN(f.value) {
			return &MissingFieldError{Field: f.name}
		}
	}

	if rec.PlayDirection == "" {
		return &MissingFieldError{Field: "PlayDirection"}
	}
	if rec.PlayerHeight == "" {
		return &MissingFieldError{Field: "PlayerHeight"}
	}
	if rec.GameID == "" {
		return &MissingFieldError{Field: "GameId"}
	}
	return nil
}
