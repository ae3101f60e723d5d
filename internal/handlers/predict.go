package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/features"
	"github.com/XavierBriggs/fortuna/services/rushing-predictor/pkg/models"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Predict scores a standardized feature vector
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	fv, err := VectorFromRequest(req)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.predict(w, r, fv)
}

// PredictPlay standardizes a raw tracking row and scores it
func (h *Handler) PredictPlay(w http.ResponseWriter, r *http.Request) {
	var req models.PlayRequest
	if !h.decode(w, r, &req) {
		return
	}

	fv, err := standardizePlay(req)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.predict(w, r, fv)
}

// Standardize returns the feature vector of a raw tracking row
func (h *Handler) Standardize(w http.ResponseWriter, r *http.Request) {
	var req models.PlayRequest
	if !h.decode(w, r, &req) {
		return
	}

	fv, err := standardizePlay(req)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, fv)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, fv features.FeatureVector) {
	resp, err := h.predictor.Predict(r.Context(), fv)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err), err)
		return false
	}
	return true
}

// VectorFromRequest checks that every feature is present, in model column order
func VectorFromRequest(req models.PredictRequest) (features.FeatureVector, error) {
	floats := []struct {
		name string
		v    *float64
	}{
		{"X_std", req.XStd}, {"Y_std", req.YStd}, {"S", req.S}, {"A", req.A},
		{"Dis", req.Dis}, {"Dir_std", req.DirStd}, {"X_std_end", req.XStdEnd},
		{"Y_std_end", req.YStdEnd}, {"PlayerHeight", req.PlayerHeight},
		{"PlayerWeight", req.PlayerWeight}, {"PlayerAge", req.PlayerAge},
	}
	for _, f := range floats {
		if f.v == nil {
			return features.FeatureVector{}, &features.MissingFieldError{Field: f.name}
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			return features.FeatureVector{}, &features.ParseError{Field: f.name, Value: fmt.Sprint(*f.v), Err: fmt.Errorf("not a finite number")}
		}
	}

	ints := []struct {
		name string
		v    *int
	}{
		{"Down", req.Down}, {"Distance", req.Distance}, {"DefendersInTheBox", req.DefendersInTheBox},
	}
	for _, f := range ints {
		if f.v == nil {
			return features.FeatureVector{}, &features.MissingFieldError{Field: f.name}
		}
	}

	return features.FeatureVector{
		XStd:              *req.XStd,
		YStd:              *req.YStd,
		S:                 *req.S,
		A:                 *req.A,
		Dis:               *req.Dis,
		DirStd:            *req.DirStd,
		XStdEnd:           *req.XStdEnd,
		YStdEnd:           *req.YStdEnd,
		PlayerHeight:      *req.PlayerHeight,
		PlayerWeight:      *req.PlayerWeight,
		PlayerAge:         *req.PlayerAge,
		Down:              *req.Down,
		Distance:          *req.Distance,
		DefendersInTheBox: *req.DefendersInTheBox,
	}, nil
}

// RecordFromRequest converts a raw play into a PlayRecord. Absent floats and
// strings become NaN and "" so that Standardize reports them; absent integers
// are reported here.
func RecordFromRequest(req models.PlayRequest) (features.PlayRecord, error) {
	ints := []struct {
		name string
		v    *int
	}{
		{"Down", req.Down}, {"Distance", req.Distance}, {"DefendersInTheBox", req.DefendersInTheBox},
	}
	for _, f := range ints {
		if f.v == nil {
			return features.PlayRecord{}, &features.MissingFieldError{Field: f.name}
		}
	}

	return features.PlayRecord{
		X:                 floatOrNaN(req.X),
		Y:                 floatOrNaN(req.Y),
		S:                 floatOrNaN(req.S),
		A:                 floatOrNaN(req.A),
		Dis:               floatOrNaN(req.Dis),
		Dir:               floatOrNaN(req.Dir),
		PlayDirection:     stringOrEmpty(req.PlayDirection),
		Down:              *req.Down,
		Distance:          *req.Distance,
		DefendersInTheBox: *req.DefendersInTheBox,
		PlayerHeight:      stringOrEmpty(req.PlayerHeight),
		PlayerWeight:      floatOrNaN(req.PlayerWeight),
		PlayerBirthDate:   stringOrEmpty(req.PlayerBirthDate),
		GameID:            stringOrEmpty(req.GameID),
		IsRusher:          true,
	}, nil
}

func standardizePlay(req models.PlayRequest) (features.FeatureVector, error) {
	rec, err := RecordFromRequest(req)
	if err != nil {
		return features.FeatureVector{}, err
	}
	return features.Standardize(rec)
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
