package models

import "time"

// PlayRequest is a raw play-tracking row for the ball carrier as sent by clients.
// Pointer fields distinguish an absent value from a zero value.
type PlayRequest struct {
	X                 *float64 `json:"X"`
	Y                 *float64 `json:"Y"`
	S                 *float64 `json:"S"`
	A                 *float64 `json:"A"`
	Dis               *float64 `json:"Dis"`
	Dir               *float64 `json:"Dir"`
	PlayDirection     *string  `json:"PlayDirection"`
	Down              *int     `json:"Down"`
	Distance          *int     `json:"Distance"`
	DefendersInTheBox *int     `json:"DefendersInTheBox"`
	PlayerHeight      *string  `json:"PlayerHeight"`
	PlayerWeight      *float64 `json:"PlayerWeight"`
	PlayerBirthDate   *string  `json:"PlayerBirthDate"`
	GameID            *string  `json:"GameId"`
}

// PredictRequest carries an already standardized feature vector.
// Field names match the model's training columns.
type PredictRequest struct {
	XStd              *float64 `json:"X_std"`
	YStd              *float64 `json:"Y_std"`
	S                 *float64 `json:"S"`
	A                 *float64 `json:"A"`
	Dis               *float64 `json:"Dis"`
	DirStd            *float64 `json:"Dir_std"`
	XStdEnd           *float64 `json:"X_std_end"`
	YStdEnd           *float64 `json:"Y_std_end"`
	PlayerHeight      *float64 `json:"PlayerHeight"` // inches
	PlayerWeight      *float64 `json:"PlayerWeight"` // lbs
	PlayerAge         *float64 `json:"PlayerAge"`
	Down              *int     `json:"Down"`
	Distance          *int     `json:"Distance"` // yards to go
	DefendersInTheBox *int     `json:"DefendersInTheBox"`
}

// PredictionResponse is returned by the predict endpoints
type PredictionResponse struct {
	PredictedYards float64 `json:"predicted_yards"`
	Confidence     float64 `json:"confidence"`
	ModelUsed      string  `json:"model_used"`
	ModelVersion   string  `json:"model_version,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// PredictionRecord is the audit row written for every served prediction.
type PredictionRecord struct {
	ModelVersion   string    `json:"model_version"`
	Features       []float64 `json:"features"`
	PredictedYards float64   `json:"predicted_yards"`
	Confidence     float64   `json:"confidence"`
	Cached         bool      `json:"cached"`
	CreatedAt      time.Time `json:"created_at"`
}
