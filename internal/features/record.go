package features

// PlayRecord is one player's tracking row for a play, joined with the game and
// player metadata needed for modeling. Float fields set to NaN and empty
// strings are treated as absent.
type PlayRecord struct {
	X   float64
	Y   float64
	S   float64 // speed, yards/s
	A   float64 // acceleration, yards/s^2
	Dis float64 // distance traveled since the previous frame
	Dir float64 // heading in degrees

	PlayDirection     string // "left" or "right"
	Down              int
	Distance          int // yards to go
	DefendersInTheBox int

	PlayerHeight    string // "<feet>-<inches>"
	PlayerWeight    float64
	PlayerBirthDate string
	GameID          string // leading 8 characters are YYYYMMDD

	IsRusher bool
}

// FeatureVector is the model input for a single ball carrier.
type FeatureVector struct {
	XStd              float64 `json:"X_std"`
	YStd              float64 `json:"Y_std"`
	S                 float64 `json:"S"`
	A                 float64 `json:"A"`
	Dis               float64 `json:"Dis"`
	DirStd            float64 `json:"Dir_std"`
	XStdEnd           float64 `json:"X_std_end"`
	YStdEnd           float64 `json:"Y_std_end"`
	PlayerHeight      float64 `json:"PlayerHeight"`
	PlayerWeight      float64 `json:"PlayerWeight"`
	PlayerAge         float64 `json:"PlayerAge"`
	Down              int     `json:"Down"`
	Distance          int     `json:"Distance"`
	DefendersInTheBox int     `json:"DefendersInTheBox"`
}

// FeatureNames lists the model columns in the order produced by Values.
var FeatureNames = []string{
	"X_std", "Y_std", "S", "A", "Dis", "Dir_std",
	"X_std_end", "Y_std_end", "PlayerHeight", "PlayerWeight", "PlayerAge",
	"Down", "Distance", "DefendersInTheBox",
}

// NumFeatures is the length of every feature vector.
const NumFeatures = 14

// Values returns the vector as a model row.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.XStd, v.YStd, v.S, v.A, v.Dis, v.DirStd,
		v.XStdEnd, v.YStdEnd, v.PlayerHeight, v.PlayerWeight, v.PlayerAge,
		float64(v.Down), float64(v.Distance), float64(v.DefendersInTheBox),
	}
}
