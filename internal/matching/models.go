package matching

// Profile carries the preference and location attributes the eligibility
// filter needs. It is read from the user store owned by the external
// identity/profile service.
type Profile struct {
	UserID            int64    `json:"user_id" db:"user_id"`
	Gender            string   `json:"gender" db:"gender"`
	Age               int      `json:"age" db:"age"`
	Latitude          float64  `json:"latitude" db:"latitude"`
	Longitude         float64  `json:"longitude" db:"longitude"`
	IsVerified        bool     `json:"is_verified" db:"is_verified"`
	PreferredGender   *string  `json:"preferred_gender,omitempty" db:"preferred_gender"`
	PreferredMinAge   *int     `json:"preferred_min_age,omitempty" db:"preferred_min_age"`
	PreferredMaxAge   *int     `json:"preferred_max_age,omitempty" db:"preferred_max_age"`
	PreferredDistance *float64 `json:"preferred_distance_km,omitempty" db:"preferred_distance_km"`
}

// RankedCandidate is one entry of a ranking
type RankedCandidate struct {
	UserID         int64   `json:"user_id"`
	Overall        float64 `json:"overall"`
	FieldsCompared int     `json:"fields_compared"`
}

// Ranking is a finite, restartable cursor over ranked candidates in
// descending score order. The underlying order is fixed at build time.
type Ranking struct {
	items []RankedCandidate
	pos   int
}

// Next returns the next candidate, or false once the ranking is exhausted
func (r *Ranking) Next() (RankedCandidate, bool) {
	if r.pos >= len(r.items) {
		return RankedCandidate{}, false
	}
	c := r.items[r.pos]
	r.pos++
	return c, true
}

// Reset restarts the cursor from the top
func (r *Ranking) Reset() { r.pos = 0 }

// Len returns the total number of ranked candidates
func (r *Ranking) Len() int { return len(r.items) }

// Top returns up to n leading candidates without moving the cursor
func (r *Ranking) Top(n int) []RankedCandidate {
	if n > len(r.items) {
		n = len(r.items)
	}
	out := make([]RankedCandidate, n)
	copy(out, r.items[:n])
	return out
}

// CandidateFilters narrows the pool fetched from storage before scoring
type CandidateFilters struct {
	Gender         string
	MinAge         int
	MaxAge         int
	MustBeVerified bool
	Limit          int
}
