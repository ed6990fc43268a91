package tinder

// SelfUser is the authenticated account's own profile.
type SelfUser struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// Recommendation is one swipeable candidate returned by the recs feed.
type Recommendation struct {
	User RecommendationUser `json:"user"`
}

// RecommendationUser carries the candidate identity inside a recommendation.
type RecommendationUser struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// ID returns the candidate identifier used for like/pass actions.
func (r Recommendation) ID() string { return r.User.ID }

// Match is a mutual like between the account and another user.
type Match struct {
	ID          string `json:"id"`
	MatchedWith string `json:"matched_with,omitempty"`
}

// Update is the raw updates payload (new matches, messages) from upstream.
type Update struct {
	Matches []Match `json:"matches"`
}
