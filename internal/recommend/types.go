// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package recommend

import (
	"time"
)

// Rating bounds for the corpus. Scores predicted by the model are unbounded;
// observed ratings are always within this range.
const (
	MinRating = 1.0
	MaxRating = 5.0
)

// NumBiasDims is the fixed number of bias dimensions:
// popularity, interaction, and one per tracked demographic attribute.
const NumBiasDims = 6

// Bias dimension indices into a BiasVector's array form.
// The order is fixed and shared by the joint bias model, the attribution
// vector, and persisted feature tables.
const (
	DimPopularity = iota
	DimInteraction
	DimGender
	DimAge
	DimOccupation
	DimRegion
)

// BiasDimNames maps bias dimension indices to their identifiers.
var BiasDimNames = [NumBiasDims]string{
	"popularity",
	"interaction",
	"gender",
	"age",
	"occupation",
	"region",
}

// Interaction is a single observed rating event.
// Interactions are immutable once recorded; the corpus may contain multiple
// interactions for the same (user, item) pair.
type Interaction struct {
	// UserID is the external user identifier.
	UserID string `json:"user_id"`

	// ItemID is the external item identifier.
	ItemID string `json:"item_id"`

	// Rating is the observed rating on the [MinRating, MaxRating] scale.
	Rating float64 `json:"rating"`

	// Timestamp is when the rating was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile holds the demographic attributes of a user.
// Every attribute is optional; an empty value means the attribute is unknown
// and the corresponding demographic bias degrades to zero.
type UserProfile struct {
	// UserID is the external user identifier.
	UserID string `json:"user_id"`

	// DisplayName is an optional human-readable name, used only for
	// explanation text.
	DisplayName string `json:"display_name,omitempty"`

	// Gender is a categorical gender code (e.g. "M", "F").
	Gender string `json:"gender,omitempty"`

	// AgeBracket is a categorical age bracket code (e.g. "18", "25", "35").
	AgeBracket string `json:"age_bracket,omitempty"`

	// Occupation is a categorical occupation code.
	Occupation string `json:"occupation,omitempty"`

	// Region is a categorical region code (e.g. a postal prefix).
	Region string `json:"region,omitempty"`

	// ExplanationDepth controls explanation verbosity in [0,1].
	// Zero produces the briefest explanations.
	ExplanationDepth float64 `json:"explanation_depth,omitempty"`
}

// Attribute returns the value of the demographic attribute backing the given
// bias dimension, or empty string for non-demographic dimensions.
func (p *UserProfile) Attribute(dim int) string {
	switch dim {
	case DimGender:
		return p.Gender
	case DimAge:
		return p.AgeBracket
	case DimOccupation:
		return p.Occupation
	case DimRegion:
		return p.Region
	default:
		return ""
	}
}

// ItemProfile holds the metadata of a recommendable item.
type ItemProfile struct {
	// ItemID is the external item identifier.
	ItemID string `json:"item_id"`

	// Title is the item title.
	Title string `json:"title"`

	// Genres is the set of category labels.
	Genres []string `json:"genres"`
}

// BiasVector is the fixed-order tuple of bias signals for one (user, item)
// pair. All values are in [0,1] after normalization. Vectors are derived
// from the corpus and never mutated in place; rebuilding the corpus produces
// new vectors.
type BiasVector struct {
	// Popularity is the normalized item popularity bias (PB).
	Popularity float64 `json:"popularity"`

	// Interaction is the normalized recency-weighted interaction bias (IB).
	Interaction float64 `json:"interaction"`

	// Gender is the normalized gender-proportional demographic bias.
	Gender float64 `json:"gender"`

	// Age is the normalized age-proportional demographic bias.
	Age float64 `json:"age"`

	// Occupation is the normalized occupation-proportional demographic bias.
	Occupation float64 `json:"occupation"`

	// Region is the normalized region-proportional demographic bias.
	Region float64 `json:"region"`
}

// Values returns the vector in fixed dimension order.
func (b BiasVector) Values() [NumBiasDims]float64 {
	return [NumBiasDims]float64{
		b.Popularity, b.Interaction, b.Gender, b.Age, b.Occupation, b.Region,
	}
}

// BiasVectorFromValues builds a BiasVector from fixed-order values.
func BiasVectorFromValues(v [NumBiasDims]float64) BiasVector {
	return BiasVector{
		Popularity:  v[DimPopularity],
		Interaction: v[DimInteraction],
		Gender:      v[DimGender],
		Age:         v[DimAge],
		Occupation:  v[DimOccupation],
		Region:      v[DimRegion],
	}
}

// Attribution is a distribution over the bias dimensions explaining which
// factor dominated a fairness penalty. Values sum to 1. It is diagnostic
// output for the explanation layer, not an input to scoring.
type Attribution [NumBiasDims]float64

// Top returns the indices of the n largest attribution dimensions in
// descending order. Ties break by dimension index ascending.
func (a Attribution) Top(n int) []int {
	if n > NumBiasDims {
		n = NumBiasDims
	}
	idx := make([]int, NumBiasDims)
	for i := range idx {
		idx[i] = i
	}
	// Insertion sort: NumBiasDims is tiny and stability gives the
	// deterministic tie-break.
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && a[idx[j]] > a[idx[j-1]]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx[:n]
}

// NewRating is one freshly submitted rating in an adaptation request.
type NewRating struct {
	// ItemID is the external item identifier.
	ItemID string `json:"item_id"`

	// Rating is the submitted rating on the [MinRating, MaxRating] scale.
	Rating float64 `json:"rating"`
}

// Request is a recommendation request for one user.
type Request struct {
	// UserID is the external identity of the user to recommend for.
	UserID string `json:"user_id"`

	// Ratings is an optional batch of fresh ratings. If the user is unknown,
	// the engine adapts the model to the user from these before ranking.
	// They also provide the session preference signal for the similarity
	// blend.
	Ratings []NewRating `json:"ratings,omitempty"`

	// K is the number of recommendations to return.
	// Defaults to the engine's configured default if zero.
	K int `json:"k,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// ScoredItem is one ranked recommendation.
type ScoredItem struct {
	// ItemID is the external item identifier.
	ItemID string `json:"item_id"`

	// Title is the item title.
	Title string `json:"title"`

	// Genres is the set of category labels.
	Genres []string `json:"genres"`

	// Score is the final ranking score. Raw predictor output minus the
	// fairness penalty, optionally blended with session similarity.
	Score float64 `json:"score"`

	// RawScore is the unadjusted predictor output.
	RawScore float64 `json:"raw_score"`

	// Penalty is the fairness penalty subtracted from the raw score.
	Penalty float64 `json:"penalty"`

	// Attribution explains which bias dimensions drove the penalty.
	Attribution Attribution `json:"attribution"`

	// Explanation is the human-readable recommendation rationale.
	// May be a placeholder if the explanation generator was unavailable.
	Explanation string `json:"explanation,omitempty"`
}

// Response is a ranked recommendation response.
type Response struct {
	// UserID is the user the recommendations are for.
	UserID string `json:"user_id"`

	// Items is the ordered list of recommendations, best first.
	Items []ScoredItem `json:"items"`

	// Metadata contains timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata contains timing and diagnostic information.
type ResponseMetadata struct {
	// RequestID is the unique request identifier.
	RequestID string `json:"request_id"`

	// Adapted indicates whether the request triggered online adaptation.
	Adapted bool `json:"adapted"`

	// Candidates is the number of candidate items scored.
	Candidates int `json:"candidates"`

	// LatencyMS is the total recommendation latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// ModelVersion is the version of the predictor used.
	ModelVersion int `json:"model_version"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// TrainingStatus describes the engine's model state.
type TrainingStatus struct {
	// Trained indicates whether the initial batch training has completed.
	Trained bool `json:"trained"`

	// ModelVersion is the current predictor version (incremented on each
	// batch train and each adaptation).
	ModelVersion int `json:"model_version"`

	// TrainedAt is when batch training last completed.
	TrainedAt time.Time `json:"trained_at"`

	// UserCount is the number of encoded users.
	UserCount int `json:"user_count"`

	// ItemCount is the number of encoded items.
	ItemCount int `json:"item_count"`

	// InteractionCount is the size of the training corpus.
	InteractionCount int `json:"interaction_count"`

	// BiasRowCount is the number of (user,item) bias feature rows.
	BiasRowCount int `json:"bias_row_count"`
}
