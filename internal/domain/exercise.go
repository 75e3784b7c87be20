// internal/domain/exercise.go
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseDefinition is a coach-owned exercise in the library, referenced by id
// from plan payloads and from materialized executions.
type ExerciseDefinition struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID          primitive.ObjectID `bson:"coachId" json:"coachId"` // Owner
	Name             string             `bson:"name" json:"name"`
	DetailOfSets     string             `bson:"detailOfSets,omitempty" json:"detailOfSets,omitempty"` // e.g. "(80-8-4);(85-6-3)"
	BodyParts        []string           `bson:"bodyParts,omitempty" json:"bodyParts,omitempty"`
	CaloriesEstimate int                `bson:"caloriesEstimate,omitempty" json:"caloriesEstimate,omitempty"`
	MediaKey         string             `bson:"mediaKey,omitempty" json:"-"` // Object key in the media bucket
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SetDetail is one "(weight-reps-setCount)" group of a detail-of-sets string.
type SetDetail struct {
	Weight   float64 `json:"weight"`
	Reps     int     `json:"reps"`
	SetCount int     `json:"setCount"`
}

var ErrMalformedSets = errors.New("malformed detail of sets")

// ParseDetailOfSets decodes "(80-8-4);(85-6-3)". An empty string yields no sets.
func ParseDetailOfSets(s string) ([]SetDetail, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var sets []SetDetail
	for _, group := range strings.Split(s, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		group = strings.TrimSuffix(strings.TrimPrefix(group, "("), ")")
		parts := strings.Split(group, "-")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSets, group)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight in %q", ErrMalformedSets, group)
		}
		reps, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: reps in %q", ErrMalformedSets, group)
		}
		count, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: set count in %q", ErrMalformedSets, group)
		}
		sets = append(sets, SetDetail{Weight: weight, Reps: reps, SetCount: count})
	}
	return sets, nil
}

// FormatDetailOfSets is the inverse of ParseDetailOfSets.
func FormatDetailOfSets(sets []SetDetail) string {
	groups := make([]string, len(sets))
	for i, set := range sets {
		groups[i] = fmt.Sprintf("(%s-%d-%d)", strconv.FormatFloat(set.Weight, 'f', -1, 64), set.Reps, set.SetCount)
	}
	return strings.Join(groups, ";")
}
