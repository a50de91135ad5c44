package httpapi

import "jobby/recommend-service/internal/model"

// Test-only bridge to the request input types and their validation steps.

type (
	QueryInput   = queryInput
	PatternInput = patternInput
)

func (in *queryInput) Validate() error { return in.validate() }
func (in *queryInput) ApplyDefaults()  { in.applyDefaults() }

func (in *queryInput) ToModel() model.RecommendedQuery { return in.toModel() }

func (in *patternInput) Validate() error { return in.validate() }

func (in *patternInput) ToModel() model.ScoringPattern { return in.toModel() }
