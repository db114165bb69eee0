package server

import (
	"encoding/json"

	"dicecup/internal/domain"
)

type RollRequest struct {
	Notation string `json:"notation" example:"3D20+4"`
	Seed     *int64 `json:"seed,omitempty"`
}

type RollResponse struct {
	ID         string `json:"id"`
	Input      string `json:"input"`
	Notation   string `json:"notation"`
	Value      int    `json:"value"`
	Trace      string `json:"trace"`
	Minimum    int    `json:"minimum"`
	Maximum    int    `json:"maximum"`
	Unbounded  bool   `json:"unbounded"`
	Seed       *int64 `json:"seed,omitempty"`
	Expression string `json:"expression,omitempty"`
	ActorID    string `json:"actor_id"`
	CreatedAt  string `json:"created_at"`
}

type InspectionRequest struct {
	Notation string `json:"notation" example:"4D6DL1"`
}

type InspectionResponse struct {
	Input     string `json:"input"`
	Notation  string `json:"notation"`
	Minimum   int    `json:"minimum"`
	Maximum   int    `json:"maximum"`
	Unbounded bool   `json:"unbounded"`
}

type SampleRequest struct {
	Notation string `json:"notation" example:"2D6"`
	Trials   int    `json:"trials" example:"1000"`
	Seed     *int64 `json:"seed,omitempty"`
}

type SampleResponse struct {
	Input    string  `json:"input"`
	Notation string  `json:"notation"`
	Trials   int     `json:"trials"`
	Seed     *int64  `json:"seed,omitempty"`
	Lowest   int     `json:"lowest"`
	Highest  int     `json:"highest"`
	Mean     float64 `json:"mean"`
}

type ExpressionRequest struct {
	Notation    string `json:"notation" example:"2D20KH1"`
	Description string `json:"description,omitempty"`
}

type ExpressionResponse struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type APIKeyRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key carries the plaintext exactly once, on creation.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Source      string   `json:"source,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func rollResponse(r domain.Roll) RollResponse {
	return RollResponse{
		ID:         r.ID,
		Input:      r.Input,
		Notation:   r.Notation,
		Value:      r.Value,
		Trace:      r.Trace,
		Minimum:    r.Minimum,
		Maximum:    r.Maximum,
		Unbounded:  r.Unbounded,
		Seed:       r.Seed,
		Expression: r.Expression,
		ActorID:    r.ActorID,
		CreatedAt:  r.CreatedAt,
	}
}

func inspectionResponse(i domain.Inspection) InspectionResponse {
	return InspectionResponse{
		Input:     i.Input,
		Notation:  i.Notation,
		Minimum:   i.Minimum,
		Maximum:   i.Maximum,
		Unbounded: i.Unbounded,
	}
}

func sampleResponse(s domain.Sample) SampleResponse {
	return SampleResponse{
		Input:    s.Input,
		Notation: s.Notation,
		Trials:   s.Trials,
		Seed:     s.Seed,
		Lowest:   s.Lowest,
		Highest:  s.Highest,
		Mean:     s.Mean,
	}
}

func expressionResponse(e domain.Expression) ExpressionResponse {
	return ExpressionResponse{
		Name:        e.Name,
		Notation:    e.Notation,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func mapExpressions(items []domain.Expression) []ExpressionResponse {
	res := make([]ExpressionResponse, 0, len(items))
	for _, e := range items {
		res = append(res, expressionResponse(e))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func mapAPIKeys(items []domain.APIKey) []APIKeyResponse {
	res := make([]APIKeyResponse, 0, len(items))
	for _, k := range items {
		res = append(res, apiKeyResponse(k))
	}
	return res
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
