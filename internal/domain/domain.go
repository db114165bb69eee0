package domain

// Roll is one evaluated dice expression outcome.
type Roll struct {
	ID         string `json:"id"`
	Input      string `json:"input"`
	Notation   string `json:"notation"`
	Value      int    `json:"value"`
	Trace      string `json:"trace"`
	Minimum    int    `json:"minimum"`
	Maximum    int    `json:"maximum"`
	Unbounded  bool   `json:"unbounded,omitempty"`
	Seed       *int64 `json:"seed,omitempty"`
	Expression string `json:"expression,omitempty"`
	ActorID    string `json:"actor_id"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Inspection reports the bounds of an expression without rolling it.
type Inspection struct {
	Input     string `json:"input"`
	Notation  string `json:"notation"`
	Minimum   int    `json:"minimum"`
	Maximum   int    `json:"maximum"`
	Unbounded bool   `json:"unbounded"`
}

// Sample summarizes repeated rolls of one expression.
type Sample struct {
	Input    string  `json:"input"`
	Notation string  `json:"notation"`
	Trials   int     `json:"trials"`
	Seed     *int64  `json:"seed,omitempty"`
	Lowest   int     `json:"lowest"`
	Highest  int     `json:"highest"`
	Mean     float64 `json:"mean"`
}

// Expression is a saved notation preset.
type Expression struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
