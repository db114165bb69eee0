// Package trace carries the profiling side channel of the evaluation
// engine. A Profiler observes outcomes after the fact; it can never alter
// a computed value, and a misbehaving sink never aborts an evaluation.
package trace

// Record describes one observed evaluation.
type Record struct {
	// Notation identifies the producing node.
	Notation string `json:"notation"`
	// Method is the call that produced the record, currently "roll".
	Method string `json:"method"`
	// Value is the outcome value.
	Value int `json:"value"`
	// Trace is the human-readable derivation of Value.
	Trace string `json:"trace"`
}

// Profiler receives records. Sinks decide retention and format.
type Profiler interface {
	Append(Record)
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(Record) {}

// Multi fans a record out to several sinks.
type Multi []Profiler

func (m Multi) Append(r Record) {
	for _, p := range m {
		Emit(p, r)
	}
}

// Collector retains records in memory, oldest first.
type Collector struct {
	Records []Record
}

func (c *Collector) Append(r Record) {
	c.Records = append(c.Records, r)
}

// Emit forwards a record to a sink, swallowing nil sinks and panics so
// observation can never fail an evaluation.
func Emit(p Profiler, r Record) {
	if p == nil {
		return
	}
	defer func() { _ = recover() }()
	p.Append(r)
}
