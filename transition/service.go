package transition

// Instrumentation is the switch for handoff recording. It is read once when a
// Service is built; there is no runtime toggle.
type Instrumentation bool

const (
	InstrumentationDisabled Instrumentation = false
	InstrumentationEnabled  Instrumentation = true
)

func (i Instrumentation) String() string {
	if i {
		return "enabled"
	}
	return "disabled"
}

// Registry accepts finished handoff records.
type Registry interface {
	Add(r Record)
	AddAll(records []Record)
	// Enabled reports whether added records are kept at all.
	Enabled() bool
}

// Service is the process-wide Registry forwarding records into a Statistics table.
// A disabled Service, or one without a table, drops everything.
type Service struct {
	stats   *Statistics
	enabled bool
}

var _ Registry = (*Service)(nil)

// NewService returns a Service writing into stats when instr is enabled.
func NewService(instr Instrumentation, stats *Statistics) *Service {
	return &Service{stats: stats, enabled: bool(instr) && stats != nil}
}

// Enabled reports whether records reach the statistics table. Safe on a nil Service.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled
}

// Add forwards r to the statistics table.
func (s *Service) Add(r Record) {
	if !s.Enabled() {
		return
	}
	s.stats.Add(r)
}

// AddAll forwards records to the statistics table in one batch.
func (s *Service) AddAll(records []Record) {
	if !s.Enabled() {
		return
	}
	s.stats.AddAll(records)
}

// Statistics returns the bound table, nil when the Service is disabled.
func (s *Service) Statistics() *Statistics {
	if !s.Enabled() {
		return nil
	}
	return s.stats
}
